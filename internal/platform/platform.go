package platform

// Handle is an opaque device memory address. It is only meaningful to the
// platform that issued it; the zero value is the null handle.
type Handle uintptr

// DeviceInfo contains information about one device
type DeviceInfo struct {
	Ordinal           int    `json:"ordinal"`
	Name              string `json:"name"`
	TotalMemory       uint64 `json:"totalMemory"` // in bytes
	ComputeCapability string `json:"computeCapability"`
}

// Platform defines the interface for a device memory platform
// This interface allows for multiple implementations (CUDA runtime, simulated, etc.)
// and provides a consistent API for the allocator family built on top of it.
//
// Implementation notes:
// - Allocate/Free operate against the currently active device
// - The active device is process-wide mutable state; callers that bind to a
//   specific ordinal must set it before allocating
// - Free during shutdown may fail on some platforms; callers decide whether
//   that is tolerable
type Platform interface {
	// Allocate requests size bytes of device memory on the active device.
	Allocate(size uint64) (Handle, error)

	// Free releases device memory previously returned by Allocate.
	Free(h Handle) error

	// AllocatePinned requests size bytes of page-locked host memory.
	AllocatePinned(size uint64) (Handle, error)

	// FreePinned releases host memory previously returned by AllocatePinned.
	FreePinned(h Handle) error

	// ActiveDevice reports the ordinal of the currently active device.
	ActiveDevice() (int, error)

	// SetActiveDevice switches the active device to the given ordinal.
	SetActiveDevice(ordinal int) error

	// DeviceCount reports the number of devices visible to the platform.
	DeviceCount() (int, error)

	// DeviceInfo returns information about the device at the given ordinal.
	DeviceInfo(ordinal int) (DeviceInfo, error)
}

package allocator

import (
	"fmt"
	"strconv"

	"github.com/fxnlabs/gpumem/internal/metrics"
	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/fxnlabs/gpumem/internal/transfer"
	"go.uber.org/zap"
)

// DeviceAllocator is the thin allocate/free path against the device memory
// platform, gated by a device binding. Every request reaches the platform;
// there is no caching.
type DeviceAllocator struct {
	info    MemoryInfo
	binding deviceBinding
	plat    platform.Platform
	log     *zap.Logger
	label   string
}

// NewDeviceAllocator creates a raw device allocator bound to the given
// ordinal. The ordinal never changes after construction.
func NewDeviceAllocator(plat platform.Platform, ordinal int, log *zap.Logger) *DeviceAllocator {
	log = log.Named("allocator")
	return &DeviceAllocator{
		info:    MemoryInfo{Name: "device", Kind: MemDeviceDefault, Device: ordinal},
		binding: deviceBinding{ordinal: ordinal, plat: plat, log: log},
		plat:    plat,
		log:     log,
		label:   strconv.Itoa(ordinal),
	}
}

// Info returns the allocator's identity.
func (a *DeviceAllocator) Info() MemoryInfo {
	return a.info
}

// Alloc requests size bytes from the platform on the bound device.
// Allocation must land on the correct device even if an unrelated operation
// left the ambient context pointed elsewhere, so activation is strict.
func (a *DeviceAllocator) Alloc(size uint64) (platform.Handle, error) {
	if size == 0 {
		return 0, nil
	}
	if err := a.binding.activate(true); err != nil {
		return 0, err
	}
	if err := a.binding.ensureCurrent(true); err != nil {
		return 0, err
	}
	h, err := a.plat.Allocate(size)
	if err != nil {
		return 0, fmt.Errorf("device %d: allocate %d bytes: %w", a.info.Device, size, err)
	}
	metrics.DeviceAllocTotal.WithLabelValues(a.label).Inc()
	return h, nil
}

// Free releases a handle back to the platform. Activation is best-effort and
// a platform free failure is swallowed: frees commonly run during shutdown,
// and leaking one buffer is preferable to aborting mid-teardown.
func (a *DeviceAllocator) Free(h platform.Handle) error {
	if h == 0 {
		return nil
	}
	_ = a.binding.activate(false)
	_ = a.binding.ensureCurrent(false)
	if err := a.plat.Free(h); err != nil {
		metrics.DeviceFreeFailures.WithLabelValues(a.label).Inc()
		a.log.Warn("device free failed",
			zap.Int("device", a.info.Device),
			zap.Error(err))
		return nil
	}
	metrics.DeviceFreeTotal.WithLabelValues(a.label).Inc()
	return nil
}

// CreateFence mints a fence from the transfer handler for this device.
func (a *DeviceAllocator) CreateFence(r transfer.Resolver) (transfer.Fence, error) {
	return resolveFence(r, a.info)
}

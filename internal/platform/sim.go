package platform

import (
	"fmt"
	"sync"
)

// handleStride keeps simulated addresses aligned and non-overlapping without
// tracking sizes.
const handleStride = 256

// SimCounters is a snapshot of the platform call counters kept by SimPlatform.
type SimCounters struct {
	Allocs       int
	Frees        int
	PinnedAllocs int
	PinnedFrees  int
	DeviceSets   int
}

// SimPlatform is an in-process Platform used when no GPU is present and as a
// substitutable fake in tests. It hands out monotonically increasing fake
// addresses, keeps an active-device register and counts every platform call.
type SimPlatform struct {
	mu       sync.Mutex
	devices  int
	active   int
	nextAddr uintptr
	live     map[Handle]uint64
	pinned   map[Handle]uint64
	counters SimCounters

	// Injectable failures for exercising error paths.
	AllocErr     error
	FreeErr      error
	GetDeviceErr error
	SetDeviceErr error
}

// NewSimPlatform creates a simulated platform with the given device count.
func NewSimPlatform(devices int) *SimPlatform {
	if devices < 1 {
		devices = 1
	}
	return &SimPlatform{
		devices:  devices,
		nextAddr: 0x10000,
		live:     make(map[Handle]uint64),
		pinned:   make(map[Handle]uint64),
	}
}

// Allocate hands out a fresh fake address for size bytes.
func (p *SimPlatform) Allocate(size uint64) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.Allocs++
	if p.AllocErr != nil {
		return 0, p.AllocErr
	}
	h := Handle(p.nextAddr)
	p.nextAddr += handleStride * (uintptr(size)/handleStride + 1)
	p.live[h] = size
	return h, nil
}

// Free releases a fake device address. Freeing an address the platform never
// issued (or already released) is reported as an error, the way a real
// runtime reports an invalid device pointer.
func (p *SimPlatform) Free(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.Frees++
	if p.FreeErr != nil {
		return p.FreeErr
	}
	if _, ok := p.live[h]; !ok {
		return fmt.Errorf("invalid device pointer %#x", uintptr(h))
	}
	delete(p.live, h)
	return nil
}

// AllocatePinned hands out a fresh fake page-locked host address.
func (p *SimPlatform) AllocatePinned(size uint64) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.PinnedAllocs++
	if p.AllocErr != nil {
		return 0, p.AllocErr
	}
	h := Handle(p.nextAddr)
	p.nextAddr += handleStride * (uintptr(size)/handleStride + 1)
	p.pinned[h] = size
	return h, nil
}

// FreePinned releases a fake pinned host address.
func (p *SimPlatform) FreePinned(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.PinnedFrees++
	if p.FreeErr != nil {
		return p.FreeErr
	}
	if _, ok := p.pinned[h]; !ok {
		return fmt.Errorf("invalid pinned host pointer %#x", uintptr(h))
	}
	delete(p.pinned, h)
	return nil
}

// ActiveDevice reports the simulated active-device register.
func (p *SimPlatform) ActiveDevice() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.GetDeviceErr != nil {
		return 0, p.GetDeviceErr
	}
	return p.active, nil
}

// SetActiveDevice switches the simulated active-device register.
func (p *SimPlatform) SetActiveDevice(ordinal int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.DeviceSets++
	if p.SetDeviceErr != nil {
		return p.SetDeviceErr
	}
	if ordinal < 0 || ordinal >= p.devices {
		return fmt.Errorf("invalid device ordinal %d", ordinal)
	}
	p.active = ordinal
	return nil
}

// DeviceCount reports the configured device count.
func (p *SimPlatform) DeviceCount() (int, error) {
	return p.devices, nil
}

// DeviceInfo returns synthetic information for the given ordinal.
func (p *SimPlatform) DeviceInfo(ordinal int) (DeviceInfo, error) {
	if ordinal < 0 || ordinal >= p.devices {
		return DeviceInfo{}, fmt.Errorf("invalid device ordinal %d", ordinal)
	}
	return DeviceInfo{
		Ordinal:           ordinal,
		Name:              fmt.Sprintf("Simulated Device %d", ordinal),
		TotalMemory:       8 << 30,
		ComputeCapability: "N/A",
	}, nil
}

// Counters returns a snapshot of the call counters.
func (p *SimPlatform) Counters() SimCounters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// LiveAllocations reports how many device allocations are currently
// outstanding.
func (p *SimPlatform) LiveAllocations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// LivePinned reports how many pinned host allocations are currently
// outstanding.
func (p *SimPlatform) LivePinned() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pinned)
}

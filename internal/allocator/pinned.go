package allocator

import (
	"fmt"

	"github.com/fxnlabs/gpumem/internal/metrics"
	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/fxnlabs/gpumem/internal/transfer"
)

// PinnedAllocator allocates page-locked host memory for fast host/device
// transfers. There is no pooling: staging buffers are short-lived, so every
// request reaches the platform directly. The allocator is device-independent
// apart from the ordinal used to resolve its transfer handler.
type PinnedAllocator struct {
	info MemoryInfo
	plat platform.Platform
}

// NewPinnedAllocator creates a pinned host allocator. The ordinal names the
// device its staging buffers pair with for fence resolution.
func NewPinnedAllocator(plat platform.Platform, ordinal int) *PinnedAllocator {
	return &PinnedAllocator{
		info: MemoryInfo{Name: "host-pinned", Kind: MemHostPinned, Device: ordinal},
		plat: plat,
	}
}

// Info returns the allocator's identity.
func (a *PinnedAllocator) Info() MemoryInfo {
	return a.info
}

// Alloc requests pinned host memory from the platform.
func (a *PinnedAllocator) Alloc(size uint64) (platform.Handle, error) {
	if size == 0 {
		return 0, nil
	}
	h, err := a.plat.AllocatePinned(size)
	if err != nil {
		return 0, fmt.Errorf("allocate %d pinned bytes: %w", size, err)
	}
	metrics.PinnedAllocTotal.Inc()
	return h, nil
}

// Free releases pinned host memory. Unlike device frees, a failure here is
// surfaced: pinned-host free is not expected to fail during shutdown, and a
// failure indicates a real leak or corruption risk worth halting on.
func (a *PinnedAllocator) Free(h platform.Handle) error {
	if h == 0 {
		return nil
	}
	if err := a.plat.FreePinned(h); err != nil {
		return fmt.Errorf("free pinned handle %#x: %w", uintptr(h), err)
	}
	metrics.PinnedFreeTotal.Inc()
	return nil
}

// CreateFence mints a fence from the transfer handler for the pinned
// (device, host) pair.
func (a *PinnedAllocator) CreateFence(r transfer.Resolver) (transfer.Fence, error) {
	return resolveFence(r, a.info)
}

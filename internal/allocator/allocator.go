package allocator

import (
	"fmt"

	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/fxnlabs/gpumem/internal/transfer"
)

// MemKind identifies which allocation class an allocator serves.
type MemKind int

const (
	// MemDeviceDefault is raw device memory, one platform call per request.
	MemDeviceDefault MemKind = iota
	// MemDevicePooled is device memory recycled through exact-size buckets.
	MemDevicePooled
	// MemHostPinned is page-locked host memory for fast transfers.
	MemHostPinned
	// MemExternal is memory delegated to caller-supplied hooks.
	MemExternal
)

func (k MemKind) String() string {
	switch k {
	case MemDeviceDefault:
		return "device"
	case MemDevicePooled:
		return "device-pooled"
	case MemHostPinned:
		return "host-pinned"
	case MemExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// MemoryInfo identifies an allocator instance: which device it is bound to and
// which allocation class it serves. Immutable for the allocator's lifetime.
type MemoryInfo struct {
	Name   string
	Kind   MemKind
	Device int
}

// Allocator is the contract every allocator variant satisfies.
//
// Thread-safety: a single allocator instance has a single logical owner.
// Callers must serialize access themselves; only ExternalAllocator carries
// internal locking, and that covers reserved-set bookkeeping only.
//
// Alloc failures are fatal to the caller: a partially initialized buffer is
// unsafe for a compute kernel to use, so callers propagate the error upward
// and tear the session down rather than retry.
type Allocator interface {
	// Info returns the allocator's identity.
	Info() MemoryInfo

	// Alloc returns a handle for size bytes. A zero size yields the null
	// handle without touching the underlying platform.
	Alloc(size uint64) (platform.Handle, error)

	// Free releases or recycles a handle previously returned by Alloc.
	// The null handle is a no-op.
	Free(h platform.Handle) error

	// CreateFence mints a synchronization fence tied to the transfer handler
	// registered for this allocator's (device, host) pair.
	CreateFence(r transfer.Resolver) (transfer.Fence, error)
}

// Reserver is implemented by allocators that support the reserved allocation
// class: memory excluded from pooled reuse for the caller's lifetime and
// released in full on its matching Free.
type Reserver interface {
	Reserve(size uint64) (platform.Handle, error)
}

// hostDescriptor is the host endpoint used when resolving transfer handlers.
var hostDescriptor = transfer.Descriptor{Kind: transfer.KindCPU, Mem: transfer.MemDefault}

// deviceDescriptor builds the device endpoint for an allocator identity.
func deviceDescriptor(info MemoryInfo) transfer.Descriptor {
	mem := transfer.MemDefault
	if info.Kind == MemHostPinned {
		mem = transfer.MemHostPinned
	}
	return transfer.Descriptor{Kind: transfer.KindGPU, Mem: mem, Ordinal: info.Device}
}

// resolveFence performs the shared fence-creation path: resolve the handler
// for the (device, host) pair and mint a fence from it.
func resolveFence(r transfer.Resolver, info MemoryInfo) (transfer.Fence, error) {
	h, err := r.Resolve(deviceDescriptor(info), hostDescriptor)
	if err != nil {
		return nil, fmt.Errorf("resolve transfer handler for %s: %w", info.Name, err)
	}
	return h.NewFence(), nil
}

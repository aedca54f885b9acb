package allocator

import (
	"sync"

	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/fxnlabs/gpumem/internal/transfer"
)

// Hooks are the caller-supplied allocation functions an ExternalAllocator
// delegates to. Alloc must not return the null handle for a non-zero size;
// the hook contract is success-or-abort. EmptyCache is optional and is
// invoked exactly once per successful release of a previously reserved
// handle.
type Hooks struct {
	Alloc      func(size uint64) platform.Handle
	Free       func(h platform.Handle)
	EmptyCache func()
}

// ExternalAllocator delegates allocate/free to caller-supplied hooks so a
// host application can impose its own memory budget and caching policy.
// It carries no device binding of its own; the ambient device context is the
// caller's responsibility.
//
// Only the reserved-set bookkeeping is lock-protected. The delegate calls
// themselves are assumed either thread-safe in the host-supplied hooks or
// externally serialized by the caller.
type ExternalAllocator struct {
	info  MemoryInfo
	hooks Hooks

	mu       sync.Mutex
	reserved map[platform.Handle]struct{}
}

// NewExternalAllocator creates an allocator delegating to the given hooks.
func NewExternalAllocator(ordinal int, hooks Hooks) *ExternalAllocator {
	return &ExternalAllocator{
		info:     MemoryInfo{Name: "external", Kind: MemExternal, Device: ordinal},
		hooks:    hooks,
		reserved: make(map[platform.Handle]struct{}),
	}
}

// Info returns the allocator's identity.
func (a *ExternalAllocator) Info() MemoryInfo {
	return a.info
}

// Alloc delegates to the allocate hook. A null handle for a non-zero size
// breaks the hook contract and is surfaced as an invariant violation.
func (a *ExternalAllocator) Alloc(size uint64) (platform.Handle, error) {
	if size == 0 {
		return 0, nil
	}
	h := a.hooks.Alloc(size)
	if h == 0 {
		return 0, invariantf("external allocate hook returned null for %d bytes", size)
	}
	return h, nil
}

// Free delegates to the free hook unconditionally, then removes the handle
// from the reserved set if present, notifying the cache-eviction hook once.
//
// The delegate call runs outside the lock on purpose: widening the lock over
// a host-supplied callback invites deadlock against the host's own locking.
// Concurrent frees of the same handle can therefore race on the membership
// check, which is acceptable because the pool contract forbids concurrent
// operations on the same handle anyway.
func (a *ExternalAllocator) Free(h platform.Handle) error {
	a.hooks.Free(h)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.reserved[h]; ok {
		delete(a.reserved, h)
		if a.hooks.EmptyCache != nil {
			a.hooks.EmptyCache()
		}
	}
	return nil
}

// Reserve allocates through the hook and records the handle as reserved.
// Reserving the same address twice is a programming error.
func (a *ExternalAllocator) Reserve(size uint64) (platform.Handle, error) {
	h, err := a.Alloc(size)
	if err != nil || h == 0 {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.reserved[h]; dup {
		return 0, invariantf("duplicate reservation of handle %#x", uintptr(h))
	}
	a.reserved[h] = struct{}{}
	return h, nil
}

// Reserved reports whether a handle is currently in the reserved set.
func (a *ExternalAllocator) Reserved(h platform.Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.reserved[h]
	return ok
}

// CreateFence mints a fence from the transfer handler for this device.
func (a *ExternalAllocator) CreateFence(r transfer.Resolver) (transfer.Fence, error) {
	return resolveFence(r, a.info)
}

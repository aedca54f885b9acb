package transfer

import (
	"context"
	"fmt"
	"sync"
)

// DeviceKind identifies which side of a copy a descriptor refers to.
type DeviceKind int

const (
	KindCPU DeviceKind = iota
	KindGPU
)

// MemType distinguishes default memory from page-locked host memory.
type MemType int

const (
	MemDefault MemType = iota
	MemHostPinned
)

// Descriptor identifies one endpoint of a data transfer.
type Descriptor struct {
	Kind    DeviceKind
	Mem     MemType
	Ordinal int
}

func (d Descriptor) String() string {
	kind := "cpu"
	if d.Kind == KindGPU {
		kind = "gpu"
	}
	return fmt.Sprintf("%s:%d/%d", kind, d.Ordinal, d.Mem)
}

// Fence is an opaque synchronization token ordering a producer operation
// (typically a copy) relative to a consumer's use of the same memory. Its
// semantics are defined by the handler that minted it.
type Fence interface {
	// Signal marks the producer operation as complete. Signalling more than
	// once is harmless.
	Signal()

	// Wait blocks until the producer operation has been signalled or the
	// context is cancelled.
	Wait(ctx context.Context) error
}

// Handler moves data between one device/host endpoint pair and mints fences
// ordering those moves.
type Handler interface {
	NewFence() Fence
}

// Resolver looks up the handler registered for a (device, host) endpoint pair.
type Resolver interface {
	Resolve(device, host Descriptor) (Handler, error)
}

type pairKey struct {
	device Descriptor
	host   Descriptor
}

// Registry is a map-backed Resolver. Handlers are registered once at provider
// initialization; lookups are read-mostly.
type Registry struct {
	mu       sync.RWMutex
	handlers map[pairKey]Handler
}

// NewRegistry creates an empty transfer-handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[pairKey]Handler)}
}

// Register associates a handler with a (device, host) pair, replacing any
// previous registration.
func (r *Registry) Register(device, host Descriptor, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[pairKey{device, host}] = h
}

// Resolve returns the handler registered for the given pair.
func (r *Registry) Resolve(device, host Descriptor) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[pairKey{device, host}]
	if !ok {
		return nil, fmt.Errorf("no transfer handler for %s -> %s", device, host)
	}
	return h, nil
}

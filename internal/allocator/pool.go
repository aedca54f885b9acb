package allocator

import (
	"fmt"
	"strconv"

	"github.com/fxnlabs/gpumem/internal/metrics"
	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/fxnlabs/gpumem/internal/transfer"
	"go.uber.org/zap"
)

// PoolStats is a snapshot of a pooled allocator's bookkeeping.
type PoolStats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	PooledBytes   uint64 `json:"pooledBytes"`
	ReservedBytes uint64 `json:"reservedBytes"`
	TotalHandles  int    `json:"totalHandles"`
}

// PooledAllocator wraps device allocation with a size-bucketed free-list
// cache plus a disjoint set of reserved allocations.
//
// Buckets match on exact byte size: an allocation of size N can only ever
// satisfy another request of exactly size N. No splitting, merging or
// rounding is performed. Inference workloads repeat a small set of tensor
// shapes across iterations, so exact-size hits are the common case, and the
// trade buys O(1) reuse with zero fragmentation bookkeeping.
//
// Every handle the pool ever issued is in exactly one of three states:
// owned by the caller, parked in its size bucket, or reserved. Pooled device
// memory is returned to the platform only in Close.
type PooledAllocator struct {
	info    MemoryInfo
	binding deviceBinding
	plat    platform.Platform
	log     *zap.Logger
	label   string

	freeBySize map[uint64][]platform.Handle // LIFO free list per exact size
	sizeOf     map[platform.Handle]uint64   // allocation size index for every pooled handle
	reserved   map[platform.Handle]uint64   // reserved handle -> size, disjoint from buckets

	stats  PoolStats
	closed bool
}

// NewPooledAllocator creates a pooling device allocator bound to the given
// ordinal.
func NewPooledAllocator(plat platform.Platform, ordinal int, log *zap.Logger) *PooledAllocator {
	log = log.Named("pool")
	return &PooledAllocator{
		info:       MemoryInfo{Name: "device-pooled", Kind: MemDevicePooled, Device: ordinal},
		binding:    deviceBinding{ordinal: ordinal, plat: plat, log: log},
		plat:       plat,
		log:        log,
		label:      strconv.Itoa(ordinal),
		freeBySize: make(map[uint64][]platform.Handle),
		sizeOf:     make(map[platform.Handle]uint64),
		reserved:   make(map[platform.Handle]uint64),
	}
}

// Info returns the allocator's identity.
func (a *PooledAllocator) Info() MemoryInfo {
	return a.info
}

// Alloc returns the most recently freed handle of exactly this size if one
// is parked in the pool, otherwise allocates fresh from the platform and
// records the handle's size for later pool return.
func (a *PooledAllocator) Alloc(size uint64) (platform.Handle, error) {
	if size == 0 {
		return 0, nil
	}
	if a.closed {
		return 0, invariantf("alloc on closed pool for device %d", a.info.Device)
	}
	if err := a.binding.activate(true); err != nil {
		return 0, err
	}
	if err := a.binding.ensureCurrent(true); err != nil {
		return 0, err
	}

	if bucket := a.freeBySize[size]; len(bucket) > 0 {
		h := bucket[len(bucket)-1]
		a.freeBySize[size] = bucket[:len(bucket)-1]
		a.stats.Hits++
		a.stats.PooledBytes -= size
		metrics.PoolHitTotal.WithLabelValues(a.label).Inc()
		metrics.PooledBytes.WithLabelValues(a.label).Sub(float64(size))
		return h, nil
	}

	h, err := a.plat.Allocate(size)
	if err != nil {
		return 0, fmt.Errorf("device %d: allocate %d bytes: %w", a.info.Device, size, err)
	}
	a.sizeOf[h] = size
	a.stats.Misses++
	a.stats.TotalHandles++
	metrics.PoolMissTotal.WithLabelValues(a.label).Inc()
	metrics.DeviceAllocTotal.WithLabelValues(a.label).Inc()
	return h, nil
}

// Reserve issues a fresh device allocation excluded from pooled reuse.
// The handle is released back to the platform immediately on its matching
// Free, never parked in a bucket.
func (a *PooledAllocator) Reserve(size uint64) (platform.Handle, error) {
	if size == 0 {
		return 0, nil
	}
	if a.closed {
		return 0, invariantf("reserve on closed pool for device %d", a.info.Device)
	}
	if err := a.binding.activate(true); err != nil {
		return 0, err
	}
	h, err := a.plat.Allocate(size)
	if err != nil {
		return 0, fmt.Errorf("device %d: reserve %d bytes: %w", a.info.Device, size, err)
	}
	a.reserved[h] = size
	a.stats.ReservedBytes += size
	metrics.DeviceAllocTotal.WithLabelValues(a.label).Inc()
	metrics.ReservedBytes.WithLabelValues(a.label).Add(float64(size))
	return h, nil
}

// Free recognizes reserved handles first and releases their device memory
// immediately; everything else goes back into its exact-size bucket for
// reuse without touching the platform.
func (a *PooledAllocator) Free(h platform.Handle) error {
	if h == 0 {
		return nil
	}
	_ = a.binding.activate(false)

	if size, ok := a.reserved[h]; ok {
		delete(a.reserved, h)
		a.stats.ReservedBytes -= size
		metrics.ReservedBytes.WithLabelValues(a.label).Sub(float64(size))
		a.release(h)
		return nil
	}

	size, ok := a.sizeOf[h]
	if !ok {
		return invariantf("free of handle %#x not issued by pool for device %d", uintptr(h), a.info.Device)
	}
	a.freeBySize[size] = append(a.freeBySize[size], h)
	a.stats.PooledBytes += size
	metrics.PooledBytes.WithLabelValues(a.label).Add(float64(size))
	return nil
}

// Close releases every handle the pool still tracks to the platform exactly
// once: all reserved handles plus every handle in the allocation size index,
// whether parked in a bucket or still held by a caller. The pool is unusable
// afterwards.
func (a *PooledAllocator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	_ = a.binding.activate(false)

	released := 0
	for h := range a.reserved {
		a.release(h)
		released++
	}
	for h := range a.sizeOf {
		a.release(h)
		released++
	}
	a.log.Info("pool closed",
		zap.Int("device", a.info.Device),
		zap.Int("released", released),
		zap.Uint64("hits", a.stats.Hits),
		zap.Uint64("misses", a.stats.Misses))

	a.freeBySize = make(map[uint64][]platform.Handle)
	a.sizeOf = make(map[platform.Handle]uint64)
	a.reserved = make(map[platform.Handle]uint64)
	a.stats.PooledBytes = 0
	a.stats.ReservedBytes = 0
	metrics.PooledBytes.WithLabelValues(a.label).Set(0)
	metrics.ReservedBytes.WithLabelValues(a.label).Set(0)
	return nil
}

// Stats returns a snapshot of the pool's counters.
func (a *PooledAllocator) Stats() PoolStats {
	return a.stats
}

// CreateFence mints a fence from the transfer handler for this device.
func (a *PooledAllocator) CreateFence(r transfer.Resolver) (transfer.Fence, error) {
	return resolveFence(r, a.info)
}

// release frees one handle to the platform, swallowing failures the way all
// shutdown-path device frees do.
func (a *PooledAllocator) release(h platform.Handle) {
	if err := a.plat.Free(h); err != nil {
		metrics.DeviceFreeFailures.WithLabelValues(a.label).Inc()
		a.log.Warn("device free failed",
			zap.Int("device", a.info.Device),
			zap.Error(err))
		return
	}
	metrics.DeviceFreeTotal.WithLabelValues(a.label).Inc()
}

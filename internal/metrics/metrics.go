package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Device allocation metrics
	DeviceAllocTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_device_alloc_total",
		Help: "The total number of device memory allocations issued to the platform",
	}, []string{"device"})

	DeviceFreeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_device_free_total",
		Help: "The total number of device memory releases issued to the platform",
	}, []string{"device"})

	DeviceFreeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_device_free_failures_total",
		Help: "Device memory releases the platform rejected (swallowed on shutdown paths)",
	}, []string{"device"})

	// Pool metrics
	PoolHitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_pool_hit_total",
		Help: "Allocations satisfied from the size-bucketed free list",
	}, []string{"device"})

	PoolMissTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpumem_pool_miss_total",
		Help: "Allocations that required a fresh platform allocation",
	}, []string{"device"})

	PooledBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpumem_pooled_bytes",
		Help: "Bytes currently parked in size buckets awaiting reuse",
	}, []string{"device"})

	ReservedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpumem_reserved_bytes",
		Help: "Bytes currently held by reserved (non-poolable) allocations",
	}, []string{"device"})

	// Pinned host metrics
	PinnedAllocTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpumem_pinned_alloc_total",
		Help: "The total number of pinned host memory allocations",
	})

	PinnedFreeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpumem_pinned_free_total",
		Help: "The total number of pinned host memory releases",
	})
)

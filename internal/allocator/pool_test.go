package allocator

import (
	"errors"
	"testing"

	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPool(t *testing.T, devices int) (*PooledAllocator, *platform.SimPlatform) {
	t.Helper()
	sim := platform.NewSimPlatform(devices)
	return NewPooledAllocator(sim, 0, zap.NewNop()), sim
}

func TestPooledAllocator_ReusesIdenticalHandle(t *testing.T) {
	pool, sim := newPool(t, 1)

	a, err := pool.Alloc(1024)
	require.NoError(t, err)
	require.NoError(t, pool.Free(a))

	b, err := pool.Alloc(1024)
	require.NoError(t, err)

	assert.Equal(t, a, b, "freed handle must be reused for the identical size")
	assert.Equal(t, 1, sim.Counters().Allocs, "platform allocate must be invoked exactly once")
}

func TestPooledAllocator_LIFOReuse(t *testing.T) {
	pool, _ := newPool(t, 1)

	a, err := pool.Alloc(512)
	require.NoError(t, err)
	b, err := pool.Alloc(512)
	require.NoError(t, err)

	require.NoError(t, pool.Free(a))
	require.NoError(t, pool.Free(b))

	// Last freed comes back first.
	got, err := pool.Alloc(512)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	got, err = pool.Alloc(512)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestPooledAllocator_ExactSizeOnly(t *testing.T) {
	pool, sim := newPool(t, 1)

	a, err := pool.Alloc(1024)
	require.NoError(t, err)
	require.NoError(t, pool.Free(a))

	// A different size must not be satisfied by the parked 1024-byte handle.
	b, err := pool.Alloc(2048)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, sim.Counters().Allocs)
}

func TestPooledAllocator_ZeroSize(t *testing.T) {
	pool, sim := newPool(t, 1)

	h, err := pool.Alloc(0)
	require.NoError(t, err)
	assert.Equal(t, platform.Handle(0), h)

	h, err = pool.Reserve(0)
	require.NoError(t, err)
	assert.Equal(t, platform.Handle(0), h)

	assert.Equal(t, 0, sim.Counters().Allocs)
}

func TestPooledAllocator_ReservedNeverPooled(t *testing.T) {
	pool, sim := newPool(t, 1)

	r, err := pool.Reserve(1024)
	require.NoError(t, err)

	// A plain Alloc of the same size must not hand out the reserved handle.
	h, err := pool.Alloc(1024)
	require.NoError(t, err)
	assert.NotEqual(t, r, h)

	// Freeing the reservation releases device memory immediately.
	frees := sim.Counters().Frees
	require.NoError(t, pool.Free(r))
	assert.Equal(t, frees+1, sim.Counters().Frees)

	// And the handle is gone for good: it never lands in a bucket.
	h2, err := pool.Alloc(1024)
	require.NoError(t, err)
	assert.NotEqual(t, r, h2)
}

func TestPooledAllocator_PooledFreeDefersRelease(t *testing.T) {
	pool, sim := newPool(t, 1)

	a, err := pool.Alloc(1024)
	require.NoError(t, err)
	b, err := pool.Alloc(2048)
	require.NoError(t, err)

	require.NoError(t, pool.Free(a))
	require.NoError(t, pool.Free(b))
	assert.Equal(t, 0, sim.Counters().Frees, "pooled frees must not reach the platform")

	require.NoError(t, pool.Close())
	assert.Equal(t, 2, sim.Counters().Frees, "close must release each handle exactly once")
	assert.Equal(t, 0, sim.LiveAllocations())
}

func TestPooledAllocator_CloseReleasesOutstandingHandles(t *testing.T) {
	pool, sim := newPool(t, 1)

	// One in a bucket, one still held by the caller, one reserved.
	a, err := pool.Alloc(1024)
	require.NoError(t, err)
	require.NoError(t, pool.Free(a))
	_, err = pool.Alloc(4096)
	require.NoError(t, err)
	_, err = pool.Reserve(512)
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	assert.Equal(t, 3, sim.Counters().Frees)
	assert.Equal(t, 0, sim.LiveAllocations())

	// Close is idempotent.
	require.NoError(t, pool.Close())
	assert.Equal(t, 3, sim.Counters().Frees)
}

func TestPooledAllocator_UntrackedFreeIsInvariantViolation(t *testing.T) {
	pool, _ := newPool(t, 1)

	err := pool.Free(platform.Handle(0xdead))
	require.Error(t, err)
	var inv *InvariantError
	assert.ErrorAs(t, err, &inv)
}

func TestPooledAllocator_SwitchesBackBeforeAlloc(t *testing.T) {
	sim := platform.NewSimPlatform(2)
	pool := NewPooledAllocator(sim, 0, zap.NewNop())

	require.NoError(t, sim.SetActiveDevice(1))

	_, err := pool.Alloc(256)
	require.NoError(t, err)

	active, err := sim.ActiveDevice()
	require.NoError(t, err)
	assert.Equal(t, 0, active)
}

func TestPooledAllocator_AllocFailsWhenSwitchFails(t *testing.T) {
	sim := platform.NewSimPlatform(2)
	pool := NewPooledAllocator(sim, 0, zap.NewNop())

	require.NoError(t, sim.SetActiveDevice(1))
	sim.SetDeviceErr = errors.New("context lost")

	_, err := pool.Alloc(256)
	assert.Error(t, err)
}

func TestPooledAllocator_Stats(t *testing.T) {
	pool, _ := newPool(t, 1)

	h, err := pool.Alloc(1024)
	require.NoError(t, err)
	require.NoError(t, pool.Free(h))
	_, err = pool.Alloc(1024)
	require.NoError(t, err)
	_, err = pool.Reserve(2048)
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(0), stats.PooledBytes)
	assert.Equal(t, uint64(2048), stats.ReservedBytes)
	assert.Equal(t, 1, stats.TotalHandles)
}

func TestPooledAllocator_UseAfterClose(t *testing.T) {
	pool, _ := newPool(t, 1)
	require.NoError(t, pool.Close())

	_, err := pool.Alloc(256)
	var inv *InvariantError
	assert.ErrorAs(t, err, &inv)
}

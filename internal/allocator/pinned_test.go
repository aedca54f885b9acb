package allocator

import (
	"errors"
	"testing"

	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinnedAllocator_AllocFree(t *testing.T) {
	sim := platform.NewSimPlatform(1)
	a := NewPinnedAllocator(sim, 0)

	h, err := a.Alloc(4096)
	require.NoError(t, err)
	assert.NotEqual(t, platform.Handle(0), h)
	assert.Equal(t, 1, sim.Counters().PinnedAllocs)
	assert.Equal(t, 0, sim.Counters().Allocs, "pinned requests must not touch device memory")

	require.NoError(t, a.Free(h))
	assert.Equal(t, 0, sim.LivePinned())
}

func TestPinnedAllocator_ZeroSize(t *testing.T) {
	sim := platform.NewSimPlatform(1)
	a := NewPinnedAllocator(sim, 0)

	h, err := a.Alloc(0)
	require.NoError(t, err)
	assert.Equal(t, platform.Handle(0), h)
	assert.Equal(t, 0, sim.Counters().PinnedAllocs)
}

func TestPinnedAllocator_FreeFailureIsFatal(t *testing.T) {
	sim := platform.NewSimPlatform(1)
	a := NewPinnedAllocator(sim, 0)

	h, err := a.Alloc(4096)
	require.NoError(t, err)

	sim.FreeErr = errors.New("pinned region corrupt")
	assert.Error(t, a.Free(h), "pinned free failures are surfaced, not swallowed")
}

func TestPinnedAllocator_Info(t *testing.T) {
	sim := platform.NewSimPlatform(1)
	a := NewPinnedAllocator(sim, 0)

	info := a.Info()
	assert.Equal(t, MemHostPinned, info.Kind)
}

package provider

import (
	"context"
	"testing"
	"time"

	"github.com/fxnlabs/gpumem/internal/allocator"
	"github.com/fxnlabs/gpumem/internal/config"
	"github.com/fxnlabs/gpumem/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(kind string, devices ...int) *config.Config {
	cfg := config.Default()
	cfg.Provider.Allocator = kind
	cfg.Provider.Devices = devices
	return cfg
}

func TestProvider_PooledLifecycle(t *testing.T) {
	sim := platform.NewSimPlatform(2)
	prov, err := New(testConfig("pooled", 0, 1), sim, zap.NewNop())
	require.NoError(t, err)
	assert.NotEmpty(t, prov.ID())

	a0, err := prov.Allocator(0)
	require.NoError(t, err)
	a1, err := prov.Allocator(1)
	require.NoError(t, err)
	assert.NotEqual(t, a0.Info().Device, a1.Info().Device)

	h, err := a0.Alloc(1024)
	require.NoError(t, err)
	require.NoError(t, a0.Free(h))

	// Pool return keeps the memory; Close releases it.
	assert.Equal(t, 1, sim.LiveAllocations())
	require.NoError(t, prov.Close())
	assert.Equal(t, 0, sim.LiveAllocations())
}

func TestProvider_RawAllocators(t *testing.T) {
	sim := platform.NewSimPlatform(1)
	prov, err := New(testConfig("raw", 0), sim, zap.NewNop())
	require.NoError(t, err)
	defer prov.Close()

	a, err := prov.Allocator(0)
	require.NoError(t, err)
	assert.Equal(t, allocator.MemDeviceDefault, a.Info().Kind)
}

func TestProvider_UnknownDevice(t *testing.T) {
	sim := platform.NewSimPlatform(1)
	prov, err := New(testConfig("pooled", 0), sim, zap.NewNop())
	require.NoError(t, err)
	defer prov.Close()

	_, err = prov.Allocator(7)
	assert.Error(t, err)
}

func TestProvider_PinnedStaging(t *testing.T) {
	sim := platform.NewSimPlatform(1)
	cfg := testConfig("pooled", 0)

	prov, err := New(cfg, sim, zap.NewNop())
	require.NoError(t, err)
	defer prov.Close()
	require.NotNil(t, prov.Pinned())

	h, err := prov.Pinned().Alloc(4096)
	require.NoError(t, err)
	require.NoError(t, prov.Pinned().Free(h))

	cfg.Provider.PinnedStaging = false
	prov2, err := New(cfg, sim, zap.NewNop())
	require.NoError(t, err)
	defer prov2.Close()
	assert.Nil(t, prov2.Pinned())
}

func TestProvider_FenceResolution(t *testing.T) {
	sim := platform.NewSimPlatform(2)
	prov, err := New(testConfig("pooled", 0, 1), sim, zap.NewNop())
	require.NoError(t, err)
	defer prov.Close()

	for _, ordinal := range []int{0, 1} {
		a, err := prov.Allocator(ordinal)
		require.NoError(t, err)

		fence, err := a.CreateFence(prov.Resolver())
		require.NoError(t, err)

		fence.Signal()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		assert.NoError(t, fence.Wait(ctx))
		cancel()
	}

	fence, err := prov.Pinned().CreateFence(prov.Resolver())
	require.NoError(t, err)
	fence.Signal()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, fence.Wait(ctx))
}

func TestProvider_UnknownAllocatorKind(t *testing.T) {
	sim := platform.NewSimPlatform(1)
	_, err := New(testConfig("arena", 0), sim, zap.NewNop())
	assert.Error(t, err)
}

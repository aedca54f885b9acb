package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveRegistered(t *testing.T) {
	reg := NewRegistry()
	device := Descriptor{Kind: KindGPU, Ordinal: 0}
	host := Descriptor{Kind: KindCPU}

	handler := NewStreamHandler()
	reg.Register(device, host, handler)

	got, err := reg.Resolve(device, host)
	require.NoError(t, err)
	assert.Equal(t, Handler(handler), got)
}

func TestRegistry_ResolveUnregistered(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve(Descriptor{Kind: KindGPU, Ordinal: 3}, Descriptor{Kind: KindCPU})
	assert.Error(t, err)
}

func TestStreamFence_SignalThenWait(t *testing.T) {
	fence := NewStreamHandler().NewFence()
	fence.Signal()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, fence.Wait(ctx))
}

func TestStreamFence_DoubleSignalHarmless(t *testing.T) {
	fence := NewStreamHandler().NewFence()
	fence.Signal()
	fence.Signal()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, fence.Wait(ctx))
}

func TestStreamFence_WaitRespectsContext(t *testing.T) {
	fence := NewStreamHandler().NewFence()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := fence.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamFence_WaitUnblocksOnSignal(t *testing.T) {
	fence := NewStreamHandler().NewFence()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- fence.Wait(ctx)
	}()

	fence.Signal()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("fence wait did not unblock")
	}
}

package transfer

import (
	"context"
	"sync"
)

// StreamHandler is an in-process transfer handler whose fences are plain
// completion signals. The CUDA build records an event on the copy stream
// instead; the fence contract is the same either way.
type StreamHandler struct{}

// NewStreamHandler creates a stream-ordered transfer handler.
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{}
}

// NewFence mints a fresh, unsignalled fence.
func (h *StreamHandler) NewFence() Fence {
	return &streamFence{done: make(chan struct{})}
}

type streamFence struct {
	once sync.Once
	done chan struct{}
}

func (f *streamFence) Signal() {
	f.once.Do(func() { close(f.done) })
}

func (f *streamFence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

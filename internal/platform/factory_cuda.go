//go:build cuda
// +build cuda

package platform

import "go.uber.org/zap"

// NewPlatform creates the best available platform when the cuda build tag is
// present, falling back to the simulated platform if no device is visible.
func NewPlatform(log *zap.Logger) Platform {
	p, err := NewCudartPlatform()
	if err != nil {
		log.Warn("CUDA platform not available, falling back to simulation", zap.Error(err))
		return NewSimPlatform(1)
	}
	log.Info("Using CUDA runtime platform")
	return p
}

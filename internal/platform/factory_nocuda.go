//go:build !cuda
// +build !cuda

package platform

import "go.uber.org/zap"

// NewPlatform creates an appropriate platform for the build.
// Without CUDA support it always returns the simulated platform.
func NewPlatform(log *zap.Logger) Platform {
	log.Info("Using simulated platform (compiled without CUDA support)")
	return NewSimPlatform(1)
}

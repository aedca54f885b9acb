//go:build !cuda
// +build !cuda

package platform

import "fmt"

// CudartPlatform is a stub type when CUDA is not available
type CudartPlatform struct{}

// NewCudartPlatform reports that the binary was built without CUDA support.
func NewCudartPlatform() (*CudartPlatform, error) {
	return nil, fmt.Errorf("built without CUDA support")
}

// Stub implementations to satisfy the Platform interface
func (p *CudartPlatform) Allocate(size uint64) (Handle, error) {
	panic("CUDA platform not available")
}

func (p *CudartPlatform) Free(h Handle) error {
	panic("CUDA platform not available")
}

func (p *CudartPlatform) AllocatePinned(size uint64) (Handle, error) {
	panic("CUDA platform not available")
}

func (p *CudartPlatform) FreePinned(h Handle) error {
	panic("CUDA platform not available")
}

func (p *CudartPlatform) ActiveDevice() (int, error) {
	panic("CUDA platform not available")
}

func (p *CudartPlatform) SetActiveDevice(ordinal int) error {
	panic("CUDA platform not available")
}

func (p *CudartPlatform) DeviceCount() (int, error) {
	return 0, nil
}

func (p *CudartPlatform) DeviceInfo(ordinal int) (DeviceInfo, error) {
	return DeviceInfo{Name: "CUDA not available"}, nil
}

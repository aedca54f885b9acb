//go:build cuda
// +build cuda

package platform

/*
#cgo LDFLAGS: -lcudart
#include <cuda_runtime.h>
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// CudartPlatform implements Platform against the NVIDIA CUDA runtime.
type CudartPlatform struct{}

// NewCudartPlatform creates a CUDA runtime platform. It fails if no CUDA
// device is visible.
func NewCudartPlatform() (*CudartPlatform, error) {
	var n C.int
	if err := cudaError(C.cudaGetDeviceCount(&n)); err != nil {
		return nil, fmt.Errorf("CUDA device check failed: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("no CUDA device")
	}
	return &CudartPlatform{}, nil
}

// Allocate requests device memory on the active device via cudaMalloc.
func (p *CudartPlatform) Allocate(size uint64) (Handle, error) {
	var ptr unsafe.Pointer
	if err := cudaError(C.cudaMalloc(&ptr, C.size_t(size))); err != nil {
		return 0, err
	}
	return Handle(uintptr(ptr)), nil
}

// Free releases device memory via cudaFree.
func (p *CudartPlatform) Free(h Handle) error {
	return cudaError(C.cudaFree(unsafe.Pointer(uintptr(h))))
}

// AllocatePinned requests page-locked host memory via cudaMallocHost.
func (p *CudartPlatform) AllocatePinned(size uint64) (Handle, error) {
	var ptr unsafe.Pointer
	if err := cudaError(C.cudaMallocHost(&ptr, C.size_t(size))); err != nil {
		return 0, err
	}
	return Handle(uintptr(ptr)), nil
}

// FreePinned releases page-locked host memory via cudaFreeHost.
func (p *CudartPlatform) FreePinned(h Handle) error {
	return cudaError(C.cudaFreeHost(unsafe.Pointer(uintptr(h))))
}

// ActiveDevice reports the current CUDA device.
func (p *CudartPlatform) ActiveDevice() (int, error) {
	var dev C.int
	if err := cudaError(C.cudaGetDevice(&dev)); err != nil {
		return 0, err
	}
	return int(dev), nil
}

// SetActiveDevice switches the current CUDA device.
func (p *CudartPlatform) SetActiveDevice(ordinal int) error {
	return cudaError(C.cudaSetDevice(C.int(ordinal)))
}

// DeviceCount reports the number of visible CUDA devices.
func (p *CudartPlatform) DeviceCount() (int, error) {
	var n C.int
	if err := cudaError(C.cudaGetDeviceCount(&n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

// DeviceInfo queries cudaGetDeviceProperties for the given ordinal.
func (p *CudartPlatform) DeviceInfo(ordinal int) (DeviceInfo, error) {
	var props C.struct_cudaDeviceProp
	if err := cudaError(C.cudaGetDeviceProperties(&props, C.int(ordinal))); err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{
		Ordinal:           ordinal,
		Name:              C.GoString(&props.name[0]),
		TotalMemory:       uint64(props.totalGlobalMem),
		ComputeCapability: fmt.Sprintf("%d.%d", int(props.major), int(props.minor)),
	}, nil
}

// cudaError converts a CUDA runtime status to a Go error.
func cudaError(code C.cudaError_t) error {
	if code == C.cudaSuccess {
		return nil
	}
	return fmt.Errorf("cuda: %s", C.GoString(C.cudaGetErrorString(code)))
}

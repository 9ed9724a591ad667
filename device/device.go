// Package device defines the GPU device interface the driver runs on.
//
// A Device hands out regions of device-visible memory, each with a stable
// physical base address and a local mapping, and runs compute jobs over
// those regions.
package device

import (
	"context"
	"errors"
	"io"
)

// Device errors. They are reported to the caller unchanged.
var (
	ErrTimeout = errors.New("device timeout")
	ErrFault   = errors.New("device fault")
	ErrClosed  = errors.New("device closed")
)

// Memory is a region of device-visible memory.
type Memory interface {
	io.ReaderAt
	io.WriterAt

	// Handle identifies the region to the device.
	Handle() uint32
	// PhysAddr is the base address the QPU sees.
	PhysAddr() uint32
	// Size is the region size in bytes.
	Size() uint32
}

// Device allocates memory and runs compute jobs.
type Device interface {
	// Alloc allocates a region of at least size bytes.
	Alloc(size uint32) (Memory, error)
	// Free releases a region.
	Free(m Memory) error
	// Submit runs a job and blocks until it completes or ctx is done.
	Submit(ctx context.Context, job Job) error
	// Close releases the device.
	Close() error
}

// CSDConfig is the compute shader dispatch configuration.
type CSDConfig struct {
	WorkGroups [3]uint32 // Work group counts and settings for X, Y, Z
	Settings   uint32    // Work group size and batching settings
	Batches    uint32    // Number of batches minus one
	Shader     uint32    // Shader entry address
	Uniforms   uint32    // Uniform stream address, 0 for none
}

// Words returns the seven configuration words in submission order.
func (c CSDConfig) Words() [7]uint32 {
	return [7]uint32{
		c.WorkGroups[0], c.WorkGroups[1], c.WorkGroups[2],
		c.Settings,
		c.Batches,
		c.Shader,
		c.Uniforms,
	}
}

// Job is one compute submission.
type Job struct {
	Config CSDConfig
	// Handles lists every memory region the job touches.
	Handles []uint32
}

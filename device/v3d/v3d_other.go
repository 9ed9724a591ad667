//go:build !linux

package v3d

import (
	"context"
	"fmt"

	"github.com/sarchlab/v3dqpu/device"
)

// Device is unavailable off Linux.
type Device struct{}

// Open always fails off Linux.
func Open(path string) (*Device, error) {
	return nil, fmt.Errorf("%w: cannot open %s", ErrUnsupported, path)
}

func (d *Device) Alloc(uint32) (device.Memory, error) { return nil, ErrUnsupported }

func (d *Device) Free(device.Memory) error { return ErrUnsupported }

func (d *Device) Submit(context.Context, device.Job) error { return ErrUnsupported }

func (d *Device) Close() error { return nil }

var _ device.Device = (*Device)(nil)

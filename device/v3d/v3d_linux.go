//go:build linux

package v3d

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sarchlab/v3dqpu/device"
)

// Device is an open V3D DRM node.
type Device struct {
	mu     sync.Mutex
	fd     int
	bos    map[uint32]*bo
	closed bool
}

// Open opens the DRM node at path.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Device{fd: fd, bos: make(map[uint32]*bo)}, nil
}

func (d *Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	for i := 0; ; i++ {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
		switch {
		case errno == 0:
			return nil
		case (errno == unix.EINTR || errno == unix.EAGAIN) && i < maxRetryOnIntr:
			continue
		case errno == unix.ETIME:
			return fmt.Errorf("%w: %v", device.ErrTimeout, errno)
		default:
			return errno
		}
	}
}

// Alloc creates a buffer object and maps it into the process.
func (d *Device) Alloc(size uint32) (device.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, device.ErrClosed
	}

	size = (size + defaultPageSize - 1) &^ (defaultPageSize - 1)

	create := createBO{Size: size}
	if err := d.ioctl(ioctlCreateBO, unsafe.Pointer(&create)); err != nil {
		return nil, fmt.Errorf("create bo: %w", err)
	}

	mm := mmapBO{Handle: create.Handle}
	if err := d.ioctl(ioctlMmapBO, unsafe.Pointer(&mm)); err != nil {
		d.closeHandle(create.Handle)
		return nil, fmt.Errorf("mmap bo: %w", err)
	}

	data, err := unix.Mmap(d.fd, int64(mm.Offset), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		d.closeHandle(create.Handle)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	b := &bo{handle: create.Handle, addr: create.Offset, data: data}
	d.bos[b.handle] = b
	return b, nil
}

// Free unmaps and closes a buffer object.
func (d *Device) Free(m device.Memory) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.bos[m.Handle()]
	if !ok {
		return fmt.Errorf("unknown bo handle %d", m.Handle())
	}
	delete(d.bos, b.handle)
	return d.release(b)
}

func (d *Device) release(b *bo) error {
	err := unix.Munmap(b.data)
	b.data = nil
	if cerr := d.closeHandle(b.handle); err == nil {
		err = cerr
	}
	return err
}

func (d *Device) closeHandle(handle uint32) error {
	arg := gemClose{Handle: handle}
	return d.ioctl(ioctlGemClose, unsafe.Pointer(&arg))
}

// Submit dispatches a compute job and waits for every buffer it touches.
func (d *Device) Submit(ctx context.Context, job device.Job) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return device.ErrClosed
	}
	if len(job.Handles) == 0 {
		return fmt.Errorf("%w: job without memory", device.ErrFault)
	}

	handles := make([]uint32, len(job.Handles))
	copy(handles, job.Handles)

	submit := submitCSD{
		Cfg:           job.Config.Words(),
		BOHandles:     uint64(uintptr(unsafe.Pointer(&handles[0]))),
		BOHandleCount: uint32(len(handles)),
	}
	err := d.ioctl(ioctlSubmitCSD, unsafe.Pointer(&submit))
	runtime.KeepAlive(handles)
	if err != nil {
		return fmt.Errorf("%w: submit: %v", device.ErrFault, err)
	}

	for _, h := range handles {
		wait := waitBO{Handle: h, TimeoutNs: timeoutNs(ctx)}
		if err := d.ioctl(ioctlWaitBO, unsafe.Pointer(&wait)); err != nil {
			if errors.Is(err, device.ErrTimeout) {
				return err
			}
			return fmt.Errorf("%w: wait bo %d: %v", device.ErrFault, h, err)
		}
	}

	return nil
}

func timeoutNs(ctx context.Context) uint64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultTimeout
	}
	left := time.Until(deadline)
	if left < 0 {
		return 0
	}
	return uint64(left.Nanoseconds())
}

// Close releases every buffer object and the DRM node.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	for h, b := range d.bos {
		errs = append(errs, d.release(b))
		delete(d.bos, h)
	}
	errs = append(errs, unix.Close(d.fd))
	return errors.Join(errs...)
}

type bo struct {
	handle uint32
	addr   uint32
	data   []byte
}

func (b *bo) Handle() uint32 { return b.handle }

func (b *bo) PhysAddr() uint32 { return b.addr }

func (b *bo) Size() uint32 { return uint32(len(b.data)) }

func (b *bo) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(b.data)) {
		return 0, fmt.Errorf("read [%d, %d) outside bo of %d bytes", off, off+int64(len(p)), len(b.data))
	}
	return copy(p, b.data[off:]), nil
}

func (b *bo) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(b.data)) {
		return 0, fmt.Errorf("write [%d, %d) outside bo of %d bytes", off, off+int64(len(p)), len(b.data))
	}
	return copy(b.data[off:], p), nil
}

var _ device.Device = (*Device)(nil)

// Package sim provides a simulated V3D device.
//
// Memory is backed by an akita storage. Submitted jobs are not executed;
// the shader is fetched through an instruction cache, decoded and checked
// instead. Every word must decode, label branches must land inside the
// shader's region, and the thread must end before the code runs out.
package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/v3dqpu/device"
	"github.com/sarchlab/v3dqpu/insts"
)

// DefaultCapacity is the default simulated memory size (64MB).
const DefaultCapacity = 64 * 1024 * 1024

// BaseAddr is the physical address of the first allocated byte.
const BaseAddr = 0xC0000000

const pageSize = 4096

// Run records one submitted job.
type Run struct {
	Job device.Job
	// Instructions is the number of words up to the end of the thread,
	// including the delay slots of the final thread switch.
	Instructions int
	// ThreadSwitches counts thrsw signals in the shader.
	ThreadSwitches int
	// Cycles is the total instruction fetch latency.
	Cycles uint64
	// ICache holds the instruction cache statistics of the job.
	ICache CacheStats
}

// Device is a simulated V3D device.
type Device struct {
	mu sync.Mutex

	storage  *mem.Storage
	capacity uint64
	next     uint64

	regions    map[uint32]*region
	nextHandle uint32

	latency time.Duration
	fault   error
	closed  bool

	cacheConfig CacheConfig
	icache      *icache

	runs    []Run
	decoder *insts.Decoder
}

// Option configures a simulated device.
type Option func(*Device)

// WithCapacity sets the simulated memory size in bytes.
func WithCapacity(capacity uint64) Option {
	return func(d *Device) {
		d.capacity = capacity
	}
}

// WithLatency makes every job take the given time to complete.
func WithLatency(latency time.Duration) Option {
	return func(d *Device) {
		d.latency = latency
	}
}

// WithCache sets the instruction cache configuration.
func WithCache(config CacheConfig) Option {
	return func(d *Device) {
		d.cacheConfig = config
	}
}

// WithFault makes every job fail with a device fault carrying err.
func WithFault(err error) Option {
	return func(d *Device) {
		d.fault = err
	}
}

// New creates a simulated device.
func New(opts ...Option) *Device {
	d := &Device{
		capacity:    DefaultCapacity,
		cacheConfig: DefaultCacheConfig(),
		regions:     make(map[uint32]*region),
		nextHandle:  1,
		decoder:     insts.NewDecoder(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.storage = mem.NewStorage(d.capacity)
	d.icache = newICache(d.cacheConfig, d.storage)
	return d
}

// Alloc allocates a page-aligned region.
func (d *Device) Alloc(size uint32) (device.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, device.ErrClosed
	}
	if size == 0 {
		return nil, fmt.Errorf("cannot allocate an empty region")
	}

	aligned := (uint64(size) + pageSize - 1) &^ (pageSize - 1)
	if d.next+aligned > d.capacity {
		return nil, fmt.Errorf("out of device memory: need %d bytes, %d left",
			aligned, d.capacity-d.next)
	}

	r := &region{
		dev:    d,
		handle: d.nextHandle,
		offset: d.next,
		size:   size,
	}
	d.next += aligned
	d.nextHandle++
	d.regions[r.handle] = r

	return r, nil
}

// Free releases a region. The simulated address space is not reused.
func (d *Device) Free(m device.Memory) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.regions[m.Handle()]; !ok {
		return fmt.Errorf("unknown memory handle %d", m.Handle())
	}
	delete(d.regions, m.Handle())
	return nil
}

// Submit checks the shader and completes the job after the configured
// latency.
func (d *Device) Submit(ctx context.Context, job device.Job) error {
	run, err := d.check(job)
	if err != nil {
		return err
	}

	if d.latency > 0 {
		timer := time.NewTimer(d.latency)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", device.ErrTimeout, ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	}

	d.mu.Lock()
	d.runs = append(d.runs, run)
	d.mu.Unlock()

	return nil
}

// Runs returns every completed job.
func (d *Device) Runs() []Run {
	d.mu.Lock()
	defer d.mu.Unlock()

	runs := make([]Run, len(d.runs))
	copy(runs, d.runs)
	return runs
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.regions = make(map[uint32]*region)
	return nil
}

func (d *Device) check(job device.Job) (Run, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	run := Run{Job: job}

	if d.closed {
		return run, device.ErrClosed
	}
	if d.fault != nil {
		return run, fmt.Errorf("%w: %v", device.ErrFault, d.fault)
	}

	for _, h := range job.Handles {
		if _, ok := d.regions[h]; !ok {
			return run, fmt.Errorf("%w: unknown memory handle %d", device.ErrFault, h)
		}
	}

	shader := job.Config.Shader
	if shader%insts.WordSize != 0 {
		return run, fmt.Errorf("%w: unaligned shader address %#x", device.ErrFault, shader)
	}

	r := d.regionAt(shader)
	if r == nil {
		return run, fmt.Errorf("%w: shader address %#x outside device memory", device.ErrFault, shader)
	}

	d.icache.invalidate()
	err := d.scan(r, shader, &run)
	run.ICache = d.icache.resetStats()
	if err != nil {
		return run, err
	}
	return run, nil
}

func (d *Device) regionAt(addr uint32) *region {
	for _, r := range d.regions {
		if addr >= r.PhysAddr() && uint64(addr) < uint64(r.PhysAddr())+uint64(r.size) {
			return r
		}
	}
	return nil
}

// scan walks the shader until the thread ends. The thread ends at the
// first thread switch after a back-to-back pair, plus its two delay slots.
func (d *Device) scan(r *region, shader uint32, run *Run) error {
	start := uint64(shader - r.PhysAddr())
	count := (uint64(r.size) - start) / insts.WordSize
	prevThrsw, lastThrsw := false, false
	end := -1

	for i := 0; uint64(i) < count; i++ {
		if end >= 0 && i > end {
			break
		}

		data, latency, err := d.icache.fetch(r.offset+start+uint64(i)*insts.WordSize, insts.WordSize)
		if err != nil {
			return fmt.Errorf("%w: %v", device.ErrFault, err)
		}
		run.Cycles += latency
		word := binary.LittleEndian.Uint64(data)
		if word == 0 {
			break
		}

		dec := d.decoder.Decode(word)
		switch dec.Format {
		case insts.FormatALU:
			sig, ok := insts.SignalFromCode(dec.SigCode)
			if !ok {
				return fmt.Errorf("%w: bad signal %d at %d", device.ErrFault, dec.SigCode, i)
			}
			thrsw := sig.Has(insts.SigThrsw)
			if thrsw {
				run.ThreadSwitches++
				if lastThrsw && end < 0 {
					end = i + 2
				}
				if prevThrsw {
					lastThrsw = true
				}
			}
			prevThrsw = thrsw
		case insts.FormatBranch:
			if dec.BDI == insts.BDIRelative {
				target := int64(i+4)*insts.WordSize + int64(dec.Offset())
				if target < 0 || uint64(target) >= count*insts.WordSize {
					return fmt.Errorf("%w: branch at %d leaves the shader region", device.ErrFault, i)
				}
			}
			prevThrsw = false
		default:
			return fmt.Errorf("%w: undecodable word 0x%016x at %d", device.ErrFault, word, i)
		}

		run.Instructions = i + 1
	}

	if end < 0 || run.Instructions <= end {
		return fmt.Errorf("%w: shader at %#x never ends its thread", device.ErrFault, shader)
	}
	return nil
}

type region struct {
	dev    *Device
	handle uint32
	offset uint64
	size   uint32
}

func (r *region) Handle() uint32 { return r.handle }

func (r *region) PhysAddr() uint32 { return uint32(BaseAddr + r.offset) }

func (r *region) Size() uint32 { return r.size }

func (r *region) bounds(off int64, n int) error {
	if off < 0 || uint64(off)+uint64(n) > uint64(r.size) {
		return fmt.Errorf("access [%d, %d) outside region of %d bytes", off, off+int64(n), r.size)
	}
	return nil
}

// ReadAt reads from the region at byte offset off.
func (r *region) ReadAt(p []byte, off int64) (int, error) {
	if err := r.bounds(off, len(p)); err != nil {
		return 0, err
	}
	data, err := r.dev.storage.Read(r.offset+uint64(off), uint64(len(p)))
	if err != nil {
		return 0, err
	}
	return copy(p, data), nil
}

// WriteAt writes to the region at byte offset off.
func (r *region) WriteAt(p []byte, off int64) (int, error) {
	if err := r.bounds(off, len(p)); err != nil {
		return 0, err
	}
	if err := r.dev.storage.Write(r.offset+uint64(off), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

var _ device.Device = (*Device)(nil)

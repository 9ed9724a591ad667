// Package kernels holds sample QPU compute kernels written against the
// asm builder.
//
// Kernels read their arguments from the uniform stream. By convention the
// last uniform is the device address of a 16-word output buffer that each
// kernel fills one word per SIMD lane.
package kernels

import (
	"sort"

	"github.com/sarchlab/v3dqpu/asm"
	"github.com/sarchlab/v3dqpu/insts"
)

// Lanes is the SIMD width of a QPU.
const Lanes = 16

// Entry describes a registered kernel.
type Entry struct {
	Name   string
	Doc    string
	Args   int  // Uniforms read before the output address
	Output bool // Whether the kernel writes the output buffer
	Kernel asm.Kernel
}

var registry = map[string]Entry{
	"nop": {
		Name:   "nop",
		Doc:    "end the thread without doing any work",
		Kernel: ThreadEnd,
	},
	"lane": {
		Name:   "lane",
		Doc:    "write each lane's element index",
		Output: true,
		Kernel: LaneIndex,
	},
	"store": {
		Name:   "store",
		Doc:    "write the first uniform to every lane",
		Args:   1,
		Output: true,
		Kernel: StoreValue,
	},
	"loop": {
		Name:   "loop",
		Doc:    "count loop iterations with a backward branch",
		Output: true,
		Kernel: Loop(10),
	},
}

// Lookup returns the kernel registered under name.
func Lookup(name string) (Entry, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names returns the registered kernel names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThreadEnd emits the thread-end sequence: three thread switches, the
// last one followed by its two delay slots.
func ThreadEnd(b *asm.Builder) {
	b.Nop(insts.SigThrsw)
	b.Nop(insts.SigThrsw)
	b.Nop()
	b.Nop()
	b.Nop(insts.SigThrsw)
	b.Nop()
	b.Nop()
	b.Nop()
}

// loadUniform moves the next uniform into dst.
func loadUniform(b *asm.Builder, dst string) {
	b.Nop(insts.SigLdunif)
	b.Emit(insts.Add("bor", dst, insts.Reg("r5"), insts.Reg("r5")))
}

// storeLanes writes value to addr[lane] through the TMU and waits for it.
func storeLanes(b *asm.Builder, value, addr string) {
	b.Emit(insts.Add("eidx", "r0"))
	b.Emit(insts.Add("shl", "r0", insts.Reg("r0"), insts.Int(2)))
	b.Emit(insts.Add("bor", "tmud", insts.Reg(value), insts.Reg(value)))
	b.Emit(insts.Add("add", "tmua", insts.Reg(addr), insts.Reg("r0")))
	b.Emit(insts.Add("tmuwt", "null"))
}

// LaneIndex writes the element index of every lane.
func LaneIndex(b *asm.Builder) {
	loadUniform(b, "rf1")
	b.Emit(insts.Add("eidx", "rf0"))
	storeLanes(b, "rf0", "rf1")
	ThreadEnd(b)
}

// StoreValue writes its first uniform to every lane.
func StoreValue(b *asm.Builder) {
	loadUniform(b, "rf0")
	loadUniform(b, "rf1")
	storeLanes(b, "rf0", "rf1")
	ThreadEnd(b)
}

// Loop returns a kernel that runs a loop n times (1-15) and writes the
// iteration count.
func Loop(n int64) asm.Kernel {
	return func(b *asm.Builder) {
		loadUniform(b, "rf2")
		b.Emit(insts.Mul("mov", "rf0", insts.Int(n)))
		b.Emit(insts.Mul("mov", "rf1", insts.Int(0)))

		b.Label("loop")
		b.Emit(insts.Add("add", "rf1", insts.Reg("rf1"), insts.Int(1)))
		b.Emit(insts.Add("sub", "rf0", insts.Reg("rf0"), insts.Int(1)).WithCond("pushz"))
		b.Branch("anyna", insts.Label("loop"))
		b.Nop()
		b.Nop()
		b.Nop()

		storeLanes(b, "rf1", "rf2")
		ThreadEnd(b)
	}
}

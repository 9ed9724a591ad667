package insts

import (
	"fmt"
	"math"
	"sort"
)

// Pipe selects one of the two ALU execution slots of an instruction.
type Pipe uint8

// ALU pipes.
const (
	PipeAdd Pipe = iota // Add pipe
	PipeMul             // Multiply pipe
)

func (p Pipe) String() string {
	if p == PipeMul {
		return "mul"
	}
	return "add"
}

// Bank selects the register space a write address refers to.
type Bank uint8

// Write banks.
const (
	BankRegFile Bank = 0 // General register file rf0-rf63
	BankMagic   Bank = 1 // Accumulators and hardware ports
)

// Dest is a resolved write destination.
type Dest struct {
	Bank Bank  // Magic bit
	Addr uint8 // Write address (6 bits)
}

// Mux selector codes for ALU inputs.
const (
	MuxR0 uint8 = 0 // Accumulators r0-r5 use their index
	MuxA  uint8 = 6 // Read port A
	MuxB  uint8 = 7 // Read port B (register or small immediate)
)

// Number of register-file entries and accumulators.
const (
	NumRegFile = 64
	NumAcc     = 6
)

var dests = map[string]Dest{
	"null":     {BankMagic, 6},
	"tlb":      {BankMagic, 7},
	"tlbu":     {BankMagic, 8},
	"tmu":      {BankMagic, 9},
	"tmul":     {BankMagic, 10},
	"tmud":     {BankMagic, 11},
	"tmua":     {BankMagic, 12},
	"tmuau":    {BankMagic, 13},
	"vpm":      {BankMagic, 14},
	"vpmu":     {BankMagic, 15},
	"sync":     {BankMagic, 16},
	"syncu":    {BankMagic, 17},
	"syncb":    {BankMagic, 18},
	"recip":    {BankMagic, 19},
	"rsqrt":    {BankMagic, 20},
	"exp":      {BankMagic, 21},
	"log":      {BankMagic, 22},
	"sin":      {BankMagic, 23},
	"rsqrt2":   {BankMagic, 24},
	"tmuc":     {BankMagic, 32},
	"tmus":     {BankMagic, 33},
	"tmut":     {BankMagic, 34},
	"tmur":     {BankMagic, 35},
	"tmui":     {BankMagic, 36},
	"tmub":     {BankMagic, 37},
	"tmudref":  {BankMagic, 38},
	"tmuoff":   {BankMagic, 39},
	"tmuscm":   {BankMagic, 40},
	"tmusf":    {BankMagic, 41},
	"tmuslod":  {BankMagic, 42},
	"tmuhs":    {BankMagic, 43},
	"tmuhscm":  {BankMagic, 44},
	"tmuhsf":   {BankMagic, 45},
	"tmuhslod": {BankMagic, 46},
	"r5rep":    {BankMagic, 55},
}

// addOps maps add-pipe mnemonics to their 8-bit opcode. Several mnemonics
// share an opcode and are told apart by the implicit mux codes below.
var addOps = map[string]uint8{
	"add":  56,
	"sub":  60,
	"min":  120,
	"max":  121,
	"umin": 122,
	"umax": 123,
	"shl":  124,
	"shr":  125,
	"asr":  126,
	"ror":  127,
	"band": 181,
	"bor":  182,
	"bxor": 183,

	"bnot":     186,
	"neg":      186,
	"flapush":  186,
	"flbpush":  186,
	"flpop":    186,
	"op_recip": 186,
	"setmsf":   186,
	"setrevf":  186,

	"nop":       187,
	"tidx":      187,
	"eidx":      187,
	"lr":        187,
	"vfla":      187,
	"vflna":     187,
	"vflb":      187,
	"vflnb":     187,
	"msf":       187,
	"revf":      187,
	"iid":       187,
	"sampid":    187,
	"barrierid": 187,
	"tmuwt":     187,
	"vpmwt":     187,

	"op_rsqrt":  188,
	"op_exp":    188,
	"op_log":    188,
	"op_sin":    188,
	"op_rsqrt2": 188,

	// The stvpm variants are told apart by the write address.
	"stvpmv": 248,
	"stvpmd": 248,
	"stvpmp": 248,

	"clz": 252,
}

// Implicit mux A codes used when an add-pipe mnemonic is issued without a
// first source.
var addMuxA = map[string]uint8{
	"nop":   0,
	"tidx":  1,
	"eidx":  2,
	"lr":    3,
	"vfla":  4,
	"vflna": 5,
	"vflb":  6,
	"vflnb": 7,

	"msf":       0,
	"revf":      1,
	"iid":       2,
	"sampid":    3,
	"barrierid": 4,
	"tmuwt":     5,
	"vpmwt":     6,
}

// Implicit mux B codes used when an add-pipe mnemonic is issued without a
// second source.
var addMuxB = map[string]uint8{
	"bnot":     0,
	"neg":      1,
	"flapush":  2,
	"flbpush":  3,
	"flpop":    4,
	"op_recip": 5,
	"setmsf":   6,
	"setrevf":  7,

	"nop":   0,
	"tidx":  0,
	"eidx":  0,
	"lr":    0,
	"vfla":  0,
	"vflna": 0,
	"vflb":  0,
	"vflnb": 0,

	"msf":       2,
	"revf":      2,
	"iid":       2,
	"sampid":    2,
	"barrierid": 2,
	"tmuwt":     2,
	"vpmwt":     2,

	"op_rsqrt":  3,
	"op_exp":    4,
	"op_log":    5,
	"op_sin":    6,
	"op_rsqrt2": 7,

	"clz": 3,
}

// mulOps maps mul-pipe mnemonics to their 6-bit opcode.
var mulOps = map[string]uint8{
	"add":    1,
	"sub":    2,
	"umul24": 3,
	"smul24": 9,
	"multop": 10,
	"fmov":   14,

	"fmov_0": 15,
	"fmov_1": 15,
	"fmov_2": 15,
	"fmov_3": 15,
	"nop":    15,
	"mov":    15,
}

var mulMuxA = map[string]uint8{
	"nop": 0,
}

var mulMuxB = map[string]uint8{
	"fmov_0": 0,
	"fmov_1": 1,
	"fmov_2": 2,
	"fmov_3": 3,
	"nop":    4,
	"mov":    7,
}

// Commutative float families. The opcode picks the operand ordering, so the
// author names the exact code. fmin and fmax share the 128-175 band; nothing
// in the word tells them apart.
// TODO: check the fmin/fmax overlap against the V3D 4.2 reference once
// hardware documentation is available.
func init() {
	for i := 0; i < 48; i++ {
		addOps[fmt.Sprintf("fadd%d", i)] = uint8(i)
		addOps[fmt.Sprintf("faddnf%d", i)] = uint8(i)
	}
	for i := 64; i < 112; i++ {
		addOps[fmt.Sprintf("fsub%d", i)] = uint8(i)
	}
	for i := 128; i < 176; i++ {
		addOps[fmt.Sprintf("fmin%d", i)] = uint8(i)
		addOps[fmt.Sprintf("fmax%d", i)] = uint8(i)
	}
	for i := 16; i < 64; i++ {
		mulOps[fmt.Sprintf("fmul%d", i)] = uint8(i)
	}

	for i := 0; i < NumAcc; i++ {
		dests[fmt.Sprintf("r%d", i)] = Dest{BankMagic, uint8(i)}
	}
	for i := 0; i < NumRegFile; i++ {
		dests[fmt.Sprintf("rf%d", i)] = Dest{BankRegFile, uint8(i)}
	}

	for i := 0; i < 16; i++ {
		pow := float32(math.Ldexp(1, i-8))

		smallImmInts[int64(i)] = uint8(i)
		smallImmInts[int64(i-16)] = uint8(i + 16)
		smallImmInts[int64(int32(math.Float32bits(pow)))] = uint8(i + 32)

		// Denormals whose bit pattern is the code itself.
		smallImmFloats[math.Float32frombits(uint32(i))] = uint8(i)
		smallImmFloats[pow] = uint8(i + 32)
	}
}

var (
	smallImmInts   = map[int64]uint8{}
	smallImmFloats = map[float32]uint8{}
)

// LookupDest resolves a destination register name.
func LookupDest(name string) (Dest, bool) {
	d, ok := dests[name]
	return d, ok
}

// LookupOp resolves a mnemonic in the opcode space of the given pipe.
func LookupOp(pipe Pipe, mnemonic string) (uint8, bool) {
	if pipe == PipeMul {
		op, ok := mulOps[mnemonic]
		return op, ok
	}
	op, ok := addOps[mnemonic]
	return op, ok
}

// Mnemonics returns every mnemonic of the pipe that encodes to opcode, sorted.
func Mnemonics(pipe Pipe, opcode uint8) []string {
	table := addOps
	if pipe == PipeMul {
		table = mulOps
	}

	var names []string
	for name, op := range table {
		if op == opcode {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func implicitMux(pipe Pipe, mnemonic string, second bool) (uint8, bool) {
	var table map[string]uint8
	switch {
	case pipe == PipeAdd && !second:
		table = addMuxA
	case pipe == PipeAdd && second:
		table = addMuxB
	case pipe == PipeMul && !second:
		table = mulMuxA
	default:
		table = mulMuxB
	}
	mux, ok := table[mnemonic]
	return mux, ok
}

// SmallImmInt returns the small-immediate code of an integer literal.
func SmallImmInt(v int64) (uint8, bool) {
	code, ok := smallImmInts[v]
	return code, ok
}

// SmallImmFloat returns the small-immediate code of a float literal.
func SmallImmFloat(v float32) (uint8, bool) {
	code, ok := smallImmFloats[v]
	return code, ok
}

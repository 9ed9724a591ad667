package insts

import "fmt"

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatALU            // Add/mul dual-issue ALU instruction
	FormatBranch         // Branch instruction
)

// Op is a request to issue one operation on one ALU pipe.
type Op struct {
	Pipe     Pipe
	Mnemonic string
	Dst      string    // Destination register name
	Src      []Operand // Up to two sources; an absent one uses the implicit mux
	Cond     string    // Optional condition name
	Sig      Signal    // Signals to raise with this instruction
}

// Add returns an add-pipe operation.
func Add(mnemonic, dst string, src ...Operand) Op {
	return Op{Pipe: PipeAdd, Mnemonic: mnemonic, Dst: dst, Src: src}
}

// Mul returns a mul-pipe operation.
func Mul(mnemonic, dst string, src ...Operand) Op {
	return Op{Pipe: PipeMul, Mnemonic: mnemonic, Dst: dst, Src: src}
}

// FAdd returns the add-pipe float add whose opcode is code (0-47).
func FAdd(code int, dst string, a, b Operand) Op {
	return Add(fmt.Sprintf("fadd%d", code), dst, a, b)
}

// FAddNF returns the add-pipe float add without flags for code (0-47).
func FAddNF(code int, dst string, a, b Operand) Op {
	return Add(fmt.Sprintf("faddnf%d", code), dst, a, b)
}

// FSub returns the add-pipe float subtract whose opcode is code (64-111).
func FSub(code int, dst string, a, b Operand) Op {
	return Add(fmt.Sprintf("fsub%d", code), dst, a, b)
}

// FMin returns the add-pipe float minimum whose opcode is code (128-175).
func FMin(code int, dst string, a, b Operand) Op {
	return Add(fmt.Sprintf("fmin%d", code), dst, a, b)
}

// FMax returns the add-pipe float maximum whose opcode is code (128-175).
func FMax(code int, dst string, a, b Operand) Op {
	return Add(fmt.Sprintf("fmax%d", code), dst, a, b)
}

// FMul returns the mul-pipe float multiply whose opcode is code (16-63).
func FMul(code int, dst string, a, b Operand) Op {
	return Mul(fmt.Sprintf("fmul%d", code), dst, a, b)
}

// WithCond returns a copy of o carrying the named condition.
func (o Op) WithCond(cond string) Op {
	o.Cond = cond
	return o
}

// WithSig returns a copy of o raising the given signals.
func (o Op) WithSig(sig Signal) Op {
	o.Sig |= sig
	return o
}

// ALUOp is the encoded state of one ALU pipe.
type ALUOp struct {
	Op     uint8 // Opcode
	Dest   Dest  // Write destination
	MuxA   uint8 // First input selector
	MuxB   uint8 // Second input selector
	Cond   Cond  // Per-pipe condition
	Issued bool  // Set once an operation was applied to this pipe
}

// Instruction is one QPU instruction record. It is mutable until frozen and
// can only be encoded afterwards.
type Instruction struct {
	Format Format

	// ALU fields
	Add ALUOp
	Mul ALUOp
	Sig Signal

	// Read ports, shared by ALU and branch formats
	RaddrA    uint8
	RaddrB    uint8
	HasRaddrA bool
	HasRaddrB bool

	// Branch fields
	BranchCond BranchCond
	BDI        uint8  // Branch destination indicator
	Target     string // Label name for label branches
	Disp       uint32 // Two's-complement byte displacement

	frozen bool
}

// Branch destination indicators.
const (
	BDIRelative uint8 = 1 // PC-relative displacement
	BDIRegFile  uint8 = 3 // Address in read port A
)

var nopAdd = ALUOp{Op: 187, Dest: Dest{BankMagic, 6}, MuxA: 0, MuxB: 0}
var nopMul = ALUOp{Op: 15, Dest: Dest{BankMagic, 6}, MuxA: 0, MuxB: 4}

// NewALU returns an ALU instruction with both pipes idle, writing to null.
func NewALU() *Instruction {
	return &Instruction{
		Format: FormatALU,
		Add:    nopAdd,
		Mul:    nopMul,
	}
}

// NewBranch returns a branch instruction. The target is either a register
// file entry or a label resolved when the program is finalized.
func NewBranch(cond BranchCond, target Operand) (*Instruction, error) {
	inst := &Instruction{Format: FormatBranch, BranchCond: cond}

	switch target.Kind {
	case OperandReg:
		idx, ok := ParseRegFile(target.Name)
		if !ok {
			return nil, fmt.Errorf("%w: branch target %v", ErrInvalidOperand, target)
		}
		inst.BDI = BDIRegFile
		inst.RaddrA = idx
		inst.HasRaddrA = true
	case OperandLabel:
		if target.Name == "" {
			return nil, fmt.Errorf("%w: empty branch label", ErrInvalidOperand)
		}
		inst.BDI = BDIRelative
		inst.Target = target.Name
	default:
		return nil, fmt.Errorf("%w: branch target %v", ErrInvalidOperand, target)
	}

	return inst, nil
}

// Apply issues op on its pipe. On error the instruction is left unchanged.
func (inst *Instruction) Apply(op Op) error {
	if inst.frozen {
		return ErrFinalized
	}
	if inst.Format != FormatALU {
		return fmt.Errorf("%w: %s on a branch", ErrPipeBusy, op.Mnemonic)
	}

	slot := &inst.Add
	if op.Pipe == PipeMul {
		slot = &inst.Mul
	}
	if slot.Issued {
		return fmt.Errorf("%w: %s pipe", ErrPipeBusy, op.Pipe)
	}

	if len(op.Src) > 2 {
		return fmt.Errorf("%w: %s takes at most two sources", ErrOperandArity, op.Mnemonic)
	}
	var a, b Operand
	if len(op.Src) > 0 {
		a = op.Src[0]
	}
	if len(op.Src) > 1 {
		b = op.Src[1]
	}
	if b.Present() && !a.Present() {
		return fmt.Errorf("%w: second source without first", ErrOperandArity)
	}

	opcode, ok := LookupOp(op.Pipe, op.Mnemonic)
	if !ok {
		return fmt.Errorf("%w: %s pipe %q", ErrUnknownMnemonic, op.Pipe, op.Mnemonic)
	}
	dest, ok := LookupDest(op.Dst)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDestination, op.Dst)
	}
	cond, err := ParseCond(op.Cond)
	if err != nil {
		return err
	}

	p := ports{
		raddrA: inst.RaddrA, raddrB: inst.RaddrB,
		hasA: inst.HasRaddrA, hasB: inst.HasRaddrB,
		sig: inst.Sig | op.Sig,
	}

	next := ALUOp{Op: opcode, Dest: dest, Cond: cond, Issued: true}
	if next.MuxA, err = selectSource(&p, op, a, false); err != nil {
		return err
	}
	if next.MuxB, err = selectSource(&p, op, b, true); err != nil {
		return err
	}

	if _, err := p.sig.Code(); err != nil {
		return err
	}

	addCond, mulCond := inst.Add.Cond, inst.Mul.Cond
	if op.Pipe == PipeMul {
		mulCond = cond
	} else {
		addCond = cond
	}
	if _, err := CombineConds(addCond, mulCond); err != nil {
		return err
	}

	*slot = next
	inst.RaddrA, inst.RaddrB = p.raddrA, p.raddrB
	inst.HasRaddrA, inst.HasRaddrB = p.hasA, p.hasB
	inst.Sig = p.sig
	return nil
}

func selectSource(p *ports, op Op, src Operand, second bool) (uint8, error) {
	if src.Present() {
		return p.resolve(src)
	}
	mux, ok := implicitMux(op.Pipe, op.Mnemonic, second)
	if !ok {
		return 0, fmt.Errorf("%w: %s needs a source operand", ErrOperandArity, op.Mnemonic)
	}
	return mux, nil
}

// IsLabelBranch reports whether the instruction branches to a label.
func (inst *Instruction) IsLabelBranch() bool {
	return inst.Format == FormatBranch && inst.Target != ""
}

// SetDisplacement stores a signed byte displacement for a label branch.
// A frozen branch only accepts the displacement it already holds.
func (inst *Instruction) SetDisplacement(disp int32) error {
	if !inst.IsLabelBranch() {
		return fmt.Errorf("%w: displacement on a non-label instruction", ErrInvalidOperand)
	}
	if inst.frozen && inst.Disp != uint32(disp) {
		return fmt.Errorf("%w: branch to %q already resolved to %d", ErrFinalized, inst.Target, inst.Displacement())
	}
	inst.Disp = uint32(disp)
	return nil
}

// Displacement returns the stored displacement as a signed byte offset.
func (inst *Instruction) Displacement() int32 {
	return int32(inst.Disp)
}

// Freeze marks the instruction final. Encode only works on frozen
// instructions, and Apply no longer does.
func (inst *Instruction) Freeze() {
	inst.frozen = true
}

// Frozen reports whether the instruction was finalized.
func (inst *Instruction) Frozen() bool {
	return inst.frozen
}

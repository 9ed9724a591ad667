package asm

import (
	"github.com/sarchlab/v3dqpu/insts"
)

// Kernel is a program-authoring function. It receives the builder it emits
// into.
type Kernel func(b *Builder)

// Builder emits instructions into a program. The first error sticks: later
// calls do nothing and Err or Finish report it.
type Builder struct {
	prog *Program
	err  error
}

// NewBuilder creates a builder over a new program.
func NewBuilder() *Builder {
	return &Builder{prog: NewProgram()}
}

// Program returns the program being built.
func (b *Builder) Program() *Program {
	return b.prog
}

// Err returns the first error hit while building.
func (b *Builder) Err() error {
	return b.err
}

// Fail records err unless an earlier error is already held.
func (b *Builder) Fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Label binds name to the next instruction.
func (b *Builder) Label(name string) {
	if b.err != nil {
		return
	}
	b.Fail(b.prog.Label(name))
}

// Emit appends one ALU instruction issuing every op on its pipe. With no
// ops it appends a nop.
func (b *Builder) Emit(ops ...insts.Op) *insts.Instruction {
	if b.err != nil {
		return nil
	}

	inst := insts.NewALU()
	for _, op := range ops {
		if err := inst.Apply(op); err != nil {
			b.Fail(err)
			return nil
		}
	}
	b.prog.Append(inst)
	return inst
}

// Nop appends an instruction that does nothing but raise the given signals.
func (b *Builder) Nop(sigs ...insts.Signal) *insts.Instruction {
	op := insts.Add("nop", "null")
	for _, sig := range sigs {
		op = op.WithSig(sig)
	}
	return b.Emit(op)
}

// Branch appends a branch to a register-file entry or a label.
func (b *Builder) Branch(cond string, target insts.Operand) *insts.Instruction {
	if b.err != nil {
		return nil
	}

	bc, err := insts.ParseBranchCond(cond)
	if err != nil {
		b.Fail(err)
		return nil
	}
	inst, err := insts.NewBranch(bc, target)
	if err != nil {
		b.Fail(err)
		return nil
	}
	b.prog.Append(inst)
	return inst
}

// Finish finalizes the program.
func (b *Builder) Finish() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.prog.Finalize(); err != nil {
		return nil, err
	}
	return b.prog, nil
}

// Assemble runs a kernel against a fresh builder and finalizes the result.
func Assemble(k Kernel) (*Program, error) {
	b := NewBuilder()
	k(b)
	return b.Finish()
}

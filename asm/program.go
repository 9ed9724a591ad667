// Package asm assembles QPU instruction records into a program.
//
// A Program is built by appending instruction records and binding labels,
// finalized once to resolve label branches into byte displacements, and
// only then encoded into machine words.
package asm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/v3dqpu/insts"
)

// Label errors.
var (
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrUnresolvedLabel = errors.New("unresolved label")
)

// BranchDelaySlots is the number of instruction slots between a branch
// issue and its target taking effect.
const BranchDelaySlots = 4

// InstructionSize is the size of one encoded instruction in bytes.
const InstructionSize = 8

// Program is an ordered sequence of instruction records with a label table.
type Program struct {
	insts  []*insts.Instruction
	labels map[string]int
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{labels: make(map[string]int)}
}

// Append adds an instruction record and returns its index.
func (p *Program) Append(inst *insts.Instruction) int {
	p.insts = append(p.insts, inst)
	return len(p.insts) - 1
}

// Label binds name to the index of the next appended instruction.
func (p *Program) Label(name string) error {
	if idx, ok := p.labels[name]; ok {
		return fmt.Errorf("%w: %q already bound to %d", ErrDuplicateLabel, name, idx)
	}
	p.labels[name] = len(p.insts)
	return nil
}

// LabelIndex returns the instruction index a label is bound to.
func (p *Program) LabelIndex(name string) (int, bool) {
	idx, ok := p.labels[name]
	return idx, ok
}

// Len returns the number of instruction records.
func (p *Program) Len() int {
	return len(p.insts)
}

// At returns the instruction record at index i.
func (p *Program) At(i int) *insts.Instruction {
	return p.insts[i]
}

// Displacement computes the byte displacement of a branch at index from
// to a label bound at index to.
func Displacement(from, to int) int32 {
	return int32((to - from - BranchDelaySlots) * InstructionSize)
}

// Finalize resolves every label branch and freezes every record. Nothing is
// changed when a label is unresolved. Finalizing again recomputes the same
// displacements.
func (p *Program) Finalize() error {
	disps := make(map[int]int32)
	for idx, inst := range p.insts {
		if !inst.IsLabelBranch() {
			continue
		}
		target, ok := p.labels[inst.Target]
		if !ok {
			return fmt.Errorf("%w: %q referenced at %d", ErrUnresolvedLabel, inst.Target, idx)
		}
		disps[idx] = Displacement(idx, target)
	}

	for idx, inst := range p.insts {
		if disp, ok := disps[idx]; ok {
			if err := inst.SetDisplacement(disp); err != nil {
				return err
			}
		}
		inst.Freeze()
	}

	return nil
}

// Words encodes every record in program order.
func (p *Program) Words() ([]uint64, error) {
	words := make([]uint64, len(p.insts))
	for i, inst := range p.insts {
		word, err := inst.Encode()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		words[i] = word
	}
	return words, nil
}

// Bytes encodes the program as little-endian words, ready to be copied into
// device memory.
func (p *Program) Bytes() ([]byte, error) {
	words, err := p.Words()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, len(words)*InstructionSize)
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*InstructionSize:], w)
	}
	return buf, nil
}

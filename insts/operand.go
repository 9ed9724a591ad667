package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// OperandKind tells which form a source operand takes.
type OperandKind uint8

// Operand kinds.
const (
	OperandNone  OperandKind = iota // Absent
	OperandReg                      // Named register (r0-r5, rf0-rf63)
	OperandInt                      // Integer small immediate
	OperandFloat                    // Float small immediate
	OperandLabel                    // Branch target label
)

// Operand is a symbolic source operand or branch target.
type Operand struct {
	Kind  OperandKind
	Name  string  // Register or label name
	Int   int64   // Integer literal
	Float float32 // Float literal
}

// Reg returns a register operand.
func Reg(name string) Operand { return Operand{Kind: OperandReg, Name: name} }

// Int returns an integer literal operand.
func Int(v int64) Operand { return Operand{Kind: OperandInt, Int: v} }

// Float returns a float literal operand.
func Float(v float32) Operand { return Operand{Kind: OperandFloat, Float: v} }

// Label returns a branch target naming a label.
func Label(name string) Operand { return Operand{Kind: OperandLabel, Name: name} }

// Present reports whether the operand was supplied.
func (o Operand) Present() bool { return o.Kind != OperandNone }

func (o Operand) String() string {
	switch o.Kind {
	case OperandReg, OperandLabel:
		return o.Name
	case OperandInt:
		return strconv.FormatInt(o.Int, 10)
	case OperandFloat:
		return strconv.FormatFloat(float64(o.Float), 'g', -1, 32)
	default:
		return "<none>"
	}
}

// parseIndexed parses names like "rf12" into 12. It fails when the name
// does not start with prefix or the index is out of [0, limit).
func parseIndexed(name, prefix string, limit int) (uint8, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	rest := name[len(prefix):]
	if rest == "" || rest[0] < '0' || rest[0] > '9' {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx >= limit {
		return 0, false
	}
	return uint8(idx), true
}

// ParseRegFile parses a general register-file name (rf0-rf63).
func ParseRegFile(name string) (uint8, bool) {
	return parseIndexed(name, "rf", NumRegFile)
}

// ParseAcc parses an accumulator name (r0-r5).
func ParseAcc(name string) (uint8, bool) {
	if strings.HasPrefix(name, "rf") {
		return 0, false
	}
	return parseIndexed(name, "r", NumAcc)
}

// ports is the read-port state of one ALU instruction.
type ports struct {
	raddrA, raddrB uint8
	hasA, hasB     bool
	sig            Signal
}

// resolve assigns src to a read port and returns its mux selector.
func (p *ports) resolve(src Operand) (uint8, error) {
	switch src.Kind {
	case OperandInt:
		code, ok := SmallImmInt(src.Int)
		if !ok {
			return 0, fmt.Errorf("%w: no small immediate for %d", ErrInvalidOperand, src.Int)
		}
		return p.smallImm(code)
	case OperandFloat:
		code, ok := SmallImmFloat(src.Float)
		if !ok {
			return 0, fmt.Errorf("%w: no small immediate for %v", ErrInvalidOperand, src)
		}
		return p.smallImm(code)
	case OperandReg:
		if idx, ok := ParseRegFile(src.Name); ok {
			return p.regFile(idx)
		}
		if idx, ok := ParseAcc(src.Name); ok {
			return MuxR0 + idx, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown source %v", ErrInvalidOperand, src)
}

// smallImm places a small-immediate code on port B.
func (p *ports) smallImm(code uint8) (uint8, error) {
	if !p.hasB {
		p.raddrB = code
		p.hasB = true
		p.sig |= SigSmimm
		return MuxB, nil
	}
	if !p.sig.Has(SigSmimm) {
		return 0, fmt.Errorf("%w: read port B holds rf%d", ErrPortConflict, p.raddrB)
	}
	if p.raddrB != code {
		return 0, fmt.Errorf("%w: small immediates %d and %d", ErrPortConflict, p.raddrB, code)
	}
	return MuxB, nil
}

// regFile places a register-file read on port A, or port B when A is taken.
func (p *ports) regFile(idx uint8) (uint8, error) {
	if !p.hasA || p.raddrA == idx {
		p.raddrA = idx
		p.hasA = true
		return MuxA, nil
	}
	if !p.sig.Has(SigSmimm) && (!p.hasB || p.raddrB == idx) {
		p.raddrB = idx
		p.hasB = true
		return MuxB, nil
	}
	return 0, fmt.Errorf("%w: too many register-file reads (rf%d)", ErrPortConflict, idx)
}

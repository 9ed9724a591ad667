package insts

import "fmt"

// CondKind classifies the condition attached to one ALU pipe.
type CondKind uint8

// Condition kinds.
const (
	CondNone CondKind = iota // No condition
	CondPush                 // Push a flag (pushz, pushn, pushc)
	CondInsn                 // Conditional execution (ifa, ifb, ifna, ifnb)
)

// Cond is a resolved per-pipe condition.
type Cond struct {
	Kind CondKind
	Code uint8 // 2-bit code within its kind
}

var pushConds = map[string]uint8{
	"pushz": 1,
	"pushn": 2,
	"pushc": 3,
}

var insnConds = map[string]uint8{
	"ifa":  0,
	"ifb":  1,
	"ifna": 2,
	"ifnb": 3,
}

// ParseCond resolves a condition name. The empty name is no condition.
func ParseCond(name string) (Cond, error) {
	if name == "" {
		return Cond{}, nil
	}
	if code, ok := pushConds[name]; ok {
		return Cond{Kind: CondPush, Code: code}, nil
	}
	if code, ok := insnConds[name]; ok {
		return Cond{Kind: CondInsn, Code: code}, nil
	}
	return Cond{}, fmt.Errorf("%w: %q", ErrInvalidCondition, name)
}

// CombineConds packs the add-pipe and mul-pipe conditions into the 7-bit
// condition field. A push on both pipes has no encoding.
//
//	add    mul    code
//	-      -      0000000
//	push   -      00000pp
//	-      push   00100pp
//	insn   insn   1mm00aa
//	insn   -/push 010aapp
//	-/push insn   011mmpp
func CombineConds(add, mul Cond) (uint8, error) {
	switch {
	case add.Kind == CondNone && mul.Kind == CondNone:
		return 0b0000000, nil
	case add.Kind == CondPush && mul.Kind == CondNone:
		return add.Code, nil
	case add.Kind == CondNone && mul.Kind == CondPush:
		return 0b0010000 | mul.Code, nil
	case add.Kind == CondInsn && mul.Kind == CondInsn:
		return 0b1000000 | mul.Code<<4 | add.Code, nil
	case add.Kind == CondInsn:
		return 0b0100000 | add.Code<<2 | pushCode(mul), nil
	case mul.Kind == CondInsn:
		return 0b0110000 | mul.Code<<2 | pushCode(add), nil
	default:
		return 0, fmt.Errorf("%w: add=%v mul=%v", ErrConditionConflict, add, mul)
	}
}

func pushCode(c Cond) uint8 {
	if c.Kind == CondPush {
		return c.Code
	}
	return 0
}

// BranchCond is the condition of a branch instruction.
type BranchCond uint8

// Branch conditions.
const (
	BranchAlways BranchCond = 0 // Unconditional
	BranchA0     BranchCond = 2 // Lane 0 flag A set
	BranchNA0    BranchCond = 3 // Lane 0 flag A clear
	BranchAllA   BranchCond = 4 // Flag A set in all lanes
	BranchAnyNA  BranchCond = 5 // Flag A clear in any lane
	BranchAnyA   BranchCond = 6 // Flag A set in any lane
	BranchAllNA  BranchCond = 7 // Flag A clear in all lanes
)

var branchConds = map[string]BranchCond{
	"always": BranchAlways,
	"a0":     BranchA0,
	"na0":    BranchNA0,
	"alla":   BranchAllA,
	"anyna":  BranchAnyNA,
	"anya":   BranchAnyA,
	"allna":  BranchAllNA,
}

// ParseBranchCond resolves a branch condition name.
func ParseBranchCond(name string) (BranchCond, error) {
	c, ok := branchConds[name]
	if !ok {
		return 0, fmt.Errorf("%w: branch condition %q", ErrInvalidCondition, name)
	}
	return c, nil
}

func (c BranchCond) String() string {
	for name, bc := range branchConds {
		if bc == c {
			return name
		}
	}
	return fmt.Sprintf("cond%d", uint8(c))
}

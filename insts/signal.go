package insts

import (
	"fmt"
	"strings"
)

// Signal is a set of hardware trigger flags attached to an ALU instruction.
type Signal uint8

// Signal flags.
const (
	SigThrsw  Signal = 1 << iota // Thread switch
	SigLdunif                    // Load uniform into r5
	SigLdtmu                     // Load TMU result into r4
	SigSmimm                     // Read port B carries a small immediate
	SigRot                       // Vector rotate
)

var signalNames = []struct {
	flag Signal
	name string
}{
	{SigThrsw, "thrsw"},
	{SigLdunif, "ldunif"},
	{SigLdtmu, "ldtmu"},
	{SigSmimm, "smimm"},
	{SigRot, "rot"},
}

// Only these sets are valid hardware states.
var signalCodes = map[Signal]uint8{
	0:                   0,
	SigThrsw:            1,
	SigLdunif:           2,
	SigLdtmu:            4,
	SigSmimm:            15,
	SigRot:              23,
	SigSmimm | SigLdtmu: 31,
}

// ParseSignal builds a signal set from flag names.
func ParseSignal(names ...string) (Signal, error) {
	var sig Signal
	for _, name := range names {
		found := false
		for _, s := range signalNames {
			if s.name == name {
				sig |= s.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown signal %q", ErrInvalidSignal, name)
		}
	}
	return sig, nil
}

// Code returns the 5-bit encoding of the signal set.
func (s Signal) Code() (uint8, error) {
	code, ok := signalCodes[s]
	if !ok {
		return 0, fmt.Errorf("%w: {%s}", ErrInvalidSignal, s)
	}
	return code, nil
}

// Has reports whether every flag of other is in s.
func (s Signal) Has(other Signal) bool {
	return s&other == other
}

func (s Signal) String() string {
	var names []string
	for _, n := range signalNames {
		if s&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// SignalFromCode returns the signal set for a 5-bit code.
func SignalFromCode(code uint8) (Signal, bool) {
	for sig, c := range signalCodes {
		if c == code {
			return sig, true
		}
	}
	return 0, false
}

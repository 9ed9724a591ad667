package insts

import (
	"fmt"
	"strings"
)

// Decoded holds the bit fields of a QPU machine word.
type Decoded struct {
	Format Format // Encoding format

	// ALU fields
	MulOp   uint8 // bits [63:58]
	SigCode uint8 // bits [57:53]
	Cond    uint8 // bits [52:46]
	MulBank Bank  // bit 45
	AddBank Bank  // bit 44
	MulAddr uint8 // bits [43:38]
	AddAddr uint8 // bits [37:32]
	AddOp   uint8 // bits [31:24]
	MulB    uint8 // bits [23:21]
	MulA    uint8 // bits [20:18]
	AddB    uint8 // bits [17:15]
	AddA    uint8 // bits [14:12]

	// Read ports
	RaddrA uint8 // bits [11:6]
	RaddrB uint8 // bits [5:0]

	// Branch fields
	BranchCond BranchCond // bits [34:32]
	BDI        uint8      // bits [13:12]
	Disp       uint32     // reassembled from bits [55:35] and [31:24]
}

// Offset returns the branch displacement as a signed byte offset.
func (d *Decoded) Offset() int32 {
	return int32(d.Disp)
}

// Decoder decodes QPU machine words into their fields.
type Decoder struct{}

// NewDecoder creates a new QPU instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 64-bit QPU instruction word.
func (d *Decoder) Decode(word uint64) *Decoded {
	inst := &Decoded{Format: FormatUnknown}

	switch {
	case d.isBranch(word):
		d.decodeBranch(word, inst)
	case d.isALU(word):
		d.decodeALU(word, inst)
	}

	return inst
}

// isBranch checks for a branch word.
// Branch: bits [63:58] == 0 and bits [57:56] == 0b10
func (d *Decoder) isBranch(word uint64) bool {
	return (word>>58) == 0 && (word>>56)&0x3 == 0b10
}

// isALU checks for an ALU word. Mul opcode 0 is not assigned, so every
// word with a non-zero mul opcode is an ALU instruction.
func (d *Decoder) isALU(word uint64) bool {
	return (word >> 58) != 0
}

// decodeALU splits an ALU word.
// Format: op_mul | sig | cond | mm | ma | waddr_m | waddr_a | op_add |
// mul_b | mul_a | add_b | add_a | raddr_a | raddr_b
func (d *Decoder) decodeALU(word uint64, inst *Decoded) {
	inst.Format = FormatALU

	inst.MulOp = uint8(word >> 58)            // bits [63:58]
	inst.SigCode = uint8((word >> 53) & 0x1F) // bits [57:53]
	inst.Cond = uint8((word >> 46) & 0x7F)    // bits [52:46]
	inst.MulBank = Bank((word >> 45) & 0x1)   // bit 45
	inst.AddBank = Bank((word >> 44) & 0x1)   // bit 44
	inst.MulAddr = uint8((word >> 38) & 0x3F) // bits [43:38]
	inst.AddAddr = uint8((word >> 32) & 0x3F) // bits [37:32]
	inst.AddOp = uint8((word >> 24) & 0xFF)   // bits [31:24]
	inst.MulB = uint8((word >> 21) & 0x7)     // bits [23:21]
	inst.MulA = uint8((word >> 18) & 0x7)     // bits [20:18]
	inst.AddB = uint8((word >> 15) & 0x7)     // bits [17:15]
	inst.AddA = uint8((word >> 12) & 0x7)     // bits [14:12]
	inst.RaddrA = uint8((word >> 6) & 0x3F)   // bits [11:6]
	inst.RaddrB = uint8(word & 0x3F)          // bits [5:0]
}

// decodeBranch splits a branch word.
// Format: 10 | disp[23:3] | cond | disp[31:24] | bdi | raddr_a
func (d *Decoder) decodeBranch(word uint64, inst *Decoded) {
	inst.Format = FormatBranch

	low := uint32((word>>35)&0x1FFFFF) << 3 // bits [55:35]
	high := uint32((word >> 24) & 0xFF)     // bits [31:24]
	inst.Disp = high<<24 | low
	inst.BranchCond = BranchCond((word >> 32) & 0x7) // bits [34:32]
	inst.BDI = uint8((word >> 12) & 0x3)             // bits [13:12]
	inst.RaddrA = uint8((word >> 6) & 0x3F)          // bits [11:6]
}

// String renders the decoded word in a short assembly-like form.
func (d *Decoded) String() string {
	switch d.Format {
	case FormatBranch:
		if d.BDI == BDIRegFile {
			return fmt.Sprintf("b.%s rf%d", d.BranchCond, d.RaddrA)
		}
		return fmt.Sprintf("b.%s %+d", d.BranchCond, d.Offset())
	case FormatALU:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %s, %s, %s",
			opName(PipeAdd, d.AddOp), destName(d.AddBank, d.AddAddr),
			d.muxName(d.AddA), d.muxName(d.AddB))
		fmt.Fprintf(&sb, " ; %s %s, %s, %s",
			opName(PipeMul, d.MulOp), destName(d.MulBank, d.MulAddr),
			d.muxName(d.MulA), d.muxName(d.MulB))
		if sig, ok := SignalFromCode(d.SigCode); ok && sig != 0 {
			fmt.Fprintf(&sb, " ; sig=%s", sig)
		} else if !ok {
			fmt.Fprintf(&sb, " ; sig=?%d", d.SigCode)
		}
		if d.Cond != 0 {
			fmt.Fprintf(&sb, " ; cond=0b%07b", d.Cond)
		}
		return sb.String()
	default:
		return "unknown"
	}
}

func (d *Decoded) muxName(mux uint8) string {
	switch {
	case mux < MuxA:
		return fmt.Sprintf("r%d", mux)
	case mux == MuxA:
		return fmt.Sprintf("rf%d", d.RaddrA)
	case SigSmimm&d.sig() != 0:
		return fmt.Sprintf("#%d", d.RaddrB)
	default:
		return fmt.Sprintf("rf%d", d.RaddrB)
	}
}

func (d *Decoded) sig() Signal {
	sig, _ := SignalFromCode(d.SigCode)
	return sig
}

func opName(pipe Pipe, op uint8) string {
	names := Mnemonics(pipe, op)
	if len(names) == 0 {
		return fmt.Sprintf("%s?%d", pipe, op)
	}
	return strings.Join(names, "|")
}

func destName(bank Bank, addr uint8) string {
	if bank == BankRegFile {
		return fmt.Sprintf("rf%d", addr)
	}
	for name, d := range dests {
		if d.Bank == BankMagic && d.Addr == addr {
			return name
		}
	}
	return fmt.Sprintf("magic%d", addr)
}

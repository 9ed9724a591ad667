package insts

// WordSize is the size of one encoded instruction in bytes.
const WordSize = 8

// Encode packs the instruction into its 64-bit machine word.
//
// ALU format:
//
//	op_mul[63:58] | sig[57:53] | cond[52:46] | mm[45] | ma[44] |
//	waddr_m[43:38] | waddr_a[37:32] | op_add[31:24] | mul_b[23:21] |
//	mul_a[20:18] | add_b[17:15] | add_a[14:12] | raddr_a[11:6] | raddr_b[5:0]
//
// Branch format:
//
//	10[57:56] | disp[23:3][55:35] | cond[34:32] | disp[31:24][31:24] |
//	bdi[13:12] | raddr_a[11:6]
func (inst *Instruction) Encode() (uint64, error) {
	if !inst.frozen {
		return 0, ErrNotFinalized
	}

	if inst.Format == FormatBranch {
		return inst.encodeBranch(), nil
	}
	return inst.encodeALU()
}

func (inst *Instruction) encodeALU() (uint64, error) {
	sig, err := inst.Sig.Code()
	if err != nil {
		return 0, err
	}
	cond, err := CombineConds(inst.Add.Cond, inst.Mul.Cond)
	if err != nil {
		return 0, err
	}

	var word uint64
	word |= uint64(inst.Mul.Op&0x3F) << 58
	word |= uint64(sig&0x1F) << 53
	word |= uint64(cond&0x7F) << 46
	word |= uint64(inst.Mul.Dest.Bank&0x1) << 45
	word |= uint64(inst.Add.Dest.Bank&0x1) << 44
	word |= uint64(inst.Mul.Dest.Addr&0x3F) << 38
	word |= uint64(inst.Add.Dest.Addr&0x3F) << 32
	word |= uint64(inst.Add.Op) << 24
	word |= uint64(inst.Mul.MuxB&0x7) << 21
	word |= uint64(inst.Mul.MuxA&0x7) << 18
	word |= uint64(inst.Add.MuxB&0x7) << 15
	word |= uint64(inst.Add.MuxA&0x7) << 12
	word |= uint64(inst.RaddrA&0x3F) << 6
	word |= uint64(inst.RaddrB & 0x3F)

	return word, nil
}

func (inst *Instruction) encodeBranch() uint64 {
	disp := inst.Disp

	var word uint64
	word |= uint64(0b10) << 56
	word |= uint64((disp&0xFFFFFF)>>3) << 35
	word |= uint64(inst.BranchCond&0x7) << 32
	word |= uint64(disp>>24) << 24
	word |= uint64(inst.BDI&0x3) << 12
	word |= uint64(inst.RaddrA&0x3F) << 6

	return word
}

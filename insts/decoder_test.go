package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/v3dqpu/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("ALU instructions", func() {
		// nop ; nop
		// op_mul=15, mm=1, ma=1, waddr_m=6, waddr_a=6, op_add=187, mul_b=4
		It("should decode the canonical nop", func() {
			inst := decoder.Decode(0x3c003186bb800000)

			Expect(inst.Format).To(Equal(insts.FormatALU))
			Expect(inst.MulOp).To(Equal(uint8(15)))
			Expect(inst.AddOp).To(Equal(uint8(187)))
			Expect(inst.MulBank).To(Equal(insts.BankMagic))
			Expect(inst.AddBank).To(Equal(insts.BankMagic))
			Expect(inst.MulAddr).To(Equal(uint8(6)))
			Expect(inst.AddAddr).To(Equal(uint8(6)))
			Expect(inst.MulB).To(Equal(uint8(4)))
			Expect(inst.SigCode).To(BeZero())
			Expect(inst.Cond).To(BeZero())
		})

		// add rf2, rf0, rf1 ; nop
		It("should decode an add of two register-file reads", func() {
			inst := decoder.Decode(0x3c0021823883e001)

			Expect(inst.AddOp).To(Equal(uint8(56)))
			Expect(inst.AddBank).To(Equal(insts.BankRegFile))
			Expect(inst.AddAddr).To(Equal(uint8(2)))
			Expect(inst.AddA).To(Equal(insts.MuxA))
			Expect(inst.AddB).To(Equal(insts.MuxB))
			Expect(inst.RaddrA).To(Equal(uint8(0)))
			Expect(inst.RaddrB).To(Equal(uint8(1)))
			Expect(inst.String()).To(HavePrefix("add rf2, rf0, rf1 ; "))
		})

		// nop ; nop ; thrsw
		It("should decode the signal field", func() {
			inst := decoder.Decode(0x3c203186bb800000)

			Expect(inst.SigCode).To(Equal(uint8(1)))
			Expect(inst.String()).To(HaveSuffix("sig=thrsw"))
		})
	})

	Describe("branches", func() {
		// b.always -40
		It("should decode a relative branch", func() {
			inst := decoder.Decode(0x02ffffd8ff001000)

			Expect(inst.Format).To(Equal(insts.FormatBranch))
			Expect(inst.BranchCond).To(Equal(insts.BranchAlways))
			Expect(inst.BDI).To(Equal(insts.BDIRelative))
			Expect(inst.Offset()).To(Equal(int32(-40)))
			Expect(inst.String()).To(Equal("b.always -40"))
		})
	})

	It("should not decode an all-zero word", func() {
		inst := decoder.Decode(0)
		Expect(inst.Format).To(Equal(insts.FormatUnknown))
		Expect(inst.String()).To(Equal("unknown"))
	})
})

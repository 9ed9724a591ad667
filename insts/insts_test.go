package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/v3dqpu/insts"
)

var _ = Describe("Insts Package", func() {
	It("should have an Instruction type", func() {
		var i insts.Instruction
		Expect(i.Format).To(Equal(insts.FormatUnknown))
	})

	It("should have a Decoder type", func() {
		decoder := insts.NewDecoder()
		Expect(decoder).ToNot(BeNil())
	})
})

var _ = Describe("Tables", func() {
	It("should resolve accumulators and register-file destinations", func() {
		for i := 0; i < insts.NumAcc; i++ {
			d, ok := insts.LookupDest("r" + itoa(i))
			Expect(ok).To(BeTrue())
			Expect(d).To(Equal(insts.Dest{Bank: insts.BankMagic, Addr: uint8(i)}))
		}
		d, ok := insts.LookupDest("rf63")
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(insts.Dest{Bank: insts.BankRegFile, Addr: 63}))

		_, ok = insts.LookupDest("rf64")
		Expect(ok).To(BeFalse())
	})

	It("should resolve hardware port destinations", func() {
		d, ok := insts.LookupDest("null")
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(insts.Dest{Bank: insts.BankMagic, Addr: 6}))

		d, _ = insts.LookupDest("tmua")
		Expect(d.Addr).To(Equal(uint8(12)))
		d, _ = insts.LookupDest("r5rep")
		Expect(d.Addr).To(Equal(uint8(55)))
	})

	It("should keep the two opcode spaces apart", func() {
		op, ok := insts.LookupOp(insts.PipeAdd, "add")
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(uint8(56)))

		op, ok = insts.LookupOp(insts.PipeMul, "add")
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(uint8(1)))

		_, ok = insts.LookupOp(insts.PipeMul, "clz")
		Expect(ok).To(BeFalse())
	})

	It("should expose one mnemonic per float ordering code", func() {
		op, _ := insts.LookupOp(insts.PipeAdd, "fadd47")
		Expect(op).To(Equal(uint8(47)))
		op, _ = insts.LookupOp(insts.PipeAdd, "fsub64")
		Expect(op).To(Equal(uint8(64)))
		op, _ = insts.LookupOp(insts.PipeMul, "fmul63")
		Expect(op).To(Equal(uint8(63)))

		_, ok := insts.LookupOp(insts.PipeAdd, "fadd48")
		Expect(ok).To(BeFalse())
		_, ok = insts.LookupOp(insts.PipeAdd, "fsub112")
		Expect(ok).To(BeFalse())
	})

	It("should preserve the shared fmin/fmax band", func() {
		minOp, _ := insts.LookupOp(insts.PipeAdd, "fmin130")
		maxOp, _ := insts.LookupOp(insts.PipeAdd, "fmax130")
		Expect(minOp).To(Equal(maxOp))
		Expect(insts.Mnemonics(insts.PipeAdd, 130)).To(Equal([]string{"fmax130", "fmin130"}))
	})

	Describe("small immediates", func() {
		It("should map small integers exactly", func() {
			code, ok := insts.SmallImmInt(5)
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(uint8(5)))

			code, _ = insts.SmallImmInt(-16)
			Expect(code).To(Equal(uint8(16)))

			code, _ = insts.SmallImmInt(-1)
			Expect(code).To(Equal(uint8(31)))
		})

		It("should map float bit patterns of powers of two", func() {
			// 1.0f is 0x3f800000, the ninth power of two in the table.
			code, ok := insts.SmallImmInt(0x3f800000)
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(uint8(40)))
		})

		It("should reject integers outside the table", func() {
			_, ok := insts.SmallImmInt(17)
			Expect(ok).To(BeFalse())
			_, ok = insts.SmallImmInt(-17)
			Expect(ok).To(BeFalse())
		})

		It("should map floats exactly", func() {
			code, ok := insts.SmallImmFloat(1.0)
			Expect(ok).To(BeTrue())
			Expect(code).To(Equal(uint8(40)))

			code, _ = insts.SmallImmFloat(1.0 / 256)
			Expect(code).To(Equal(uint8(32)))

			code, _ = insts.SmallImmFloat(128)
			Expect(code).To(Equal(uint8(47)))

			_, ok = insts.SmallImmFloat(3.0)
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("Signals", func() {
	It("should encode the seven valid sets", func() {
		cases := map[insts.Signal]uint8{
			0:                               0,
			insts.SigThrsw:                  1,
			insts.SigLdunif:                 2,
			insts.SigLdtmu:                  4,
			insts.SigSmimm:                  15,
			insts.SigRot:                    23,
			insts.SigSmimm | insts.SigLdtmu: 31,
		}
		for sig, want := range cases {
			code, err := sig.Code()
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal(want))
		}
	})

	It("should reject other two-element sets", func() {
		_, err := (insts.SigThrsw | insts.SigLdunif).Code()
		Expect(err).To(MatchError(insts.ErrInvalidSignal))

		_, err = (insts.SigSmimm | insts.SigRot).Code()
		Expect(err).To(MatchError(insts.ErrInvalidSignal))
	})

	It("should parse names", func() {
		sig, err := insts.ParseSignal("smimm", "ldtmu")
		Expect(err).ToNot(HaveOccurred())
		Expect(sig).To(Equal(insts.SigSmimm | insts.SigLdtmu))
		Expect(sig.String()).To(Equal("ldtmu,smimm"))

		_, err = insts.ParseSignal("wrtmuc")
		Expect(err).To(MatchError(insts.ErrInvalidSignal))
	})
})

var _ = Describe("Conditions", func() {
	cond := func(name string) insts.Cond {
		c, err := insts.ParseCond(name)
		Expect(err).ToNot(HaveOccurred())
		return c
	}

	It("should encode an add-side push alone as its code", func() {
		code, err := insts.CombineConds(cond("pushn"), cond(""))
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(uint8(2)))
	})

	It("should encode a mul-side push alone", func() {
		code, err := insts.CombineConds(cond(""), cond("pushc"))
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(uint8(0b0010011)))
	})

	It("should pack two instruction conditions", func() {
		code, err := insts.CombineConds(cond("ifnb"), cond("ifb"))
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(uint8(0b1000000 | 1<<4 | 3)))
		Expect(code & 0b1000000).ToNot(BeZero())
	})

	It("should pack an add instruction condition with a mul push", func() {
		code, err := insts.CombineConds(cond("ifna"), cond("pushz"))
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(uint8(0b0100000 | 2<<2 | 1)))
	})

	It("should pack a mul instruction condition with an add push", func() {
		code, err := insts.CombineConds(cond("pushn"), cond("ifb"))
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(uint8(0b0110000 | 1<<2 | 2)))

		code, err = insts.CombineConds(cond(""), cond("ifa"))
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(uint8(0b0110000)))
	})

	It("should reject a push on both pipes", func() {
		_, err := insts.CombineConds(cond("pushz"), cond("pushn"))
		Expect(err).To(MatchError(insts.ErrConditionConflict))
	})

	It("should reject unknown names", func() {
		_, err := insts.ParseCond("ifz")
		Expect(err).To(MatchError(insts.ErrInvalidCondition))
		_, err = insts.ParseBranchCond("never")
		Expect(err).To(MatchError(insts.ErrInvalidCondition))
	})

	It("should resolve branch conditions", func() {
		c, err := insts.ParseBranchCond("anyna")
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(Equal(insts.BranchAnyNA))
		Expect(c.String()).To(Equal("anyna"))
	})
})

func itoa(i int) string {
	return string(rune('0' + i))
}

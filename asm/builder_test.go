package asm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/v3dqpu/asm"
	"github.com/sarchlab/v3dqpu/insts"
)

var _ = Describe("Builder", func() {
	var b *asm.Builder

	BeforeEach(func() {
		b = asm.NewBuilder()
	})

	It("should emit dual-issue instructions", func() {
		inst := b.Emit(
			insts.Add("add", "rf2", insts.Reg("rf0"), insts.Reg("rf1")),
			insts.Mul("mov", "rf3", insts.Reg("r4")),
		)
		Expect(inst).ToNot(BeNil())
		Expect(b.Err()).ToNot(HaveOccurred())
		Expect(inst.Add.Issued).To(BeTrue())
		Expect(inst.Mul.Issued).To(BeTrue())
		Expect(b.Program().Len()).To(Equal(1))
	})

	It("should raise signals on a nop", func() {
		inst := b.Nop(insts.SigLdtmu)
		Expect(inst.Sig).To(Equal(insts.SigLdtmu))
	})

	It("should keep the first error and stop emitting", func() {
		b.Emit(insts.Add("add", "rf0", insts.Reg("rf1"), insts.Int(99)))
		Expect(b.Err()).To(MatchError(insts.ErrInvalidOperand))

		b.Label("after")
		b.Nop()
		b.Branch("bogus", insts.Label("after"))

		Expect(b.Err()).To(MatchError(insts.ErrInvalidOperand))
		Expect(b.Program().Len()).To(BeZero())
		_, ok := b.Program().LabelIndex("after")
		Expect(ok).To(BeFalse())

		_, err := b.Finish()
		Expect(err).To(MatchError(insts.ErrInvalidOperand))
	})

	It("should report duplicate labels", func() {
		b.Label("top")
		b.Nop()
		b.Label("top")
		Expect(b.Err()).To(MatchError(asm.ErrDuplicateLabel))
	})

	It("should report invalid branch conditions", func() {
		b.Branch("sometimes", insts.Label("x"))
		Expect(b.Err()).To(MatchError(insts.ErrInvalidCondition))
	})

	It("should assemble a kernel", func() {
		prog, err := asm.Assemble(func(b *asm.Builder) {
			b.Label("loop")
			b.Emit(insts.Add("sub", "rf0", insts.Reg("rf0"), insts.Int(1)).WithCond("pushz"))
			b.Branch("anyna", insts.Label("loop"))
			b.Nop()
			b.Nop()
			b.Nop()
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(prog.Len()).To(Equal(5))
		Expect(prog.At(1).Displacement()).To(Equal(asm.Displacement(1, 0)))

		words, err := prog.Words()
		Expect(err).ToNot(HaveOccurred())
		Expect(words).To(HaveLen(5))
	})

	It("should surface unresolved labels from Assemble", func() {
		_, err := asm.Assemble(func(b *asm.Builder) {
			b.Branch("always", insts.Label("missing"))
		})
		Expect(err).To(MatchError(asm.ErrUnresolvedLabel))
	})
})

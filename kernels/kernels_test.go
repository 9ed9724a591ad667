package kernels_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/v3dqpu/asm"
	"github.com/sarchlab/v3dqpu/insts"
	"github.com/sarchlab/v3dqpu/kernels"
)

var _ = Describe("Kernels", func() {
	It("should list every registered kernel", func() {
		Expect(kernels.Names()).To(Equal([]string{"lane", "loop", "nop", "store"}))
	})

	It("should assemble every registered kernel", func() {
		for _, name := range kernels.Names() {
			entry, ok := kernels.Lookup(name)
			Expect(ok).To(BeTrue())

			prog, err := asm.Assemble(entry.Kernel)
			Expect(err).ToNot(HaveOccurred(), name)

			words, err := prog.Words()
			Expect(err).ToNot(HaveOccurred(), name)
			Expect(words).ToNot(BeEmpty())
		}
	})

	It("should end the thread with three thread switches", func() {
		prog, err := asm.Assemble(kernels.ThreadEnd)
		Expect(err).ToNot(HaveOccurred())
		Expect(prog.Len()).To(Equal(8))

		thrsw := 0
		for i := 0; i < prog.Len(); i++ {
			if prog.At(i).Sig.Has(insts.SigThrsw) {
				thrsw++
			}
		}
		Expect(thrsw).To(Equal(3))
	})

	It("should branch back to the loop head", func() {
		prog, err := asm.Assemble(kernels.Loop(5))
		Expect(err).ToNot(HaveOccurred())

		head, ok := prog.LabelIndex("loop")
		Expect(ok).To(BeTrue())

		br := prog.At(head + 2)
		Expect(br.Format).To(Equal(insts.FormatBranch))
		Expect(br.BranchCond).To(Equal(insts.BranchAnyNA))
		Expect(br.Displacement()).To(Equal(int32(-48)))
	})

	It("should reject loop counts without a small immediate", func() {
		_, err := asm.Assemble(kernels.Loop(100))
		Expect(err).To(MatchError(insts.ErrInvalidOperand))
	})
})

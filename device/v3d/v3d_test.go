package v3d

import (
	"unsafe"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DRM interface", func() {
	It("should lay out the ioctl arguments like the kernel headers", func() {
		Expect(unsafe.Sizeof(gemClose{})).To(Equal(uintptr(8)))
		Expect(unsafe.Sizeof(createBO{})).To(Equal(uintptr(16)))
		Expect(unsafe.Sizeof(mmapBO{})).To(Equal(uintptr(16)))
		Expect(unsafe.Sizeof(waitBO{})).To(Equal(uintptr(16)))
		Expect(unsafe.Sizeof(submitCSD{})).To(Equal(uintptr(72)))
		Expect(unsafe.Offsetof(submitCSD{}.BOHandles)).To(Equal(uintptr(48)))
	})

	It("should compute the ioctl request numbers", func() {
		Expect(ioctlGemClose).To(Equal(uintptr(0x40086409)))
		Expect(ioctlWaitBO).To(Equal(uintptr(0xC0106441)))
		Expect(ioctlCreateBO).To(Equal(uintptr(0xC0106442)))
		Expect(ioctlMmapBO).To(Equal(uintptr(0xC0106443)))
		Expect(ioctlSubmitCSD).To(Equal(uintptr(0x40486447)))
	})

	It("should fail to open a missing node", func() {
		_, err := Open("/nonexistent/dri/card0")
		Expect(err).To(HaveOccurred())
	})
})

package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Storage", func() {
	var storage *Storage

	BeforeEach(func() {
		storage = NewStorage(16 * KB)
	})

	It("should read zeros from untouched memory", func() {
		data, err := storage.Read(100, 4)

		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should read back what is written", func() {
		err := storage.Write(10, []byte{1, 2, 3, 4})
		Expect(err).ToNot(HaveOccurred())

		data, err := storage.Read(11, 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(Equal([]byte{2, 3}))
	})

	It("should access across units", func() {
		data := make([]byte, 10)
		for i := range data {
			data[i] = byte(i + 1)
		}

		Expect(storage.Write(4*KB-5, data)).To(Succeed())

		readBack, err := storage.Read(4*KB-5, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(readBack).To(Equal(data))
	})

	It("should read and write little-endian words", func() {
		Expect(storage.WriteWord(64, 0x0807060504030201)).To(Succeed())

		b, err := storage.Read(64, 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{1, 2}))

		w, err := storage.ReadWord(64)
		Expect(err).ToNot(HaveOccurred())
		Expect(w).To(Equal(uint64(0x0807060504030201)))
	})

	It("should reject accesses beyond the capacity", func() {
		_, err := storage.Read(16*KB-4, 8)
		Expect(err).To(MatchError(ErrAccessOutOfRange))

		err = storage.Write(16*KB, []byte{1})
		Expect(err).To(MatchError(ErrAccessOutOfRange))

		Expect(storage.WriteWord(16*KB-8, 1)).To(Succeed())
	})
})

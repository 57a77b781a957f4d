package mem

import (
	"github.com/sarchlab/acpbridge/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Protocol", func() {
	It("should build a read burst request", func() {
		req := ReadReqBuilder{}.
			WithSrc("Bridge.Mem").
			WithDst("Memory.Top").
			WithAddress(0x1000).
			WithBurstLen(9).
			Build()

		Expect(req.ID).NotTo(BeEmpty())
		Expect(req.Meta().Src).To(Equal(sim.RemotePort("Bridge.Mem")))
		Expect(req.Meta().Dst).To(Equal(sim.RemotePort("Memory.Top")))
		Expect(req.Address).To(Equal(uint64(0x1000)))
		Expect(NumBeats(req.BurstLen)).To(Equal(10))
	})

	It("should link beats to their request", func() {
		req := WriteReqBuilder{}.
			WithSrc("Bridge.Mem").
			WithDst("Memory.Top").
			WithBurstLen(2).
			Build()

		beat := WriteBeatBuilder{}.
			WithSrc("Bridge.Mem").
			WithDst("Memory.Top").
			WithTransID(req.ID).
			WithIndex(2).
			WithData(42).
			AsLast().
			Build()

		rsp := WriteDoneRspBuilder{}.
			WithSrc("Memory.Top").
			WithDst("Bridge.Mem").
			WithRspTo(req.ID).
			Build()

		Expect(beat.TransID).To(Equal(req.ID))
		Expect(beat.Last).To(BeTrue())
		Expect(rsp.GetRspTo()).To(Equal(req.ID))
	})

	It("should clone with a fresh ID", func() {
		rsp := DataReadyRspBuilder{}.
			WithSrc("Memory.Top").
			WithDst("Bridge.Mem").
			WithRspTo("1").
			WithData(7).
			Build()

		cloned := rsp.Clone().(*DataReadyRsp)

		Expect(cloned.ID).NotTo(Equal(rsp.ID))
		Expect(cloned.Data).To(Equal(uint64(7)))
		Expect(cloned.GetRspTo()).To(Equal("1"))
	})
})

package acp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/acpbridge/mem"
	"github.com/sarchlab/acpbridge/sim"
)

type wordSlice struct {
	ready bool
	words []uint64
}

func (s *wordSlice) DinReady() bool {
	return s.ready
}

func (s *wordSlice) Din(index int) uint64 {
	return s.words[index]
}

type burstRecorder struct {
	reads  []uint64
	writes []uint64
}

func (r *burstRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosBurstStart {
		return
	}

	switch req := ctx.Item.(type) {
	case *mem.ReadReq:
		r.reads = append(r.reads, req.Address)
	case *mem.WriteReq:
		r.writes = append(r.writes, req.Address)
	}
}

var _ = Describe("Transport", func() {
	var (
		mockCtrl  *gomock.Controller
		port      *MockPort
		bridge    *Comp
		transport *Transport
		bursts    *burstRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		port = NewMockPort(mockCtrl)
		port.EXPECT().AsRemote().Return(sim.RemotePort("Bridge.Mem")).AnyTimes()

		bridge = MakeBuilder().
			WithEngine(sim.NewSerialEngine()).
			WithFabric(NewMockInterface(mockCtrl)).
			WithMemoryPort("Mem.Top").
			Build("Bridge")

		transport = bridge.Transport()
		transport.port = port

		bursts = &burstRecorder{}
		transport.AcceptHook(bursts)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("read", func() {
		It("should only update the address while idle", func() {
			Expect(transport.AddressUpdatable()).To(BeTrue())
			Expect(transport.SetReadBase(0x1000)).To(Succeed())
			Expect(transport.StartRead(RequestBurstLen)).To(Succeed())

			Expect(transport.AddressUpdatable()).To(BeFalse())
			Expect(transport.SetReadBase(0x2000)).To(MatchError(ErrAddressLocked))
			Expect(transport.ReadBase()).To(Equal(uint64(0x1000)))
		})

		It("should refuse a second read", func() {
			Expect(transport.StartRead(RequestBurstLen)).To(Succeed())
			Expect(transport.StartRead(RequestBurstLen)).
				To(MatchError(ErrTransportBusy))
		})

		It("should stay pending until the memory accepts the burst", func() {
			Expect(transport.SetReadBase(0x1000)).To(Succeed())
			Expect(transport.StartRead(1)).To(Succeed())

			port.EXPECT().PeekIncoming().Return(nil).AnyTimes()
			port.EXPECT().Send(gomock.Any()).Return(sim.NewSendError()).Times(2)

			Expect(transport.Tick()).To(BeFalse())
			Expect(transport.Tick()).To(BeFalse())
			Expect(transport.readState).To(Equal(readStart))
			Expect(bursts.reads).To(BeEmpty())

			port.EXPECT().Send(gomock.Any()).
				DoAndReturn(func(msg sim.Msg) *sim.SendError {
					req := msg.(*mem.ReadReq)
					Expect(req.Address).To(Equal(uint64(0x1000)))
					Expect(req.BurstLen).To(Equal(1))
					Expect(req.Dst).To(Equal(sim.RemotePort("Mem.Top")))

					return nil
				})

			Expect(transport.Tick()).To(BeTrue())
			Expect(transport.readState).To(Equal(reading))
			Expect(bursts.reads).To(Equal([]uint64{0x1000}))
		})

		It("should turn beats into word events", func() {
			Expect(transport.StartRead(1)).To(Succeed())
			port.EXPECT().Send(gomock.Any()).Return(nil)
			port.EXPECT().PeekIncoming().Return(nil)
			transport.Tick()

			reqID := transport.readReq.ID
			beat0 := mem.DataReadyRspBuilder{}.
				WithRspTo(reqID).WithIndex(0).WithData(0xA).Build()
			beat1 := mem.DataReadyRspBuilder{}.
				WithRspTo(reqID).WithIndex(1).WithData(0xB).AsLast().Build()

			gomock.InOrder(
				port.EXPECT().PeekIncoming().Return(beat0),
				port.EXPECT().RetrieveIncoming().Return(beat0),
				port.EXPECT().PeekIncoming().Return(beat1),
				port.EXPECT().RetrieveIncoming().Return(beat1),
			)

			Expect(transport.Tick()).To(BeTrue())
			Expect(transport.Tick()).To(BeTrue())

			Expect(transport.events.Pop()).To(Equal(WordReadyEvent{Index: 0, Word: 0xA}))
			Expect(transport.events.Pop()).To(Equal(WordReadyEvent{Index: 1, Word: 0xB}))
			Expect(transport.events.Pop()).To(Equal(ReadDoneEvent{}))
			Expect(transport.ReadIdle()).To(BeTrue())
		})

		It("should hold the last beat until there is room for two events", func() {
			Expect(transport.StartRead(0)).To(Succeed())
			port.EXPECT().Send(gomock.Any()).Return(nil)
			port.EXPECT().PeekIncoming().Return(nil)
			transport.Tick()

			for transport.events.Size() < transport.events.Capacity()-1 {
				transport.events.Push(ReadDoneEvent{})
			}

			beat := mem.DataReadyRspBuilder{}.
				WithRspTo(transport.readReq.ID).WithIndex(0).AsLast().Build()
			port.EXPECT().PeekIncoming().Return(beat)

			Expect(transport.Tick()).To(BeFalse())
			Expect(transport.ReadIdle()).To(BeFalse())
		})

		It("should panic on beats out of order", func() {
			Expect(transport.StartRead(3)).To(Succeed())
			port.EXPECT().Send(gomock.Any()).Return(nil)
			port.EXPECT().PeekIncoming().Return(nil)
			transport.Tick()

			beat := mem.DataReadyRspBuilder{}.
				WithRspTo(transport.readReq.ID).WithIndex(2).Build()
			port.EXPECT().PeekIncoming().Return(beat)

			Expect(func() { transport.Tick() }).To(Panic())
		})
	})

	Context("write", func() {
		var src *wordSlice

		BeforeEach(func() {
			src = &wordSlice{words: []uint64{7, 8, 9}}
		})

		It("should refuse a second write", func() {
			Expect(transport.StartWrite(0x2000, 2, src)).To(Succeed())
			Expect(transport.StartWrite(0x2000, 2, src)).
				To(MatchError(ErrTransportBusy))
		})

		It("should not send data before the source is ready", func() {
			Expect(transport.StartWrite(0x2000, 2, src)).To(Succeed())
			port.EXPECT().PeekIncoming().Return(nil).AnyTimes()

			port.EXPECT().Send(gomock.Any()).Return(sim.NewSendError())
			Expect(transport.Tick()).To(BeFalse())
			Expect(transport.writeState).To(Equal(writeAddrWait))

			port.EXPECT().Send(gomock.Any()).Return(nil)
			Expect(transport.Tick()).To(BeTrue())
			Expect(bursts.writes).To(Equal([]uint64{0x2000}))

			Expect(transport.Tick()).To(BeFalse())
			Expect(transport.writeState).To(Equal(writeDataWait))
		})

		It("should write all the beats and wait for the response", func() {
			src.ready = true
			Expect(transport.StartWrite(0x2000, 2, src)).To(Succeed())
			port.EXPECT().PeekIncoming().Return(nil).Times(5)

			var sent []sim.Msg
			port.EXPECT().Send(gomock.Any()).
				DoAndReturn(func(msg sim.Msg) *sim.SendError {
					sent = append(sent, msg)
					return nil
				}).Times(4)

			for i := 0; i < 5; i++ {
				Expect(transport.Tick()).To(BeTrue())
			}

			Expect(sent).To(HaveLen(4))
			req := sent[0].(*mem.WriteReq)
			Expect(req.BurstLen).To(Equal(2))

			for i, msg := range sent[1:] {
				beat := msg.(*mem.WriteBeat)
				Expect(beat.TransID).To(Equal(req.ID))
				Expect(beat.Index).To(Equal(i))
				Expect(beat.Data).To(Equal(src.words[i]))
				Expect(beat.Last).To(Equal(i == 2))
			}

			Expect(transport.writeState).To(Equal(writeRespWait))

			rsp := mem.WriteDoneRspBuilder{}.WithRspTo(req.ID).Build()
			port.EXPECT().PeekIncoming().Return(rsp)
			port.EXPECT().RetrieveIncoming().Return(rsp)

			Expect(transport.Tick()).To(BeTrue())
			Expect(transport.WriteIdle()).To(BeTrue())
			Expect(transport.events.Pop()).To(Equal(WriteDoneEvent{}))
		})
	})
})

package acp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/acpbridge/mem"
	"github.com/sarchlab/acpbridge/mem/idealmemcontroller"
	"github.com/sarchlab/acpbridge/rtio"
	"github.com/sarchlab/acpbridge/sim"
	"github.com/sarchlab/acpbridge/tracing"
)

const (
	testRequestBase = 0x1000
	testReplyBase   = 0x8000
)

type testPlatform struct {
	engine  *sim.SerialEngine
	memCtrl *idealmemcontroller.Comp
	core    *rtio.Core
	bridge  *Comp
	regs    *Registers
	bursts  *burstRecorder
}

func newTestPlatform(builder Builder) *testPlatform {
	engine := sim.NewSerialEngine()

	memCtrl := idealmemcontroller.MakeBuilder().
		WithEngine(engine).
		WithLatency(10).
		WithNewStorage(1 * mem.MB).
		Build("Mem")

	core := rtio.MakeBuilder().
		WithEngine(engine).
		WithNumChannels(4).
		Build("RTIO")

	bridge := builder.
		WithEngine(engine).
		WithFabric(core).
		WithMemoryPort(memCtrl.GetPortByName("Top").AsRemote()).
		Build("Bridge")

	conn := sim.NewDirectConnection("Conn", engine, 1*sim.GHz)
	conn.PlugIn(bridge.GetPortByName("Mem"))
	conn.PlugIn(memCtrl.GetPortByName("Top"))

	p := &testPlatform{
		engine:  engine,
		memCtrl: memCtrl,
		core:    core,
		bridge:  bridge,
		regs:    bridge.Registers(),
		bursts:  &burstRecorder{},
	}
	bridge.Transport().AcceptHook(p.bursts)

	p.regs.SetEnable(true)
	p.regs.SetRequestBase(testRequestBase)
	p.regs.SetReplyBase(testReplyBase)

	return p
}

func (p *testPlatform) writeRequest(round int, rec RequestRecord) {
	addr := uint64(testRequestBase + round*RecordStride)
	Expect(p.memCtrl.Storage.Write(addr, rec.Bytes())).To(Succeed())
}

func (p *testPlatform) fillStale(rounds int) {
	stale := make([]byte, rounds*RecordStride)
	for i := range stale {
		stale[i] = 0xDE
	}

	Expect(p.memCtrl.Storage.Write(testRequestBase, stale)).To(Succeed())
}

func (p *testPlatform) run() {
	p.regs.Trigger()
	Expect(p.engine.Run()).To(Succeed())
}

func (p *testPlatform) reply() ReplyRecord {
	data, err := p.memCtrl.Storage.Read(testReplyBase, ReplyWords*WordSize)
	Expect(err).ToNot(HaveOccurred())

	reply, err := DecodeReply(data)
	Expect(err).ToNot(HaveOccurred())

	return reply
}

func (p *testPlatform) clearReply() {
	err := p.memCtrl.Storage.Write(testReplyBase, make([]byte, ReplyWords*WordSize))
	Expect(err).ToNot(HaveOccurred())
}

func output(channel uint32, timestamp int64, data ...uint64) RequestRecord {
	rec := RequestRecord{
		Command:   CmdOutput,
		DataWidth: uint8(len(data)),
		Target:    channel << 8,
		Timestamp: timestamp,
	}
	copy(rec.Data[:], data)

	return rec
}

// pollingFabric cannot report status changes. An output keeps the wait flag
// for busyFor after it is submitted.
type pollingFabric struct {
	engine   sim.Engine
	busyFor  sim.VTimeInSec
	readyAt  sim.VTimeInSec
	requests []rtio.Request
}

func (f *pollingFabric) Submit(req rtio.Request) {
	f.requests = append(f.requests, req)
	f.readyAt = f.engine.CurrentTime() + f.busyFor
}

func (f *pollingFabric) OStatus() uint32 {
	if f.engine.CurrentTime() < f.readyAt {
		return rtio.OStatusWait
	}

	return 0
}

func (f *pollingFabric) IStatus() uint32   { return 0 }
func (f *pollingFabric) IData() uint32     { return 0 }
func (f *pollingFabric) ITimestamp() int64 { return 0 }

func (f *pollingFabric) Counter() int64 {
	return int64(f.engine.CurrentTime() * 1e9)
}

type taskRecorder struct {
	started []tracing.Task
	ended   []string
}

func (r *taskRecorder) StartTask(task tracing.Task) {
	r.started = append(r.started, task)
}

func (r *taskRecorder) StepTask(tracing.Task) {}

func (r *taskRecorder) EndTask(task tracing.Task) {
	r.ended = append(r.ended, task.ID)
}

func (r *taskRecorder) ofKind(kind string) []tracing.Task {
	var tasks []tracing.Task
	for _, t := range r.started {
		if t.Kind == kind {
			tasks = append(tasks, t)
		}
	}

	return tasks
}

var _ = Describe("Bridge", func() {
	var p *testPlatform

	Context("single command", func() {
		BeforeEach(func() {
			p = newTestPlatform(MakeBuilder())
		})

		It("should issue an output and reply once", func() {
			p.fillStale(1)
			rec := output(1, 10000, 0xA, 0xB)
			rec.Target |= 7
			p.writeRequest(0, rec)

			p.run()

			outputs := p.core.Outputs(1)
			Expect(outputs).To(HaveLen(1))
			Expect(outputs[0].Address).To(Equal(uint8(7)))
			Expect(outputs[0].Timestamp).To(Equal(int64(10000)))
			Expect(outputs[0].Data).
				To(Equal([rtio.NumDataLanes]uint64{0xA, 0xB}))

			reply := p.reply()
			Expect(reply.Valid()).To(BeTrue())
			Expect(reply.FabricStatus()).To(Equal(uint32(0)))
			Expect(reply.RoundCounter).To(Equal(uint32(0)))
			Expect(reply.LatchedTarget).To(Equal(uint32(1<<8 | 7)))

			Expect(p.bursts.reads).To(Equal([]uint64{testRequestBase}))
			Expect(p.bursts.writes).To(Equal([]uint64{testReplyBase}))
			Expect(p.bridge.Dispatcher().State()).To(Equal(StateIdle))
		})

		It("should zero the unused lanes for every data width", func() {
			for width := 0; width <= MaxDataWords; width++ {
				p.fillStale(1)

				data := make([]uint64, width)
				for i := range data {
					data[i] = uint64(i + 1)
				}

				p.writeRequest(0, output(0, int64(100000+width*100), data...))
				p.run()

				outputs := p.core.Outputs(0)
				Expect(outputs).To(HaveLen(width + 1))

				expected := [rtio.NumDataLanes]uint64{}
				copy(expected[:], data)
				Expect(outputs[width].Data).To(Equal(expected))
			}
		})

		It("should report an underflow", func() {
			p.writeRequest(0, output(0, 0, 1))

			p.run()

			Expect(p.core.Outputs(0)).To(BeEmpty())
			Expect(p.reply().FabricStatus()).To(Equal(rtio.OStatusUnderflow))
		})

		It("should report an unreachable destination", func() {
			p.writeRequest(0, output(9, 10000))

			p.run()

			Expect(p.reply().FabricStatus()).
				To(Equal(rtio.OStatusDestinationUnreachable))
		})

		It("should read an input", func() {
			p.core.InjectInput(2, rtio.InputEvent{Timestamp: 0, Data: 0xBEEF})
			p.writeRequest(0, RequestRecord{
				Command:   CmdInput,
				Target:    2 << 8,
				Timestamp: 100000,
			})

			p.run()

			reply := p.reply()
			Expect(reply.Valid()).To(BeTrue())
			Expect(reply.FabricStatus()).To(Equal(uint32(0)))
			Expect(reply.Data).To(Equal(uint32(0xBEEF)))
			Expect(reply.Timestamp).To(Equal(int64(0)))
			Expect(reply.RoundCounter).To(Equal(uint32(0)))
		})

		It("should report an input timeout", func() {
			p.writeRequest(0, RequestRecord{
				Command:   CmdInput,
				Target:    2 << 8,
				Timestamp: 200,
			})

			p.run()

			Expect(p.reply().FabricStatus()).To(Equal(rtio.IStatusWaitEvent))
			Expect(p.core.Counter()).To(BeNumerically(">=", 200))
		})

		It("should reject an unknown command", func() {
			p.writeRequest(0, RequestRecord{Command: 5, Target: 1 << 8})

			p.run()

			Expect(p.reply().Status).
				To(Equal(StatusReplyValid | StatusInvalidCommand))
			Expect(p.core.Outputs(1)).To(BeEmpty())
		})

		It("should run one round per accepted trigger", func() {
			p.writeRequest(0, output(0, 10000))

			p.regs.Trigger()
			p.run()

			Expect(p.bursts.reads).To(HaveLen(1))
			Expect(p.core.Outputs(0)).To(HaveLen(1))
		})

		It("should not start when disabled", func() {
			p.writeRequest(0, output(0, 10000))
			p.regs.SetEnable(false)

			p.run()

			Expect(p.bursts.reads).To(BeEmpty())
			Expect(p.reply().Valid()).To(BeFalse())
		})

		It("should wait for the memory to accept the burst", func() {
			p.writeRequest(0, output(0, 10000))
			p.memCtrl.Stall()

			p.run()

			Expect(p.bridge.Dispatcher().State()).
				To(Equal(StateAwaitingRequest))
			Expect(p.bridge.Transport().AddressUpdatable()).To(BeFalse())
			Expect(p.core.Outputs(0)).To(BeEmpty())

			p.memCtrl.Resume()
			Expect(p.engine.Run()).To(Succeed())

			Expect(p.reply().Valid()).To(BeTrue())
		})

		It("should stall while the fabric is busy", func() {
			p.writeRequest(0, output(0, 10000))
			p.core.Stall()

			p.run()

			Expect(p.bridge.Dispatcher().State()).
				To(Equal(StateWaitingFabricReady))
			Expect(p.reply().Valid()).To(BeFalse())

			p.core.Resume()
			Expect(p.engine.Run()).To(Succeed())

			Expect(p.reply().Valid()).To(BeTrue())
			Expect(p.bridge.Dispatcher().State()).To(Equal(StateIdle))
		})
	})

	Context("batch", func() {
		BeforeEach(func() {
			p = newTestPlatform(MakeBuilder())
		})

		It("should write a single reply after N rounds", func() {
			p.writeRequest(0, output(0, 10000, 1))
			p.writeRequest(1, RequestRecord{
				Command:   CmdInput,
				DataWidth: 1,
				Target:    2 << 8,
				Timestamp: 10100,
				Data:      [MaxDataWords]uint64{2},
			})
			p.writeRequest(2, output(0, 0, 3))
			p.writeRequest(3, output(9, 10300, 4))
			p.regs.SetBatchLength(4)

			p.run()

			Expect(p.bursts.reads).To(Equal([]uint64{
				testRequestBase,
				testRequestBase + RecordStride,
				testRequestBase + 2*RecordStride,
				testRequestBase + 3*RecordStride,
			}))
			Expect(p.bursts.writes).To(Equal([]uint64{testReplyBase}))

			reply := p.reply()
			Expect(reply.Valid()).To(BeTrue())
			Expect(reply.RoundCounter).To(Equal(uint32(4)))
			Expect(reply.FabricStatus()).To(Equal(
				rtio.OStatusUnderflow | rtio.OStatusDestinationUnreachable))
			Expect(reply.LatchedTarget).To(Equal(uint32(9 << 8)))
			Expect(p.regs.RoundCounter()).To(Equal(uint32(4)))

			Expect(p.core.Outputs(0)).To(HaveLen(1))
			Expect(p.core.Outputs(2)).To(HaveLen(1))
			Expect(p.core.Outputs(2)[0].Data[0]).To(Equal(uint64(2)))
		})

		It("should let the host read the registers while running", func() {
			const rounds = 200
			for i := 0; i < rounds; i++ {
				p.writeRequest(i, output(uint32(i%4), 10000+int64(i)*100, 1))
			}
			p.regs.SetBatchLength(rounds)

			done := make(chan struct{})
			stopped := make(chan struct{})

			go func() {
				defer close(stopped)

				for {
					select {
					case <-done:
						return
					default:
						p.regs.UpdateCounter()
						_ = p.regs.Snapshot()
					}
				}
			}()

			p.run()
			close(done)
			<-stopped

			Expect(p.reply().RoundCounter).To(Equal(uint32(rounds)))
			Expect(p.regs.Snapshot().OStatus).To(Equal(uint32(0)))
		})

		It("should trace the batch, its rounds, and the fabric commands", func() {
			tasks := &taskRecorder{}
			tracing.CollectTrace(p.bridge, tasks)

			p.writeRequest(0, output(0, 10000, 1))
			p.writeRequest(1, output(1, 10100, 2))
			p.regs.SetBatchLength(2)

			p.run()

			batches := tasks.ofKind("batch")
			rounds := tasks.ofKind("round")
			commands := tasks.ofKind("fabric")

			Expect(batches).To(HaveLen(1))
			Expect(batches[0].What).To(Equal("batch"))
			Expect(rounds).To(HaveLen(2))
			Expect(commands).To(HaveLen(2))

			for i, cmd := range commands {
				Expect(cmd.ParentID).To(Equal(rounds[i].ID))
				Expect(cmd.Where).To(Equal("RTIO"))
				Expect(rounds[i].ParentID).To(Equal(batches[0].ID))
			}

			Expect(tasks.ended).To(HaveLen(5))
		})

		It("should start over after the batch length is set again", func() {
			p.writeRequest(0, output(0, 0))
			p.writeRequest(1, output(0, 10000))
			p.regs.SetBatchLength(2)

			p.run()

			Expect(p.reply().FabricStatus()).To(Equal(rtio.OStatusUnderflow))

			p.regs.SetBatchLength(3)
			Expect(p.engine.Run()).To(Succeed())

			desc := p.bridge.Dispatcher().Descriptor()
			Expect(desc.RoundCounter).To(Equal(uint32(0)))
			Expect(desc.ByteOffset).To(Equal(uint64(0)))
			Expect(desc.LatchedError).To(Equal(uint32(0)))
			Expect(p.regs.RoundCounter()).To(Equal(uint32(0)))

			p.clearReply()
			p.writeRequest(0, output(0, 20000))
			p.writeRequest(1, output(0, 20100))
			p.writeRequest(2, output(0, 20200))

			p.run()

			Expect(p.bursts.reads[2:]).To(Equal([]uint64{
				testRequestBase,
				testRequestBase + RecordStride,
				testRequestBase + 2*RecordStride,
			}))

			reply := p.reply()
			Expect(reply.RoundCounter).To(Equal(uint32(3)))
			Expect(reply.FabricStatus()).To(Equal(uint32(0)))
		})

		It("should treat a zero batch length as a single command", func() {
			other := newTestPlatform(MakeBuilder())

			rec := output(1, 10000, 5)
			p.writeRequest(0, rec)
			other.writeRequest(0, rec)

			other.regs.SetBatchLength(5)
			other.regs.SetBatchLength(0)

			p.run()
			other.run()

			Expect(other.reply()).To(Equal(p.reply()))
			Expect(other.core.Outputs(1)).To(Equal(p.core.Outputs(1)))
			Expect(other.bursts.reads).To(Equal(p.bursts.reads))
			Expect(other.bursts.writes).To(Equal(p.bursts.writes))
		})
	})

	Context("with options", func() {
		It("should end the batch at the first error", func() {
			p = newTestPlatform(MakeBuilder().WithStopBatchOnError())

			p.writeRequest(0, output(0, 10000))
			p.writeRequest(1, output(9, 10000))
			p.writeRequest(2, output(0, 10200))
			p.regs.SetBatchLength(3)

			p.run()

			Expect(p.bursts.reads).To(HaveLen(2))

			reply := p.reply()
			Expect(reply.RoundCounter).To(Equal(uint32(2)))
			Expect(reply.FabricStatus()).
				To(Equal(rtio.OStatusDestinationUnreachable))
		})

		It("should time out a stalled fabric", func() {
			p = newTestPlatform(MakeBuilder().WithFabricTimeout(20))

			p.writeRequest(0, output(0, 10000))
			p.core.Stall()

			p.run()

			Expect(p.reply().Status).
				To(Equal(StatusReplyValid | StatusFabricTimeout))
			Expect(p.bridge.Dispatcher().State()).To(Equal(StateIdle))
		})
	})

	Context("with a fabric that cannot notify", func() {
		It("should poll the fabric until it is ready", func() {
			engine := sim.NewSerialEngine()
			fabric := &pollingFabric{engine: engine, busyFor: 150e-9}

			memCtrl := idealmemcontroller.MakeBuilder().
				WithEngine(engine).
				WithLatency(10).
				WithNewStorage(1 * mem.MB).
				Build("Mem")

			bridge := MakeBuilder().
				WithEngine(engine).
				WithFabric(fabric).
				WithMemoryPort(memCtrl.GetPortByName("Top").AsRemote()).
				Build("Bridge")

			conn := sim.NewDirectConnection("Conn", engine, 1*sim.GHz)
			conn.PlugIn(bridge.GetPortByName("Mem"))
			conn.PlugIn(memCtrl.GetPortByName("Top"))

			for i := 0; i < 3; i++ {
				addr := uint64(testRequestBase + i*RecordStride)
				rec := output(uint32(i), 10000, uint64(i))
				Expect(memCtrl.Storage.Write(addr, rec.Bytes())).To(Succeed())
			}

			regs := bridge.Registers()
			regs.SetEnable(true)
			regs.SetRequestBase(testRequestBase)
			regs.SetReplyBase(testReplyBase)
			regs.SetBatchLength(3)
			regs.Trigger()

			Expect(engine.Run()).To(Succeed())

			data, err := memCtrl.Storage.Read(testReplyBase, ReplyWords*WordSize)
			Expect(err).ToNot(HaveOccurred())
			reply, err := DecodeReply(data)
			Expect(err).ToNot(HaveOccurred())

			Expect(reply.Valid()).To(BeTrue())
			Expect(reply.RoundCounter).To(Equal(uint32(3)))
			Expect(reply.FabricStatus()).To(Equal(uint32(0)))
			Expect(fabric.requests).To(HaveLen(3))
			Expect(float64(engine.CurrentTime())).
				To(BeNumerically(">=", 3*150e-9))
			Expect(bridge.Dispatcher().State()).To(Equal(StateIdle))
		})
	})
})

package acp

import (
	"errors"
	"log"
	"reflect"

	"github.com/sarchlab/acpbridge/mem"
	"github.com/sarchlab/acpbridge/sim"
	"github.com/sarchlab/acpbridge/tracing"
)

// HookPosBurstStart marks a burst request leaving the transport. The item is
// the *mem.ReadReq or *mem.WriteReq.
var HookPosBurstStart = &sim.HookPos{Name: "ACP Burst Start"}

var (
	// ErrTransportBusy is returned when starting a burst in a direction that
	// already has one.
	ErrTransportBusy = errors.New("transport busy")

	// ErrAddressLocked is returned when the read base is changed after a
	// read burst has been started.
	ErrAddressLocked = errors.New("read base address locked")
)

// A WordSource supplies the words of a write burst.
type WordSource interface {
	// DinReady tells whether the words can be read.
	DinReady() bool

	// Din returns the word at the given index of the burst.
	Din(index int) uint64
}

type readState int

const (
	readIdle readState = iota
	readStart
	reading
)

type writeState int

const (
	writeIdle writeState = iota
	writeAddrWait
	writeDataWait
	writing
	writeRespWait
)

// Transport moves bursts of 64-bit words between the memory port and the
// dispatcher. Reads and writes have independent state machines. A burst that
// the memory does not accept stays in its start state and is retried every
// tick.
type Transport struct {
	sim.HookableBase

	comp   *Comp
	port   sim.Port
	remote sim.RemotePort
	events sim.Buffer

	readState    readState
	readBase     uint64
	readBurstLen int
	readIndex    int
	readReq      *mem.ReadReq

	writeState    writeState
	writeBase     uint64
	writeBurstLen int
	writeIndex    int
	writeReq      *mem.WriteReq
	src           WordSource
}

// Name returns the name of the transport.
func (t *Transport) Name() string {
	return t.comp.Name() + ".Transport"
}

// AddressUpdatable tells whether SetReadBase may be called.
func (t *Transport) AddressUpdatable() bool {
	return t.readState == readIdle
}

// ReadIdle tells whether no read burst is pending or in flight.
func (t *Transport) ReadIdle() bool {
	return t.readState == readIdle
}

// WriteIdle tells whether no write burst is pending or in flight.
func (t *Transport) WriteIdle() bool {
	return t.writeState == writeIdle
}

// ReadBase returns the base address of the next read burst.
func (t *Transport) ReadBase() uint64 {
	return t.readBase
}

// SetReadBase sets the base address of the next read burst.
func (t *Transport) SetReadBase(addr uint64) error {
	if !t.AddressUpdatable() {
		return ErrAddressLocked
	}

	t.readBase = addr

	return nil
}

// StartRead starts a read burst of burstLen+1 words from the read base.
func (t *Transport) StartRead(burstLen int) error {
	if t.readState != readIdle {
		return ErrTransportBusy
	}

	burstLenMustBeValid(burstLen)

	t.readBurstLen = burstLen
	t.readIndex = 0
	t.readState = readStart
	t.comp.TickLater()

	return nil
}

// StartWrite starts a write burst of burstLen+1 words to base. The words are
// taken from src once src is ready.
func (t *Transport) StartWrite(
	base uint64,
	burstLen int,
	src WordSource,
) error {
	if t.writeState != writeIdle {
		return ErrTransportBusy
	}

	burstLenMustBeValid(burstLen)

	t.writeBase = base
	t.writeBurstLen = burstLen
	t.writeIndex = 0
	t.src = src
	t.writeState = writeAddrWait
	t.comp.TickLater()

	return nil
}

func burstLenMustBeValid(burstLen int) {
	if burstLen < 0 {
		log.Panicf("burst length %d is negative", burstLen)
	}
}

// Tick moves both bursts forward.
func (t *Transport) Tick() bool {
	madeProgress := false

	madeProgress = t.sendWriteBeat() || madeProgress
	madeProgress = t.sendWriteReq() || madeProgress
	madeProgress = t.sendReadReq() || madeProgress
	madeProgress = t.parseFromMem() || madeProgress

	return madeProgress
}

func (t *Transport) sendReadReq() bool {
	if t.readState != readStart {
		return false
	}

	req := mem.ReadReqBuilder{}.
		WithSrc(t.port.AsRemote()).
		WithDst(t.remote).
		WithAddress(t.readBase).
		WithBurstLen(t.readBurstLen).
		Build()

	if err := t.port.Send(req); err != nil {
		return false
	}

	t.readReq = req
	t.readState = reading

	t.invokeBurstStart(req)
	tracing.TraceReqInitiate(req, t.comp, "")

	return true
}

func (t *Transport) sendWriteReq() bool {
	if t.writeState != writeAddrWait {
		return false
	}

	req := mem.WriteReqBuilder{}.
		WithSrc(t.port.AsRemote()).
		WithDst(t.remote).
		WithAddress(t.writeBase).
		WithBurstLen(t.writeBurstLen).
		Build()

	if err := t.port.Send(req); err != nil {
		return false
	}

	t.writeReq = req
	t.writeState = writeDataWait

	t.invokeBurstStart(req)
	tracing.TraceReqInitiate(req, t.comp, "")

	return true
}

func (t *Transport) sendWriteBeat() bool {
	switch t.writeState {
	case writeDataWait:
		if !t.src.DinReady() {
			return false
		}

		t.writeState = writing

		return true
	case writing:
	default:
		return false
	}

	builder := mem.WriteBeatBuilder{}.
		WithSrc(t.port.AsRemote()).
		WithDst(t.remote).
		WithTransID(t.writeReq.ID).
		WithIndex(t.writeIndex).
		WithData(t.src.Din(t.writeIndex))

	last := t.writeIndex == t.writeBurstLen
	if last {
		builder = builder.AsLast()
	}

	if err := t.port.Send(builder.Build()); err != nil {
		return false
	}

	t.writeIndex++

	if last {
		t.writeState = writeRespWait
	}

	return true
}

func (t *Transport) parseFromMem() bool {
	msg := t.port.PeekIncoming()
	if msg == nil {
		return false
	}

	switch msg := msg.(type) {
	case *mem.DataReadyRsp:
		return t.handleDataReady(msg)
	case *mem.WriteDoneRsp:
		return t.handleWriteDone(msg)
	default:
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(msg))
	}

	return false
}

func (t *Transport) handleDataReady(rsp *mem.DataReadyRsp) bool {
	if t.readState != reading || rsp.RespondTo != t.readReq.ID {
		log.Panicf("read beat %s does not belong to any burst", rsp.ID)
	}

	needed := 1
	if rsp.Last {
		needed = 2
	}

	if t.events.Capacity()-t.events.Size() < needed {
		return false
	}

	if rsp.Index != t.readIndex {
		log.Panicf("read beat %d arrives while expecting beat %d",
			rsp.Index, t.readIndex)
	}

	t.port.RetrieveIncoming()
	t.events.Push(WordReadyEvent{Index: rsp.Index, Word: rsp.Data})
	t.readIndex++

	if !rsp.Last {
		return true
	}

	if rsp.Index != t.readBurstLen {
		log.Panicf("read burst ends after %d beats, expecting %d",
			rsp.Index+1, t.readBurstLen+1)
	}

	t.events.Push(ReadDoneEvent{})
	tracing.TraceReqFinalize(t.readReq, t.comp)

	t.readReq = nil
	t.readState = readIdle

	return true
}

func (t *Transport) handleWriteDone(rsp *mem.WriteDoneRsp) bool {
	if t.writeState != writeRespWait || rsp.RespondTo != t.writeReq.ID {
		log.Panicf("write response %s does not belong to any burst", rsp.ID)
	}

	if !t.events.CanPush() {
		return false
	}

	t.port.RetrieveIncoming()
	t.events.Push(WriteDoneEvent{})
	tracing.TraceReqFinalize(t.writeReq, t.comp)

	t.writeReq = nil
	t.src = nil
	t.writeState = writeIdle

	return true
}

func (t *Transport) invokeBurstStart(req sim.Msg) {
	if t.NumHooks() == 0 {
		return
	}

	t.InvokeHook(sim.HookCtx{
		Domain: t,
		Now:    t.comp.CurrentTime(),
		Pos:    HookPosBurstStart,
		Item:   req,
	})
}

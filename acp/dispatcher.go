package acp

import (
	"log"

	"github.com/sarchlab/acpbridge/rtio"
	"github.com/sarchlab/acpbridge/sim"
	"github.com/sarchlab/acpbridge/tracing"
)

// DispatcherState is the state of the command dispatcher.
type DispatcherState int

// States of the dispatcher.
const (
	StateIdle DispatcherState = iota
	StateAwaitingRequest
	StateWaitingFabricReady
	StateWritingReply
)

func (s DispatcherState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingRequest:
		return "AwaitingRequest"
	case StateWaitingFabricReady:
		return "WaitingFabricReady"
	case StateWritingReply:
		return "WritingReply"
	default:
		return "Unknown"
	}
}

type commandClass int

const (
	classNop commandClass = iota
	classWrite
	classRead
)

func (c commandClass) String() string {
	switch c {
	case classWrite:
		return "write"
	case classRead:
		return "read"
	default:
		return "nop"
	}
}

// BatchDescriptor is the round bookkeeping of a batch.
type BatchDescriptor struct {
	Length        uint32
	RoundCounter  uint32
	ByteOffset    uint64
	LatchedError  uint32
	LatchedTarget uint32
}

// Enabled tells whether batching is on.
func (d BatchDescriptor) Enabled() bool {
	return d.Length != 0
}

func (d *BatchDescriptor) reset() {
	d.RoundCounter = 0
	d.ByteOffset = 0
	d.LatchedError = 0
}

// Dispatcher decodes request words into fabric commands, waits for the fabric
// and produces the reply.
type Dispatcher struct {
	comp      *Comp
	transport *Transport
	fabric    rtio.Interface
	regs      *Registers
	events    sim.Buffer
	logger    *log.Logger

	stopOnError   bool
	fabricTimeout int

	// fabricNotifies is false for fabrics that cannot report status
	// changes. The dispatcher then polls them every cycle.
	fabricNotifies bool

	state DispatcherState
	desc  BatchDescriptor

	seenGeneration uint64
	configDeferred bool
	seenTriggers   uint64
	pendingTrigger bool

	req        RequestRecord
	class      commandClass
	fabricDone bool
	errBits    uint32
	waitCycles int

	reply      ReplyRecord
	replyWords [ReplyWords]uint64

	batchTaskID  string
	roundTaskID  string
	fabricTaskID string

	// fabricLocation is where the fabric tasks are traced.
	fabricLocation string
}

// State returns the current state.
func (d *Dispatcher) State() DispatcherState {
	return d.state
}

// Descriptor returns a copy of the batch descriptor.
func (d *Dispatcher) Descriptor() BatchDescriptor {
	return d.desc
}

// LastReply returns the last reply that the dispatcher has produced.
func (d *Dispatcher) LastReply() ReplyRecord {
	return d.reply
}

// DinReady tells the transport that the reply can be written.
func (d *Dispatcher) DinReady() bool {
	return d.state == StateWritingReply
}

// Din returns a word of the reply.
func (d *Dispatcher) Din(index int) uint64 {
	return d.replyWords[index]
}

// Tick runs the dispatcher for one cycle.
func (d *Dispatcher) Tick() bool {
	madeProgress := false

	madeProgress = d.syncConfig() || madeProgress
	madeProgress = d.detectTrigger() || madeProgress
	madeProgress = d.handleEvents() || madeProgress

	switch d.state {
	case StateIdle:
		madeProgress = d.startBatch() || madeProgress
	case StateWaitingFabricReady:
		madeProgress = d.waitFabric() || madeProgress
	}

	return madeProgress
}

func (d *Dispatcher) syncConfig() bool {
	length, generation := d.regs.batchConfig()
	if generation == d.seenGeneration {
		return false
	}

	if d.state != StateIdle {
		if !d.configDeferred {
			d.logf("batch length set to %d while %s, applying it when idle",
				length, d.state)
			d.configDeferred = true
		}

		return false
	}

	d.seenGeneration = generation
	d.configDeferred = false

	d.desc.Length = length
	d.desc.reset()
	d.regs.setRoundState(0, d.desc.LatchedTarget)

	return true
}

func (d *Dispatcher) detectTrigger() bool {
	count := d.regs.triggerCount()
	if count == d.seenTriggers {
		return false
	}

	edges := count - d.seenTriggers
	d.seenTriggers = count

	if d.state == StateIdle && !d.pendingTrigger && d.regs.Enable() {
		d.pendingTrigger = true
		edges--
	}

	if edges > 0 {
		d.logf("dropping %d trigger(s) while %s", edges, d.state)
	}

	return true
}

func (d *Dispatcher) handleEvents() bool {
	madeProgress := false

	for d.events.Size() > 0 {
		switch evt := d.events.Pop().(type) {
		case WordReadyEvent:
			d.handleWord(evt)
		case ReadDoneEvent:
		case WriteDoneEvent:
			d.handleReplyWritten()
		default:
			log.Panicf("unknown transport event %T", evt)
		}

		madeProgress = true
	}

	return madeProgress
}

func (d *Dispatcher) startBatch() bool {
	if !d.pendingTrigger {
		return false
	}

	if !d.regs.Enable() {
		d.pendingTrigger = false
		d.logf("dropping trigger, bridge disabled")

		return true
	}

	if !d.transport.ReadIdle() {
		return false
	}

	d.pendingTrigger = false
	d.desc.reset()
	d.regs.setRoundState(0, d.desc.LatchedTarget)

	d.batchTaskID = sim.GetIDGenerator().Generate()
	what := "single"
	if d.desc.Enabled() {
		what = "batch"
	}
	tracing.StartTask(d.batchTaskID, "", d.comp, "batch", what, nil)

	d.startRound()

	return true
}

func (d *Dispatcher) startRound() {
	base := d.regs.RequestBase() + d.desc.ByteOffset

	if err := d.transport.SetReadBase(base); err != nil {
		log.Panic(err)
	}

	if err := d.transport.StartRead(RequestBurstLen); err != nil {
		log.Panic(err)
	}

	d.req = RequestRecord{}
	d.class = classNop
	d.fabricDone = false
	d.errBits = 0
	d.waitCycles = 0
	d.state = StateAwaitingRequest

	d.roundTaskID = sim.GetIDGenerator().Generate()
	tracing.StartTask(d.roundTaskID, d.batchTaskID, d.comp, "round",
		"request", nil)
}

func (d *Dispatcher) handleWord(evt WordReadyEvent) {
	if d.state != StateAwaitingRequest {
		return
	}

	if d.req.decodeWord(evt.Index, evt.Word) {
		d.issue()
	}
}

func (d *Dispatcher) issue() {
	fabricReq := rtio.Request{
		ChanSel:   d.req.Target >> 8,
		Address:   uint8(d.req.Target),
		Timestamp: d.req.Timestamp,
		Data:      d.req.Data,
	}

	switch {
	case d.desc.Enabled() || d.req.Command == CmdOutput:
		d.class = classWrite
		fabricReq.Command = rtio.CmdWrite
	case d.req.Command == CmdInput:
		d.class = classRead
		fabricReq.Command = rtio.CmdRead
	default:
		d.class = classNop
	}

	d.desc.LatchedTarget = d.req.Target
	d.regs.setRoundState(d.desc.RoundCounter, d.desc.LatchedTarget)
	d.state = StateWaitingFabricReady

	tracing.AddTaskStep(d.roundTaskID, d.comp, "issue "+d.class.String())

	if d.class != classNop {
		d.fabric.Submit(fabricReq)

		d.fabricTaskID = sim.GetIDGenerator().Generate()
		tracing.StartTaskWithSpecificLocation(d.fabricTaskID, d.roundTaskID,
			d.comp, "fabric", d.class.String(), d.fabricLocation, fabricReq)
	}
}

func (d *Dispatcher) waitFabric() bool {
	madeProgress := false

	if !d.fabricDone {
		if !d.pollFabric() {
			return d.countWait() || !d.fabricNotifies
		}

		d.completeCommand()
		madeProgress = true
	}

	return d.finishRound() || madeProgress
}

func (d *Dispatcher) pollFabric() bool {
	switch d.class {
	case classWrite:
		status := d.fabric.OStatus()
		d.errBits = status &^ rtio.OStatusWait

		return status&rtio.OStatusWait == 0
	case classRead:
		status := d.fabric.IStatus()
		d.errBits = status &^ rtio.IStatusWaitStatus

		return status&rtio.IStatusWaitStatus == 0
	default:
		d.errBits = StatusInvalidCommand
		return true
	}
}

func (d *Dispatcher) countWait() bool {
	if d.fabricTimeout <= 0 {
		return false
	}

	d.waitCycles++
	if d.waitCycles < d.fabricTimeout {
		return true
	}

	d.logf("fabric busy for %d cycles, target 0x%x", d.waitCycles,
		d.req.Target)

	d.errBits = StatusFabricTimeout
	d.completeCommand()

	return true
}

func (d *Dispatcher) completeCommand() {
	d.fabricDone = true

	if d.fabricTaskID != "" {
		tracing.EndTask(d.fabricTaskID, d.comp)
		d.fabricTaskID = ""
	}

	if d.desc.Enabled() {
		d.desc.LatchedError |= d.errBits
	}
}

func (d *Dispatcher) finishRound() bool {
	if d.isFinalRound() {
		d.endRound()
		d.writeReply()

		return true
	}

	if !d.transport.ReadIdle() || !d.regs.Enable() {
		return false
	}

	d.endRound()
	d.desc.RoundCounter++
	d.desc.ByteOffset += RecordStride
	d.regs.setRoundState(d.desc.RoundCounter, d.desc.LatchedTarget)
	d.startRound()

	return true
}

func (d *Dispatcher) isFinalRound() bool {
	if !d.desc.Enabled() {
		return true
	}

	if d.desc.RoundCounter+1 >= d.desc.Length {
		return true
	}

	return d.stopOnError && d.errBits != 0
}

func (d *Dispatcher) endRound() {
	tracing.EndTask(d.roundTaskID, d.comp)
	d.roundTaskID = ""
}

func (d *Dispatcher) writeReply() {
	reply := ReplyRecord{LatchedTarget: d.desc.LatchedTarget}

	if d.desc.Enabled() {
		d.desc.RoundCounter++
		reply.Status = StatusReplyValid | d.desc.LatchedError
		reply.RoundCounter = d.desc.RoundCounter
	} else {
		reply.Status = StatusReplyValid | d.errBits
	}

	if d.class == classRead {
		reply.Data = d.fabric.IData()
		reply.Timestamp = d.fabric.ITimestamp()
	}

	d.reply = reply
	d.replyWords = reply.Words()
	d.regs.setRoundState(d.desc.RoundCounter, d.desc.LatchedTarget)

	err := d.transport.StartWrite(d.regs.ReplyBase(), ReplyBurstLen, d)
	if err != nil {
		log.Panic(err)
	}

	d.state = StateWritingReply
}

func (d *Dispatcher) handleReplyWritten() {
	if d.state != StateWritingReply {
		log.Panicf("reply written while %s", d.state)
	}

	tracing.EndTask(d.batchTaskID, d.comp)
	d.batchTaskID = ""
	d.state = StateIdle
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.logger == nil {
		return
	}

	d.logger.Printf("%.10f, %s, "+format,
		append([]interface{}{d.comp.CurrentTime(), d.comp.Name()}, args...)...)
}

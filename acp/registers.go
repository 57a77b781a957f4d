package acp

import (
	"sync"

	"github.com/sarchlab/acpbridge/rtio"
)

// Registers is the register file that the host uses to control the bridge.
// It is safe to access from any goroutine, as the fabric getters that it
// mirrors are. Every write wakes the bridge up.
type Registers struct {
	mu     sync.Mutex
	wake   func()
	fabric rtio.Interface

	enable      bool
	requestBase uint64
	replyBase   uint64

	batchLength     uint32
	batchGeneration uint64
	triggers        uint64

	roundCounter  uint32
	latchedTarget uint32
	counter       int64
}

func newRegisters(fabric rtio.Interface, wake func()) *Registers {
	return &Registers{
		fabric: fabric,
		wake:   wake,
	}
}

func (r *Registers) write(f func()) {
	r.mu.Lock()
	f()
	r.mu.Unlock()

	if r.wake != nil {
		r.wake()
	}
}

// SetEnable gates the acceptance of triggers.
func (r *Registers) SetEnable(enable bool) {
	r.write(func() { r.enable = enable })
}

// Enable returns the enable flag.
func (r *Registers) Enable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.enable
}

// SetRequestBase sets where the request record of the first round is read.
func (r *Registers) SetRequestBase(addr uint64) {
	r.write(func() { r.requestBase = addr })
}

// RequestBase returns the address of the first request record.
func (r *Registers) RequestBase() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.requestBase
}

// SetReplyBase sets where the reply record is written.
func (r *Registers) SetReplyBase(addr uint64) {
	r.write(func() { r.replyBase = addr })
}

// ReplyBase returns the address of the reply record.
func (r *Registers) ReplyBase() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.replyBase
}

// SetBatchLength sets the number of rounds of a batch, 0 disabling batches.
// Every write resets the round counter, the offset, and the latched error,
// even when the value does not change.
func (r *Registers) SetBatchLength(n uint32) {
	r.write(func() {
		r.batchLength = n
		r.batchGeneration++
		r.roundCounter = 0
	})
}

// BatchLength returns the configured batch length.
func (r *Registers) BatchLength() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.batchLength
}

func (r *Registers) batchConfig() (length uint32, generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.batchLength, r.batchGeneration
}

// Trigger toggles the trigger line. Each toggle is one edge.
func (r *Registers) Trigger() {
	r.write(func() { r.triggers++ })
}

func (r *Registers) triggerCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.triggers
}

// RoundCounter returns the number of rounds completed by the current batch.
func (r *Registers) RoundCounter() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.roundCounter
}

// LatchedTarget returns the target of the last issued command.
func (r *Registers) LatchedTarget() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.latchedTarget
}

func (r *Registers) setRoundState(roundCounter, latchedTarget uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roundCounter = roundCounter
	r.latchedTarget = latchedTarget
}

// OStatus mirrors the output status of the fabric.
func (r *Registers) OStatus() uint32 {
	return r.fabric.OStatus()
}

// IStatus mirrors the input status of the fabric.
func (r *Registers) IStatus() uint32 {
	return r.fabric.IStatus()
}

// UpdateCounter latches the fabric timestamp counter so that Counter can read
// it.
func (r *Registers) UpdateCounter() {
	value := r.fabric.Counter()

	r.mu.Lock()
	r.counter = value
	r.mu.Unlock()
}

// Counter returns the value latched by the last UpdateCounter.
func (r *Registers) Counter() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counter
}

// RegisterSnapshot is a copy of the register file taken at one instant.
type RegisterSnapshot struct {
	Enable        bool   `json:"enable"`
	RequestBase   uint64 `json:"request_base"`
	ReplyBase     uint64 `json:"reply_base"`
	BatchLength   uint32 `json:"batch_length"`
	RoundCounter  uint32 `json:"round_counter"`
	LatchedTarget uint32 `json:"latched_target"`
	OStatus       uint32 `json:"o_status"`
	IStatus       uint32 `json:"i_status"`
	Counter       int64  `json:"counter"`
}

// Snapshot copies the register file.
func (r *Registers) Snapshot() RegisterSnapshot {
	oStatus := r.fabric.OStatus()
	iStatus := r.fabric.IStatus()

	r.mu.Lock()
	defer r.mu.Unlock()

	return RegisterSnapshot{
		Enable:        r.enable,
		RequestBase:   r.requestBase,
		ReplyBase:     r.replyBase,
		BatchLength:   r.batchLength,
		RoundCounter:  r.roundCounter,
		LatchedTarget: r.latchedTarget,
		OStatus:       oStatus,
		IStatus:       iStatus,
		Counter:       r.counter,
	}
}

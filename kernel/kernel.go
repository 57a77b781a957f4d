// Package kernel is the host side of the bridge. It fills the transaction
// buffer in the simulated memory, triggers the bridge, and runs the engine
// until the reply arrives, which gives experiment code a synchronous API.
package kernel

import (
	"fmt"

	"github.com/sarchlab/acpbridge/acp"
	"github.com/sarchlab/acpbridge/mem"
	"github.com/sarchlab/acpbridge/rtio"
	"github.com/sarchlab/acpbridge/sim"
)

// transactionSize covers the request and the reply of the transaction
// buffer.
const transactionSize = acp.ReplyOffset + acp.ReplyWords*acp.WordSize

// MaxLanes is the number of 32-bit data lanes that one output can carry.
const MaxLanes = 2 * acp.MaxDataWords

// TimestampedData is an input together with the time it was captured.
type TimestampedData struct {
	Timestamp int64
	Data      int32
}

// Kernel issues real-time I/O commands through the bridge. It is not safe
// for concurrent use.
type Kernel struct {
	engine  sim.Engine
	storage *mem.Storage
	regs    *acp.Registers

	transactionBase uint64
	batchBase       uint64
	batchCapacity   int
	logChannel      uint32

	now          int64
	triggers     uint64
	batchRunning bool
	batch        []acp.RequestRecord
}

// Init points the bridge to the transaction buffer and enables it.
func (k *Kernel) Init() {
	k.regs.SetRequestBase(k.transactionBase)
	k.regs.SetReplyBase(k.transactionBase + acp.ReplyOffset)
	k.regs.SetBatchLength(0)
	k.regs.SetEnable(true)
}

// NowMu returns the timeline cursor in machine units.
func (k *Kernel) NowMu() int64 {
	return k.now
}

// AtMu moves the timeline cursor to t.
func (k *Kernel) AtMu(t int64) {
	k.now = t
}

// DelayMu advances the timeline cursor by dt.
func (k *Kernel) DelayMu(dt int64) {
	k.now += dt
}

// GetCounter returns the current value of the fabric timestamp counter.
func (k *Kernel) GetCounter() int64 {
	k.regs.UpdateCounter()
	return k.regs.Counter()
}

// Triggers returns the number of times the kernel has triggered the bridge.
func (k *Kernel) Triggers() uint64 {
	return k.triggers
}

// BatchRunning tells if outputs are being collected into a batch.
func (k *Kernel) BatchRunning() bool {
	return k.batchRunning
}

// Output sends a 32-bit value to the target at the timeline cursor. While a
// batch is running, the output is appended to the batch instead.
func (k *Kernel) Output(target uint32, data int32) error {
	return k.OutputWide(target, []int32{data})
}

// OutputWide sends up to MaxLanes 32-bit values to the target at the
// timeline cursor. Two lanes share a 64-bit data word, the first lane in the
// low half.
func (k *Kernel) OutputWide(target uint32, data []int32) error {
	if len(data) > MaxLanes {
		return fmt.Errorf("%w: %d lanes, at most %d",
			ErrTooManyLanes, len(data), MaxLanes)
	}

	rec := acp.RequestRecord{
		Command:   acp.CmdOutput,
		DataWidth: uint8((len(data) + 1) / 2),
		Target:    target,
		Timestamp: k.now,
	}

	for i, lane := range data {
		rec.Data[i/2] |= uint64(uint32(lane)) << (32 * (i % 2))
	}

	if k.batchRunning {
		return k.appendToBatch(rec)
	}

	reply, err := k.transact(rec)
	if err != nil {
		return err
	}

	return k.outputStatusToError(target>>8, reply.Status&^acp.StatusReplyValid)
}

// InputTimestamp waits until the timeout for an input on the channel and
// returns its timestamp, or -1 if no input arrived in time.
func (k *Kernel) InputTimestamp(timeout int64, channel uint32) (int64, error) {
	reply, err := k.transact(inputRecord(timeout, channel))
	if err != nil {
		return 0, err
	}

	status := reply.Status &^ acp.StatusReplyValid

	if status&rtio.IStatusOverflow != 0 {
		return 0, &RTIOError{Kind: ErrOverflow, Channel: channel, Input: true}
	}

	if status&rtio.IStatusWaitEvent != 0 {
		return -1, nil
	}

	err = inputStatusToError(channel, status&^rtio.IStatusOverflow)
	if err != nil {
		return 0, err
	}

	return reply.Timestamp, nil
}

// InputData waits without timeout for an input on the channel and returns
// its data.
func (k *Kernel) InputData(channel uint32) (int32, error) {
	reply, err := k.transact(inputRecord(-1, channel))
	if err != nil {
		return 0, err
	}

	err = inputStatusToError(channel, reply.Status&^acp.StatusReplyValid)
	if err != nil {
		return 0, err
	}

	return int32(reply.Data), nil
}

// InputTimestampedData waits until the timeout for an input on the channel
// and returns both its timestamp and its data.
func (k *Kernel) InputTimestampedData(
	timeout int64,
	channel uint32,
) (TimestampedData, error) {
	reply, err := k.transact(inputRecord(timeout, channel))
	if err != nil {
		return TimestampedData{}, err
	}

	err = inputStatusToError(channel, reply.Status&^acp.StatusReplyValid)
	if err != nil {
		return TimestampedData{}, err
	}

	return TimestampedData{
		Timestamp: reply.Timestamp,
		Data:      int32(reply.Data),
	}, nil
}

// WriteLog sends a message to the log channel, four bytes per output with
// the first byte in the most significant position.
func (k *Kernel) WriteLog(data []byte) error {
	target := k.logChannel << 8

	var word uint32
	for i, b := range data {
		word = word<<8 | uint32(b)
		if i%4 == 3 {
			if err := k.Output(target, int32(word)); err != nil {
				return err
			}

			word = 0
		}
	}

	if word != 0 {
		return k.Output(target, int32(word))
	}

	return nil
}

// BatchStart makes the following outputs accumulate until BatchEnd.
func (k *Kernel) BatchStart() error {
	if k.batchRunning {
		return ErrBatchRunning
	}

	k.batch = make([]acp.RequestRecord, 0, k.batchCapacity)
	k.batchRunning = true

	return nil
}

// BatchEnd issues the accumulated outputs with a single trigger and reports
// the errors of the whole batch. An empty batch issues nothing.
func (k *Kernel) BatchEnd() error {
	k.batchRunning = false

	batch := k.batch
	k.batch = nil

	if len(batch) == 0 {
		return nil
	}

	for i, rec := range batch {
		addr := k.batchBase + uint64(i)*acp.RecordStride
		if err := k.storage.Write(addr, rec.Bytes()); err != nil {
			return err
		}
	}

	k.regs.SetBatchLength(uint32(len(batch)))
	k.regs.SetRequestBase(k.batchBase)

	reply, err := k.await()

	k.regs.SetBatchLength(0)
	k.regs.SetRequestBase(k.transactionBase)

	if err != nil {
		return err
	}

	return k.outputStatusToError(
		reply.LatchedTarget>>8, reply.Status&^acp.StatusReplyValid)
}

func (k *Kernel) appendToBatch(rec acp.RequestRecord) error {
	if len(k.batch) >= k.batchCapacity {
		return fmt.Errorf("%w: capacity %d", ErrBatchFull, k.batchCapacity)
	}

	k.batch = append(k.batch, rec)

	return nil
}

func inputRecord(timeout int64, channel uint32) acp.RequestRecord {
	return acp.RequestRecord{
		Command:   acp.CmdInput,
		Target:    channel << 8,
		Timestamp: timeout,
	}
}

// transact places the request into the transaction buffer and waits for the
// reply.
func (k *Kernel) transact(rec acp.RequestRecord) (acp.ReplyRecord, error) {
	err := k.storage.Write(k.transactionBase, rec.Bytes())
	if err != nil {
		return acp.ReplyRecord{}, err
	}

	return k.await()
}

// await clears the reply, triggers the bridge, and runs the engine until no
// event is left. A stalled fabric leaves the reply empty.
func (k *Kernel) await() (acp.ReplyRecord, error) {
	replyAddr := k.transactionBase + acp.ReplyOffset

	err := k.storage.Write(replyAddr, make([]byte, acp.ReplyWords*acp.WordSize))
	if err != nil {
		return acp.ReplyRecord{}, err
	}

	k.regs.Trigger()
	k.triggers++

	if err := k.engine.Run(); err != nil {
		return acp.ReplyRecord{}, err
	}

	data, err := k.storage.Read(replyAddr, acp.ReplyWords*acp.WordSize)
	if err != nil {
		return acp.ReplyRecord{}, err
	}

	reply, err := acp.DecodeReply(data)
	if err != nil {
		return acp.ReplyRecord{}, err
	}

	if !reply.Valid() {
		return reply, ErrNoReply
	}

	return reply, nil
}

func (k *Kernel) outputStatusToError(channel, status uint32) error {
	switch {
	case status == 0:
		return nil
	case status&acp.StatusFabricTimeout != 0:
		return &RTIOError{Kind: ErrFabricTimeout, Channel: channel, Timestamp: k.now}
	case status&acp.StatusInvalidCommand != 0:
		return &RTIOError{Kind: ErrInvalidCommand, Channel: channel, Timestamp: k.now}
	case status&rtio.OStatusUnderflow != 0:
		return &RTIOError{
			Kind:      ErrUnderflow,
			Channel:   channel,
			Timestamp: k.now,
			Slack:     k.now - k.GetCounter(),
		}
	case status&rtio.OStatusDestinationUnreachable != 0:
		return &RTIOError{
			Kind:      ErrDestinationUnreachable,
			Channel:   channel,
			Timestamp: k.now,
		}
	default:
		return nil
	}
}

func inputStatusToError(channel, status uint32) error {
	switch {
	case status&acp.StatusFabricTimeout != 0:
		return &RTIOError{Kind: ErrFabricTimeout, Channel: channel, Input: true}
	case status&rtio.IStatusOverflow != 0:
		return &RTIOError{Kind: ErrOverflow, Channel: channel, Input: true}
	case status&rtio.IStatusDestinationUnreachable != 0:
		return &RTIOError{
			Kind:    ErrDestinationUnreachable,
			Channel: channel,
			Input:   true,
		}
	default:
		return nil
	}
}

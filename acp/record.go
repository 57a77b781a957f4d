// Package acp implements the bridge between processor memory and the
// real-time I/O fabric. The bridge fetches fixed-size request records with
// burst reads, issues one fabric command per record, and writes a reply
// record back with a burst write. In batch mode it runs several rounds per
// trigger and writes a single reply at the end.
package acp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record geometry.
const (
	WordSize     = 8
	RequestWords = 10
	ReplyWords   = 3
	MaxDataWords = 8

	// RecordStride is the byte distance between the request records of two
	// consecutive batch rounds.
	RecordStride = RequestWords * WordSize

	// RequestBurstLen and ReplyBurstLen are AXI burst lengths, beats minus
	// one.
	RequestBurstLen = RequestWords - 1
	ReplyBurstLen   = ReplyWords - 1

	// ReplyOffset is where the host places the reply record relative to the
	// request record of a transaction.
	ReplyOffset = 96
)

// Command codes of the request record.
const (
	CmdOutput uint8 = 0
	CmdInput  uint8 = 1
)

// Flags of the reply status word. The low 16 bits carry the fabric status.
const (
	StatusReplyValid     uint32 = 1 << 16
	StatusInvalidCommand uint32 = 1 << 17
	StatusFabricTimeout  uint32 = 1 << 18

	fabricStatusMask uint32 = 0xFFFF
)

// ErrShortRecord is returned when decoding fewer bytes than a record holds.
var ErrShortRecord = errors.New("record too short")

// A RequestRecord is one command as the host lays it out in memory.
//
//	word 0: command [0:8] | data width [8:16] | target [32:64]
//	word 1: timestamp
//	word 2..9: data
type RequestRecord struct {
	Command   uint8
	DataWidth uint8
	Target    uint32
	Timestamp int64
	Data      [MaxDataWords]uint64
}

// NumWords returns the index of the last significant word plus one.
func (r RequestRecord) NumWords() int {
	return 2 + int(clampWidth(r.DataWidth))
}

// Words encodes the record.
func (r RequestRecord) Words() [RequestWords]uint64 {
	var w [RequestWords]uint64

	w[0] = uint64(r.Command) |
		uint64(r.DataWidth)<<8 |
		uint64(r.Target)<<32
	w[1] = uint64(r.Timestamp)

	copy(w[2:], r.Data[:])

	return w
}

// Bytes encodes the record in little endian.
func (r RequestRecord) Bytes() []byte {
	words := r.Words()
	return wordsToBytes(words[:])
}

// decodeWord applies the word at index to the record. Lanes at or beyond the
// data width are zeroed when word 0 arrives and never written afterwards. It
// returns true when the word is the last significant one.
func (r *RequestRecord) decodeWord(index int, w uint64) bool {
	switch {
	case index == 0:
		r.Command = uint8(w)
		r.DataWidth = clampWidth(uint8(w >> 8))
		r.Target = uint32(w >> 32)
		r.Timestamp = 0
		r.Data = [MaxDataWords]uint64{}
	case index == 1:
		r.Timestamp = int64(w)
	case index-2 < int(r.DataWidth):
		r.Data[index-2] = w
	}

	return index == 1+int(r.DataWidth)
}

func clampWidth(width uint8) uint8 {
	if width > MaxDataWords {
		return MaxDataWords
	}

	return width
}

// DecodeRequest decodes a request record. The data width is clamped to
// MaxDataWords and unused lanes read as zero.
func DecodeRequest(b []byte) (RequestRecord, error) {
	if len(b) < RequestWords*WordSize {
		return RequestRecord{}, fmt.Errorf("%w: request needs %d bytes, got %d",
			ErrShortRecord, RequestWords*WordSize, len(b))
	}

	r := RequestRecord{}
	for i := 0; i < RequestWords; i++ {
		r.decodeWord(i, binary.LittleEndian.Uint64(b[i*WordSize:]))
	}

	return r, nil
}

// A ReplyRecord is what the bridge writes back after a command or a batch.
//
//	word 0: status [0:32] | input data [32:64]
//	word 1: input timestamp
//	word 2: round counter [0:32] | latched target [32:64]
type ReplyRecord struct {
	Status        uint32
	Data          uint32
	Timestamp     int64
	RoundCounter  uint32
	LatchedTarget uint32
}

// Valid tells whether the bridge has written the reply.
func (r ReplyRecord) Valid() bool {
	return r.Status&StatusReplyValid != 0
}

// FabricStatus returns the status bits reported by the fabric.
func (r ReplyRecord) FabricStatus() uint32 {
	return r.Status & fabricStatusMask
}

// Words encodes the record.
func (r ReplyRecord) Words() [ReplyWords]uint64 {
	return [ReplyWords]uint64{
		uint64(r.Status) | uint64(r.Data)<<32,
		uint64(r.Timestamp),
		uint64(r.RoundCounter) | uint64(r.LatchedTarget)<<32,
	}
}

// Bytes encodes the record in little endian.
func (r ReplyRecord) Bytes() []byte {
	words := r.Words()
	return wordsToBytes(words[:])
}

// DecodeReply decodes a reply record.
func DecodeReply(b []byte) (ReplyRecord, error) {
	if len(b) < ReplyWords*WordSize {
		return ReplyRecord{}, fmt.Errorf("%w: reply needs %d bytes, got %d",
			ErrShortRecord, ReplyWords*WordSize, len(b))
	}

	w0 := binary.LittleEndian.Uint64(b[0:])
	w1 := binary.LittleEndian.Uint64(b[8:])
	w2 := binary.LittleEndian.Uint64(b[16:])

	return ReplyRecord{
		Status:        uint32(w0),
		Data:          uint32(w0 >> 32),
		Timestamp:     int64(w1),
		RoundCounter:  uint32(w2),
		LatchedTarget: uint32(w2 >> 32),
	}, nil
}

func wordsToBytes(words []uint64) []byte {
	b := make([]byte, len(words)*WordSize)
	for i, w := range words {
		binary.LittleEndian.PutUint64(b[i*WordSize:], w)
	}

	return b
}

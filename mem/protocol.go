// Package mem defines the burst protocol spoken between the bridge and the
// processor memory, together with the backing storage.
//
// Every beat carries one 64-bit word. Burst lengths follow the AXI
// convention of beats minus one, so a BurstLen of 9 moves 10 words.
package mem

import (
	"reflect"

	"github.com/sarchlab/acpbridge/sim"
)

// WordSize is the number of bytes carried by one beat.
const WordSize = 8

var (
	addrPhaseBytes = 12
	beatBytes      = WordSize + 4
	respBytes      = 4
)

// NumBeats converts an AXI burst length into a beat count.
func NumBeats(burstLen int) int {
	return burstLen + 1
}

// A ReadReq opens a read burst.
type ReadReq struct {
	sim.MsgMeta

	Address  uint64
	BurstLen int
}

// Meta returns the message meta.
func (r *ReadReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the request with a new ID.
func (r *ReadReq) Clone() sim.Msg {
	c := *r
	c.ID = sim.GetIDGenerator().Generate()

	return &c
}

// ReadReqBuilder can build read requests.
type ReadReqBuilder struct {
	src, dst sim.RemotePort
	address  uint64
	burstLen int
}

// WithSrc sets the source of the request to build.
func (b ReadReqBuilder) WithSrc(src sim.RemotePort) ReadReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b ReadReqBuilder) WithDst(dst sim.RemotePort) ReadReqBuilder {
	b.dst = dst
	return b
}

// WithAddress sets the base address of the burst.
func (b ReadReqBuilder) WithAddress(address uint64) ReadReqBuilder {
	b.address = address
	return b
}

// WithBurstLen sets the AXI burst length (beats minus one).
func (b ReadReqBuilder) WithBurstLen(burstLen int) ReadReqBuilder {
	b.burstLen = burstLen
	return b
}

// Build creates a new ReadReq
func (b ReadReqBuilder) Build() *ReadReq {
	r := &ReadReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficClass = reflect.TypeOf(ReadReq{}).String()
	r.TrafficBytes = addrPhaseBytes
	r.Address = b.address
	r.BurstLen = b.burstLen

	return r
}

// A DataReadyRsp carries one beat of a read burst.
type DataReadyRsp struct {
	sim.MsgMeta

	RespondTo string
	Index     int
	Data      uint64
	Last      bool
}

// Meta returns the meta data attached to each message.
func (r *DataReadyRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the beat with a new ID.
func (r *DataReadyRsp) Clone() sim.Msg {
	c := *r
	c.ID = sim.GetIDGenerator().Generate()

	return &c
}

// GetRspTo returns the ID of the read request.
func (r *DataReadyRsp) GetRspTo() string {
	return r.RespondTo
}

// DataReadyRspBuilder can build read beats.
type DataReadyRspBuilder struct {
	src, dst sim.RemotePort
	rspTo    string
	index    int
	data     uint64
	last     bool
}

// WithSrc sets the source of the beat to build.
func (b DataReadyRspBuilder) WithSrc(src sim.RemotePort) DataReadyRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the beat to build.
func (b DataReadyRspBuilder) WithDst(dst sim.RemotePort) DataReadyRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the request that the beat answers.
func (b DataReadyRspBuilder) WithRspTo(id string) DataReadyRspBuilder {
	b.rspTo = id
	return b
}

// WithIndex sets the position of the beat in the burst.
func (b DataReadyRspBuilder) WithIndex(index int) DataReadyRspBuilder {
	b.index = index
	return b
}

// WithData sets the word carried by the beat.
func (b DataReadyRspBuilder) WithData(data uint64) DataReadyRspBuilder {
	b.data = data
	return b
}

// AsLast marks the beat as the final one of the burst.
func (b DataReadyRspBuilder) AsLast() DataReadyRspBuilder {
	b.last = true
	return b
}

// Build creates a new DataReadyRsp
func (b DataReadyRspBuilder) Build() *DataReadyRsp {
	r := &DataReadyRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficClass = reflect.TypeOf(DataReadyRsp{}).String()
	r.TrafficBytes = beatBytes
	r.RespondTo = b.rspTo
	r.Index = b.index
	r.Data = b.data
	r.Last = b.last

	return r
}

// A WriteReq opens a write burst. The data follows as WriteBeats.
type WriteReq struct {
	sim.MsgMeta

	Address  uint64
	BurstLen int
}

// Meta returns the meta data attached to a request.
func (r *WriteReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the request with a new ID.
func (r *WriteReq) Clone() sim.Msg {
	c := *r
	c.ID = sim.GetIDGenerator().Generate()

	return &c
}

// WriteReqBuilder can build write requests.
type WriteReqBuilder struct {
	src, dst sim.RemotePort
	address  uint64
	burstLen int
}

// WithSrc sets the source of the request to build.
func (b WriteReqBuilder) WithSrc(src sim.RemotePort) WriteReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b WriteReqBuilder) WithDst(dst sim.RemotePort) WriteReqBuilder {
	b.dst = dst
	return b
}

// WithAddress sets the base address of the burst.
func (b WriteReqBuilder) WithAddress(address uint64) WriteReqBuilder {
	b.address = address
	return b
}

// WithBurstLen sets the AXI burst length (beats minus one).
func (b WriteReqBuilder) WithBurstLen(burstLen int) WriteReqBuilder {
	b.burstLen = burstLen
	return b
}

// Build creates a new WriteReq
func (b WriteReqBuilder) Build() *WriteReq {
	r := &WriteReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficClass = reflect.TypeOf(WriteReq{}).String()
	r.TrafficBytes = addrPhaseBytes
	r.Address = b.address
	r.BurstLen = b.burstLen

	return r
}

// A WriteBeat carries one word of a write burst.
type WriteBeat struct {
	sim.MsgMeta

	TransID string
	Index   int
	Data    uint64
	Last    bool
}

// Meta returns the meta data attached to the beat.
func (r *WriteBeat) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the beat with a new ID.
func (r *WriteBeat) Clone() sim.Msg {
	c := *r
	c.ID = sim.GetIDGenerator().Generate()

	return &c
}

// WriteBeatBuilder can build write beats.
type WriteBeatBuilder struct {
	src, dst sim.RemotePort
	transID  string
	index    int
	data     uint64
	last     bool
}

// WithSrc sets the source of the beat to build.
func (b WriteBeatBuilder) WithSrc(src sim.RemotePort) WriteBeatBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the beat to build.
func (b WriteBeatBuilder) WithDst(dst sim.RemotePort) WriteBeatBuilder {
	b.dst = dst
	return b
}

// WithTransID sets the ID of the WriteReq that the beat belongs to.
func (b WriteBeatBuilder) WithTransID(id string) WriteBeatBuilder {
	b.transID = id
	return b
}

// WithIndex sets the position of the beat in the burst.
func (b WriteBeatBuilder) WithIndex(index int) WriteBeatBuilder {
	b.index = index
	return b
}

// WithData sets the word carried by the beat.
func (b WriteBeatBuilder) WithData(data uint64) WriteBeatBuilder {
	b.data = data
	return b
}

// AsLast marks the beat as the final one of the burst.
func (b WriteBeatBuilder) AsLast() WriteBeatBuilder {
	b.last = true
	return b
}

// Build creates a new WriteBeat
func (b WriteBeatBuilder) Build() *WriteBeat {
	r := &WriteBeat{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficClass = reflect.TypeOf(WriteBeat{}).String()
	r.TrafficBytes = beatBytes
	r.TransID = b.transID
	r.Index = b.index
	r.Data = b.data
	r.Last = b.last

	return r
}

// A WriteDoneRsp acknowledges a completed write burst.
type WriteDoneRsp struct {
	sim.MsgMeta

	RespondTo string
}

// Meta returns the meta data attached to the response.
func (r *WriteDoneRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the response with a new ID.
func (r *WriteDoneRsp) Clone() sim.Msg {
	c := *r
	c.ID = sim.GetIDGenerator().Generate()

	return &c
}

// GetRspTo returns the ID of the write request.
func (r *WriteDoneRsp) GetRspTo() string {
	return r.RespondTo
}

// WriteDoneRspBuilder can build write responses.
type WriteDoneRspBuilder struct {
	src, dst sim.RemotePort
	rspTo    string
}

// WithSrc sets the source of the response to build.
func (b WriteDoneRspBuilder) WithSrc(src sim.RemotePort) WriteDoneRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the response to build.
func (b WriteDoneRspBuilder) WithDst(dst sim.RemotePort) WriteDoneRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets the ID of the WriteReq being acknowledged.
func (b WriteDoneRspBuilder) WithRspTo(id string) WriteDoneRspBuilder {
	b.rspTo = id
	return b
}

// Build creates a new WriteDoneRsp
func (b WriteDoneRspBuilder) Build() *WriteDoneRsp {
	r := &WriteDoneRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficClass = reflect.TypeOf(WriteDoneRsp{}).String()
	r.TrafficBytes = respBytes
	r.RespondTo = b.rspTo

	return r
}

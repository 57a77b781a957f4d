package idealmemcontroller

import (
	"log"
	"reflect"

	"github.com/sarchlab/acpbridge/mem"
	"github.com/sarchlab/acpbridge/tracing"
)

type memMiddleware struct {
	*Comp
}

func (m *memMiddleware) Tick() bool {
	if m.stalled {
		return false
	}

	madeProgress := false

	madeProgress = m.streamReadBeat() || madeProgress
	madeProgress = m.takeNewMsg() || madeProgress

	return madeProgress
}

func (m *memMiddleware) takeNewMsg() bool {
	msg := m.topPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	switch msg := msg.(type) {
	case *mem.ReadReq:
		m.acceptReadReq(msg)
	case *mem.WriteReq:
		m.acceptWriteReq(msg)
	case *mem.WriteBeat:
		m.acceptWriteBeat(msg)
	default:
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(msg))
	}

	return true
}

func (m *memMiddleware) acceptReadReq(req *mem.ReadReq) {
	tracing.TraceReqReceive(req, m.Comp)

	trans := &readTransaction{req: req}
	m.reads = append(m.reads, trans)

	now := m.CurrentTime()
	evt := newReadRespondEvent(m.Freq.NCyclesLater(m.Latency, now), m.Comp, trans)
	m.Engine.Schedule(evt)
}

func (m *memMiddleware) acceptWriteReq(req *mem.WriteReq) {
	if _, found := m.inflight[req.ID]; found {
		log.Panicf("write burst %s opened twice", req.ID)
	}

	tracing.TraceReqReceive(req, m.Comp)

	m.inflight[req.ID] = &writeTransaction{req: req}
}

func (m *memMiddleware) acceptWriteBeat(beat *mem.WriteBeat) {
	trans, found := m.inflight[beat.TransID]
	if !found {
		log.Panicf("write beat for unknown burst %s", beat.TransID)
	}

	if beat.Index != trans.nextIndex {
		log.Panicf("write beat %d arrives out of order, expecting %d",
			beat.Index, trans.nextIndex)
	}

	addr := trans.req.Address + uint64(beat.Index)*mem.WordSize
	if err := m.Storage.WriteWord(addr, beat.Data); err != nil {
		log.Panic(err)
	}

	trans.nextIndex++

	if !beat.Last {
		return
	}

	if trans.nextIndex != mem.NumBeats(trans.req.BurstLen) {
		log.Panicf("write burst %s ends after %d beats, expecting %d",
			trans.req.ID, trans.nextIndex, mem.NumBeats(trans.req.BurstLen))
	}

	delete(m.inflight, beat.TransID)
	tracing.TraceReqComplete(trans.req, m.Comp)

	now := m.CurrentTime()
	evt := newWriteRespondEvent(
		m.Freq.NCyclesLater(m.Latency, now), m.Comp, trans.req)
	m.Engine.Schedule(evt)
}

func (m *memMiddleware) streamReadBeat() bool {
	if len(m.reads) == 0 {
		return false
	}

	trans := m.reads[0]
	if !trans.ready {
		return false
	}

	req := trans.req
	addr := req.Address + uint64(trans.nextIndex)*mem.WordSize

	data, err := m.Storage.ReadWord(addr)
	if err != nil {
		log.Panic(err)
	}

	builder := mem.DataReadyRspBuilder{}.
		WithSrc(m.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithIndex(trans.nextIndex).
		WithData(data)

	last := trans.nextIndex == req.BurstLen
	if last {
		builder = builder.AsLast()
	}

	if sendErr := m.topPort.Send(builder.Build()); sendErr != nil {
		return false
	}

	trans.nextIndex++

	if last {
		m.reads = m.reads[1:]
		tracing.TraceReqComplete(req, m.Comp)
	}

	return true
}

// Package idealmemcontroller provides a memory slave that answers burst
// requests after a fixed latency.
package idealmemcontroller

import (
	"log"
	"reflect"

	"github.com/sarchlab/acpbridge/mem"
	"github.com/sarchlab/acpbridge/sim"
)

type readRespondEvent struct {
	*sim.EventBase
	trans *readTransaction
}

func newReadRespondEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	trans *readTransaction,
) *readRespondEvent {
	return &readRespondEvent{sim.NewEventBase(time, handler), trans}
}

type writeRespondEvent struct {
	*sim.EventBase
	req *mem.WriteReq
}

func newWriteRespondEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	req *mem.WriteReq,
) *writeRespondEvent {
	return &writeRespondEvent{sim.NewEventBase(time, handler), req}
}

type readTransaction struct {
	req       *mem.ReadReq
	nextIndex int
	ready     bool
}

type writeTransaction struct {
	req       *mem.WriteReq
	nextIndex int
}

// A Comp is an ideal memory controller. It answers every burst after a fixed
// number of cycles and streams one read beat per cycle. Read bursts are
// answered in the order they arrive.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	topPort sim.Port
	Storage *mem.Storage
	Latency int

	stalled  bool
	reads    []*readTransaction
	inflight map[string]*writeTransaction
}

// Handle defines how the Comp handles event
func (c *Comp) Handle(e sim.Event) error {
	c.Lock()
	defer c.Unlock()

	switch e := e.(type) {
	case *readRespondEvent:
		return c.handleReadRespondEvent(e)
	case *writeRespondEvent:
		return c.handleWriteRespondEvent(e)
	case sim.TickEvent:
		return c.TickingComponent.Handle(e)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

// Tick runs the middlewares of the controller.
func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

// Stall makes the controller stop accepting messages and stop streaming
// read beats, until Resume is called.
func (c *Comp) Stall() {
	c.Lock()
	defer c.Unlock()

	c.stalled = true
}

// Resume undoes Stall.
func (c *Comp) Resume() {
	c.Lock()
	c.stalled = false
	c.Unlock()

	c.TickLater()
}

func (c *Comp) handleReadRespondEvent(e *readRespondEvent) error {
	e.trans.ready = true
	c.TickLater()

	return nil
}

func (c *Comp) handleWriteRespondEvent(e *writeRespondEvent) error {
	now := e.Time()
	req := e.req

	rsp := mem.WriteDoneRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	if err := c.topPort.Send(rsp); err != nil {
		retry := newWriteRespondEvent(c.Freq.NextTick(now), c, req)
		c.Engine.Schedule(retry)

		return nil
	}

	c.TickLater()

	return nil
}

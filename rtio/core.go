package rtio

import (
	"log"
	"sync"

	"github.com/sarchlab/acpbridge/sim"
)

// HookPosSubmit marks a request being latched by the core.
var HookPosSubmit = &sim.HookPos{Name: "RTIO Submit"}

type channel struct {
	outputs   []OutputEvent
	inputs    []InputEvent
	fifoDepth int
	overflow  bool
}

type wakeupEvent struct {
	*sim.EventBase
}

// Core is a behavioural real-time I/O core. Its timestamp counter counts the
// cycles of its clock. Outputs are logged per channel and hold the wait flag
// for a fixed number of cycles. Inputs are served from per-channel FIFOs that
// tests and scripts fill with InjectInput.
type Core struct {
	*sim.TickingComponent

	writeLatency int
	channels     map[uint32]*channel
	listeners    []StatusListener

	stalled bool

	statusLock sync.RWMutex
	oStatus    uint32
	iStatus    uint32
	iData      uint32
	iTimestamp int64

	outputDoneCycle int64
	pendingInput    *Request
}

// Handle handles the wake-up events that the core schedules for itself.
func (c *Core) Handle(e sim.Event) error {
	switch e.(type) {
	case *wakeupEvent:
		c.TickNow()
	default:
		return c.TickingComponent.Handle(e)
	}

	return nil
}

// AddStatusListener registers a listener that is notified when the status
// registers change.
func (c *Core) AddStatusListener(l StatusListener) {
	c.listeners = append(c.listeners, l)
}

// Counter returns the number of cycles since time 0.
func (c *Core) Counter() int64 {
	return int64(c.Freq.Cycle(c.CurrentTime()))
}

// OStatus returns the output status register.
func (c *Core) OStatus() uint32 {
	c.statusLock.RLock()
	defer c.statusLock.RUnlock()

	return c.oStatus
}

// IStatus returns the input status register.
func (c *Core) IStatus() uint32 {
	c.statusLock.RLock()
	defer c.statusLock.RUnlock()

	return c.iStatus
}

// IData returns the data of the last input.
func (c *Core) IData() uint32 {
	c.statusLock.RLock()
	defer c.statusLock.RUnlock()

	return c.iData
}

// ITimestamp returns the timestamp of the last input.
func (c *Core) ITimestamp() int64 {
	c.statusLock.RLock()
	defer c.statusLock.RUnlock()

	return c.iTimestamp
}

// Submit latches a request.
func (c *Core) Submit(req Request) {
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosSubmit,
		Item:   req,
	})

	switch req.Command {
	case CmdWrite:
		c.submitOutput(req)
	case CmdRead:
		c.submitInput(req)
	case CmdNop:
	default:
		log.Panicf("unknown rtio command %d", req.Command)
	}
}

func (c *Core) submitOutput(req Request) {
	ch, found := c.channels[req.ChanSel&ChanSelMask]
	if !found {
		c.updateStatus(func() { c.oStatus = OStatusDestinationUnreachable })

		return
	}

	now := c.Counter()
	if req.Timestamp < now {
		c.updateStatus(func() { c.oStatus = OStatusUnderflow })

		return
	}

	ch.outputs = append(ch.outputs, OutputEvent{
		ChanSel:   req.ChanSel & ChanSelMask,
		Address:   req.Address,
		Timestamp: req.Timestamp,
		Data:      req.Data,
	})

	c.outputDoneCycle = now + int64(c.writeLatency)
	c.wakeAt(c.outputDoneCycle)
	c.updateStatus(func() { c.oStatus = OStatusWait })
}

func (c *Core) submitInput(req Request) {
	if _, found := c.channels[req.ChanSel&ChanSelMask]; !found {
		c.updateStatus(func() { c.iStatus = IStatusDestinationUnreachable })

		return
	}

	r := req
	c.pendingInput = &r
	c.updateStatus(func() { c.iStatus = IStatusWaitStatus })
	c.TickLater()
}

// Tick updates the status registers.
func (c *Core) Tick() bool {
	if c.stalled {
		return false
	}

	madeProgress := false

	madeProgress = c.finishOutput() || madeProgress
	madeProgress = c.serveInput() || madeProgress

	return madeProgress
}

func (c *Core) finishOutput() bool {
	if c.oStatus&OStatusWait == 0 {
		return false
	}

	if c.Counter() < c.outputDoneCycle {
		return false
	}

	c.updateStatus(func() { c.oStatus &^= OStatusWait })

	return true
}

func (c *Core) serveInput() bool {
	req := c.pendingInput
	if req == nil {
		return false
	}

	ch := c.channels[req.ChanSel&ChanSelMask]
	now := c.Counter()

	if len(ch.inputs) > 0 && ch.inputs[0].Timestamp <= now {
		evt := ch.inputs[0]
		ch.inputs = ch.inputs[1:]

		overflow := ch.overflow
		ch.overflow = false
		c.pendingInput = nil

		c.updateStatus(func() {
			c.iStatus = 0
			if overflow {
				c.iStatus |= IStatusOverflow
			}

			c.iData = evt.Data
			c.iTimestamp = evt.Timestamp
		})

		return true
	}

	if req.Timestamp >= 0 && now >= req.Timestamp {
		c.pendingInput = nil
		c.updateStatus(func() { c.iStatus = IStatusWaitEvent })

		return true
	}

	if len(ch.inputs) > 0 {
		c.wakeAt(ch.inputs[0].Timestamp)
	}

	if req.Timestamp >= 0 {
		c.wakeAt(req.Timestamp)
	}

	return false
}

func (c *Core) wakeAt(cycle int64) {
	if cycle <= c.Counter() {
		c.TickLater()
		return
	}

	t := sim.VTimeInSec(float64(cycle) / float64(c.Freq))
	c.Engine.Schedule(&wakeupEvent{sim.NewEventBase(t, c)})
}

// updateStatus changes the status registers under the status lock and tells
// the listeners.
func (c *Core) updateStatus(f func()) {
	c.statusLock.Lock()
	f()
	c.statusLock.Unlock()

	c.notify()
}

func (c *Core) notify() {
	for _, l := range c.listeners {
		l.NotifyFabricStatus()
	}
}

// InjectInput makes a channel capture an input event. If the channel FIFO is
// full the event is dropped and the next read reports an overflow.
func (c *Core) InjectInput(chanSel uint32, evt InputEvent) {
	ch, found := c.channels[chanSel&ChanSelMask]
	if !found {
		log.Panicf("channel %d does not exist", chanSel)
	}

	if len(ch.inputs) >= ch.fifoDepth {
		ch.overflow = true
		return
	}

	ch.inputs = append(ch.inputs, evt)

	if c.pendingInput != nil {
		c.TickLater()
	}
}

// Outputs returns the outputs that a channel has accepted so far.
func (c *Core) Outputs(chanSel uint32) []OutputEvent {
	ch, found := c.channels[chanSel&ChanSelMask]
	if !found {
		return nil
	}

	return append([]OutputEvent(nil), ch.outputs...)
}

// NumChannels returns the number of channels.
func (c *Core) NumChannels() int {
	return len(c.channels)
}

// Stall freezes the status registers. An output issued while stalled keeps
// the wait flag forever, and so does an input.
func (c *Core) Stall() {
	c.stalled = true
}

// Resume undoes Stall.
func (c *Core) Resume() {
	c.stalled = false
	c.TickLater()
}

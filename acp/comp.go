package acp

import (
	"github.com/sarchlab/acpbridge/sim"
)

// Comp is the bridge. It owns a memory port and drives a fabric interface.
type Comp struct {
	*sim.TickingComponent
	sim.MiddlewareHolder

	memPort    sim.Port
	regs       *Registers
	transport  *Transport
	dispatcher *Dispatcher
}

// Tick runs the transport and then the dispatcher.
func (c *Comp) Tick() bool {
	return c.MiddlewareHolder.Tick()
}

// NotifyFabricStatus wakes the bridge up when the fabric status changes.
func (c *Comp) NotifyFabricStatus() {
	c.TickLater()
}

// Registers returns the host register file.
func (c *Comp) Registers() *Registers {
	return c.regs
}

// Transport returns the burst transport engine.
func (c *Comp) Transport() *Transport {
	return c.transport
}

// Dispatcher returns the command dispatcher.
func (c *Comp) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Buffers returns the internal buffers of the bridge.
func (c *Comp) Buffers() []sim.Buffer {
	return []sim.Buffer{c.transport.events}
}

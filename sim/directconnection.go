package sim

import "log"

// DirectConnection connects ports without latency. Messages sent in one
// cycle are delivered in the same cycle, after all the primary events.
type DirectConnection struct {
	*TickingComponent

	nextPortID int
	ports      []Port
	portByName map[RemotePort]Port
}

// NewDirectConnection creates a new DirectConnection object
func NewDirectConnection(
	name string,
	engine Engine,
	freq Freq,
) *DirectConnection {
	c := new(DirectConnection)
	c.TickingComponent = NewSecondaryTickingComponent(name, engine, freq, c)
	c.portByName = make(map[RemotePort]Port)

	return c
}

// PlugIn connects the port to this DirectConnection.
func (c *DirectConnection) PlugIn(port Port) {
	c.Lock()
	defer c.Unlock()

	if _, found := c.portByName[port.AsRemote()]; found {
		log.Panicf("port %s is already plugged in", port.Name())
	}

	c.ports = append(c.ports, port)
	c.portByName[port.AsRemote()] = port

	port.SetConnection(c)
}

// Unplug disconnects the port from this DirectConnection.
func (c *DirectConnection) Unplug(port Port) {
	c.Lock()
	defer c.Unlock()

	delete(c.portByName, port.AsRemote())

	for i, p := range c.ports {
		if p == port {
			c.ports = append(c.ports[:i], c.ports[i+1:]...)
			break
		}
	}

	if len(c.ports) > 0 {
		c.nextPortID %= len(c.ports)
	} else {
		c.nextPortID = 0
	}
}

// NotifyAvailable is called by a port to notify that the connection can
// deliver to the port again.
func (c *DirectConnection) NotifyAvailable(_ Port) {
	c.TickNow()
}

// NotifySend is called by a port when it has a message to forward.
func (c *DirectConnection) NotifySend() {
	c.TickNow()
}

// Tick forwards the pending messages of every port, starting from a
// different port each cycle.
func (c *DirectConnection) Tick() bool {
	c.Lock()
	defer c.Unlock()

	if len(c.ports) == 0 {
		return false
	}

	madeProgress := false

	for i := 0; i < len(c.ports); i++ {
		portID := (i + c.nextPortID) % len(c.ports)
		madeProgress = c.forwardMany(c.ports[portID]) || madeProgress
	}

	c.nextPortID = (c.nextPortID + 1) % len(c.ports)

	return madeProgress
}

func (c *DirectConnection) forwardMany(port Port) bool {
	madeProgress := false

	for {
		head := port.PeekOutgoing()
		if head == nil {
			break
		}

		dst, found := c.portByName[head.Meta().Dst]
		if !found {
			log.Panicf("port %s is not connected to %s",
				head.Meta().Dst, c.Name())
		}

		err := dst.Deliver(head)
		if err != nil {
			break
		}

		c.InvokeHook(HookCtx{
			Domain: c,
			Pos:    HookPosConnDeliver,
			Item:   head,
		})

		madeProgress = true

		port.RetrieveOutgoing()
	}

	return madeProgress
}

package acp

import (
	"log"

	"github.com/sarchlab/acpbridge/rtio"
	"github.com/sarchlab/acpbridge/sim"
)

type statusNotifier interface {
	AddStatusListener(l rtio.StatusListener)
}

// Builder can build bridges.
type Builder struct {
	engine        sim.Engine
	freq          sim.Freq
	fabric        rtio.Interface
	memPort       sim.RemotePort
	portBufSize   int
	eventBufSize  int
	stopOnError   bool
	fabricTimeout int
	logger        *log.Logger
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:         125 * sim.MHz,
		portBufSize:  4,
		eventBufSize: 4,
	}
}

// WithEngine sets the engine to use.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the bridge.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithFabric sets the fabric interface to drive. If the fabric can report
// status changes, the bridge subscribes to them.
func (b Builder) WithFabric(fabric rtio.Interface) Builder {
	b.fabric = fabric
	return b
}

// WithMemoryPort sets the port of the memory that holds the records.
func (b Builder) WithMemoryPort(port sim.RemotePort) Builder {
	b.memPort = port
	return b
}

// WithPortBufSize sets the buffer sizes of the memory port.
func (b Builder) WithPortBufSize(n int) Builder {
	b.portBufSize = n
	return b
}

// WithEventBufSize sets the number of transport events that can wait for the
// dispatcher. It must be at least 2.
func (b Builder) WithEventBufSize(n int) Builder {
	b.eventBufSize = n
	return b
}

// WithStopBatchOnError ends a batch at the first round that reports fabric
// error bits.
func (b Builder) WithStopBatchOnError() Builder {
	b.stopOnError = true
	return b
}

// WithFabricTimeout completes a round with StatusFabricTimeout after the
// fabric stays busy for the given number of cycles. Zero waits forever.
func (b Builder) WithFabricTimeout(cycles int) Builder {
	b.fabricTimeout = cycles
	return b
}

// WithLogger sets the logger that reports dropped triggers and fabric
// timeouts.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a new bridge.
func (b Builder) Build(name string) *Comp {
	b.parametersMustBeValid()

	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.memPort = sim.NewPort(c, b.portBufSize, b.portBufSize, name+".Mem")
	c.AddPort("Mem", c.memPort)

	c.regs = newRegisters(b.fabric, c.TickLater)

	events := sim.NewBuffer(name+".Events", b.eventBufSize)

	c.transport = &Transport{
		comp:   c,
		port:   c.memPort,
		remote: b.memPort,
		events: events,
	}

	c.dispatcher = &Dispatcher{
		comp:          c,
		transport:     c.transport,
		fabric:        b.fabric,
		regs:          c.regs,
		events:        events,
		logger:        b.logger,
		stopOnError:   b.stopOnError,
		fabricTimeout: b.fabricTimeout,
	}

	c.dispatcher.fabricLocation = name + ".Fabric"
	if named, ok := b.fabric.(sim.Named); ok {
		c.dispatcher.fabricLocation = named.Name()
	}

	c.AddMiddleware(c.transport)
	c.AddMiddleware(c.dispatcher)

	if notifier, ok := b.fabric.(statusNotifier); ok {
		notifier.AddStatusListener(c)
		c.dispatcher.fabricNotifies = true
	}

	return c
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		log.Panic("engine is not set")
	}

	if b.fabric == nil {
		log.Panic("fabric is not set")
	}

	if b.memPort == "" {
		log.Panic("memory port is not set")
	}

	if b.eventBufSize < 2 {
		log.Panicf("event buffer size %d is smaller than 2", b.eventBufSize)
	}
}

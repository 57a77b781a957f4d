// Package platform assembles a host memory, a real-time I/O core, and the
// bridge between them on a single engine.
package platform

import (
	"log"

	"github.com/sarchlab/acpbridge/acp"
	"github.com/sarchlab/acpbridge/mem"
	"github.com/sarchlab/acpbridge/mem/idealmemcontroller"
	"github.com/sarchlab/acpbridge/rtio"
	"github.com/sarchlab/acpbridge/sim"
	"github.com/sarchlab/acpbridge/simulation"
)

// Platform holds the components of a bridged system.
type Platform struct {
	Engine sim.Engine
	Memory *idealmemcontroller.Comp
	Fabric *rtio.Core
	Bridge *acp.Comp
	Conn   *sim.DirectConnection
}

// Components returns the simulated components of the platform.
func (p *Platform) Components() []sim.Component {
	return []sim.Component{p.Memory, p.Fabric, p.Bridge}
}

// Storage returns the host memory.
func (p *Platform) Storage() *mem.Storage {
	return p.Memory.Storage
}

// Registers returns the host-visible registers of the bridge.
func (p *Platform) Registers() *acp.Registers {
	return p.Bridge.Registers()
}

// Builder can build platforms.
type Builder struct {
	engine        sim.Engine
	simulation    *simulation.Simulation
	memLatency    int
	memCapacity   uint64
	numChannels   int
	fabricLatency int
	stopOnError   bool
	fabricTimeout int
	logger        *log.Logger
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		memLatency:    10,
		memCapacity:   16 * mem.MB,
		numChannels:   8,
		fabricLatency: 4,
	}
}

// WithEngine sets the engine to use.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithSimulation makes the platform use the engine of the simulation and
// register its components with it.
func (b Builder) WithSimulation(s *simulation.Simulation) Builder {
	b.simulation = s
	b.engine = s.GetEngine()
	return b
}

// WithMemLatency sets the latency of the memory in memory cycles.
func (b Builder) WithMemLatency(cycles int) Builder {
	b.memLatency = cycles
	return b
}

// WithMemCapacity sets the size of the host memory.
func (b Builder) WithMemCapacity(capacity uint64) Builder {
	b.memCapacity = capacity
	return b
}

// WithNumChannels sets the number of channels of the fabric.
func (b Builder) WithNumChannels(n int) Builder {
	b.numChannels = n
	return b
}

// WithFabricLatency sets the number of cycles an output keeps the fabric
// busy.
func (b Builder) WithFabricLatency(cycles int) Builder {
	b.fabricLatency = cycles
	return b
}

// WithStopBatchOnError makes the bridge end a batch at the first failing
// round.
func (b Builder) WithStopBatchOnError() Builder {
	b.stopOnError = true
	return b
}

// WithFabricTimeout bounds how long the bridge waits for a busy fabric.
func (b Builder) WithFabricTimeout(cycles int) Builder {
	b.fabricTimeout = cycles
	return b
}

// WithLogger sets the logger of the bridge.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a platform. Component names are prefixed with the given
// name.
func (b Builder) Build(name string) *Platform {
	if b.engine == nil {
		log.Panic("engine is not set")
	}

	p := &Platform{Engine: b.engine}

	p.Memory = idealmemcontroller.MakeBuilder().
		WithEngine(b.engine).
		WithLatency(b.memLatency).
		WithNewStorage(b.memCapacity).
		Build(name + ".Mem")

	p.Fabric = rtio.MakeBuilder().
		WithEngine(b.engine).
		WithNumChannels(b.numChannels).
		WithWriteLatency(b.fabricLatency).
		Build(name + ".RTIO")

	p.Bridge = b.buildBridge(name, p)

	p.Conn = sim.NewDirectConnection(name+".Conn", b.engine, 1*sim.GHz)
	p.Conn.PlugIn(p.Bridge.GetPortByName("Mem"))
	p.Conn.PlugIn(p.Memory.GetPortByName("Top"))

	if b.simulation != nil {
		for _, c := range p.Components() {
			b.simulation.RegisterComponent(c)
		}
	}

	return p
}

func (b Builder) buildBridge(name string, p *Platform) *acp.Comp {
	builder := acp.MakeBuilder().
		WithEngine(b.engine).
		WithFabric(p.Fabric).
		WithMemoryPort(p.Memory.GetPortByName("Top").AsRemote()).
		WithFabricTimeout(b.fabricTimeout).
		WithLogger(b.logger)

	if b.stopOnError {
		builder = builder.WithStopBatchOnError()
	}

	return builder.Build(name + ".ACP")
}

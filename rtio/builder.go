package rtio

import "github.com/sarchlab/acpbridge/sim"

// Builder can build behavioural real-time I/O cores.
type Builder struct {
	engine       sim.Engine
	freq         sim.Freq
	numChannels  int
	writeLatency int
	fifoDepth    int
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:         125 * sim.MHz,
		numChannels:  8,
		writeLatency: 4,
		fifoDepth:    64,
	}
}

// WithEngine sets the engine to use.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the timestamp counter.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNumChannels sets the number of channels, numbered from 0.
func (b Builder) WithNumChannels(n int) Builder {
	b.numChannels = n
	return b
}

// WithWriteLatency sets how many cycles an output keeps the wait flag set.
func (b Builder) WithWriteLatency(cycles int) Builder {
	b.writeLatency = cycles
	return b
}

// WithInputFIFODepth sets the number of inputs each channel can buffer.
func (b Builder) WithInputFIFODepth(depth int) Builder {
	b.fifoDepth = depth
	return b
}

// Build creates a new Core.
func (b Builder) Build(name string) *Core {
	c := &Core{
		writeLatency: b.writeLatency,
		channels:     make(map[uint32]*channel),
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	for i := 0; i < b.numChannels; i++ {
		c.channels[uint32(i)] = &channel{fifoDepth: b.fifoDepth}
	}

	return c
}

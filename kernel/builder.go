package kernel

import (
	"log"

	"github.com/sarchlab/acpbridge/acp"
	"github.com/sarchlab/acpbridge/mem"
	"github.com/sarchlab/acpbridge/platform"
	"github.com/sarchlab/acpbridge/sim"
)

// Builder can build kernels.
type Builder struct {
	engine          sim.Engine
	storage         *mem.Storage
	regs            *acp.Registers
	transactionBase uint64
	batchBase       uint64
	batchCapacity   int
	logChannel      uint32
}

// MakeBuilder returns a Builder with the default memory layout.
func MakeBuilder() Builder {
	return Builder{
		transactionBase: 0x1000,
		batchBase:       0x10000,
		batchCapacity:   1024,
	}
}

// WithEngine sets the engine that the kernel runs while it waits for a
// reply.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithStorage sets the memory that the bridge reads the records from.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithRegisters sets the registers of the bridge.
func (b Builder) WithRegisters(regs *acp.Registers) Builder {
	b.regs = regs
	return b
}

// WithPlatform takes the engine, the memory, and the bridge registers from a
// platform.
func (b Builder) WithPlatform(p *platform.Platform) Builder {
	b.engine = p.Engine
	b.storage = p.Storage()
	b.regs = p.Registers()

	return b
}

// WithTransactionBase sets the address of the transaction buffer. The request
// is at the address and the reply follows at acp.ReplyOffset.
func (b Builder) WithTransactionBase(addr uint64) Builder {
	b.transactionBase = addr
	return b
}

// WithBatchBase sets the address of the first batched request.
func (b Builder) WithBatchBase(addr uint64) Builder {
	b.batchBase = addr
	return b
}

// WithBatchCapacity sets the maximum number of outputs in one batch.
func (b Builder) WithBatchCapacity(n int) Builder {
	b.batchCapacity = n
	return b
}

// WithLogChannel sets the channel that WriteLog outputs to.
func (b Builder) WithLogChannel(channel uint32) Builder {
	b.logChannel = channel
	return b
}

// Build creates a new kernel. Init must be called before the first command.
func (b Builder) Build() *Kernel {
	b.parametersMustBeValid()

	return &Kernel{
		engine:          b.engine,
		storage:         b.storage,
		regs:            b.regs,
		transactionBase: b.transactionBase,
		batchBase:       b.batchBase,
		batchCapacity:   b.batchCapacity,
		logChannel:      b.logChannel,
	}
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		log.Panic("engine is not set")
	}

	if b.storage == nil {
		log.Panic("storage is not set")
	}

	if b.regs == nil {
		log.Panic("registers are not set")
	}

	if b.batchCapacity <= 0 {
		log.Panicf("batch capacity %d is not positive", b.batchCapacity)
	}

	txEnd := b.transactionBase + transactionSize
	batchEnd := b.batchBase + uint64(b.batchCapacity)*acp.RecordStride

	if txEnd > b.storage.Capacity() || batchEnd > b.storage.Capacity() {
		log.Panic("transaction or batch buffer is out of the memory")
	}

	if b.transactionBase < batchEnd && b.batchBase < txEnd {
		log.Panic("transaction buffer overlaps with the batch buffer")
	}
}

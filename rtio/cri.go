// Package rtio models the command/reply register interface of a real-time
// I/O core, together with a behavioural core that implements it.
package rtio

import "fmt"

// Command is the operation written into the command register.
type Command uint8

// Commands understood by the fabric.
const (
	CmdNop Command = iota
	CmdWrite
	CmdRead
)

func (c Command) String() string {
	switch c {
	case CmdNop:
		return "nop"
	case CmdWrite:
		return "write"
	case CmdRead:
		return "read"
	default:
		return fmt.Sprintf("Command(%d)", uint8(c))
	}
}

// Output status bits.
const (
	OStatusWait                   uint32 = 1
	OStatusUnderflow              uint32 = 2
	OStatusDestinationUnreachable uint32 = 4
)

// Input status bits.
const (
	IStatusWaitEvent              uint32 = 1
	IStatusOverflow               uint32 = 2
	IStatusWaitStatus             uint32 = 4
	IStatusDestinationUnreachable uint32 = 8
)

// NumDataLanes is the number of 64-bit data lanes of a command.
const NumDataLanes = 8

// ChanSelMask keeps the 24 significant bits of a channel selector.
const ChanSelMask uint32 = 0xFFFFFF

// A Request is what the command, target, timestamp, and data registers hold
// at the moment a command is issued.
type Request struct {
	Command Command
	ChanSel uint32
	Address uint8

	// Timestamp is the output time of a write and the timeout of a read. A
	// negative read timeout waits forever.
	Timestamp int64

	Data [NumDataLanes]uint64
}

// Target packs the channel selector and the fine address the way the host
// writes them, channel << 8 | address.
func (r Request) Target() uint32 {
	return r.ChanSel<<8 | uint32(r.Address)
}

// Interface is the register interface of the fabric. The bridge is the only
// writer of requests. The status and reply getters and Counter can be called
// from any goroutine, since the host reads them through the bridge registers.
// A fabric that also implements AddStatusListener wakes the bridge up on
// status changes. Other fabrics are polled every bridge cycle.
type Interface interface {
	// Submit latches a request into the command registers.
	Submit(req Request)

	OStatus() uint32
	IStatus() uint32
	IData() uint32
	ITimestamp() int64

	// Counter returns the current value of the timestamp counter.
	Counter() int64
}

// A StatusListener is told whenever the status of the fabric changes.
type StatusListener interface {
	NotifyFabricStatus()
}

// OutputEvent is an output that the fabric has accepted.
type OutputEvent struct {
	ChanSel   uint32
	Address   uint8
	Timestamp int64
	Data      [NumDataLanes]uint64
}

// InputEvent is an input that a channel has captured.
type InputEvent struct {
	Timestamp int64
	Data      uint32
}

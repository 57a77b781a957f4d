package acp

// WordReadyEvent is raised once per word received by a read burst.
type WordReadyEvent struct {
	Index int
	Word  uint64
}

// ReadDoneEvent is raised after the last word of a read burst.
type ReadDoneEvent struct{}

// WriteDoneEvent is raised when the memory acknowledges a write burst.
type WriteDoneEvent struct{}

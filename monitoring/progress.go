package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar follows the commands of a scenario. A command is issued when
// the host hands it to the bridge and answered when its reply is back.
type ProgressBar struct {
	mu sync.Mutex

	id        string
	name      string
	startTime time.Time
	total     uint64
	issued    uint64
	answered  uint64
}

// ProgressStatus is what the monitoring page shows for a bar.
type ProgressStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Answered  uint64    `json:"finished"`
	Pending   uint64    `json:"in_progress"`
}

// Issue marks n commands as handed to the bridge.
func (b *ProgressBar) Issue(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.issued += n
}

// Answer marks n issued commands as answered. Answering more commands than
// were issued counts the extra ones as issued too.
func (b *ProgressBar) Answer(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.answered += n
	if b.answered > b.issued {
		b.issued = b.answered
	}
}

// Status returns the counts of the bar.
func (b *ProgressBar) Status() ProgressStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	return ProgressStatus{
		ID:        b.id,
		Name:      b.name,
		StartTime: b.startTime,
		Total:     b.total,
		Answered:  b.answered,
		Pending:   b.issued - b.answered,
	}
}

package tracing

import (
	"sync"

	"github.com/sarchlab/acpbridge/sim"
)

// TotalTimeTracer measures how long a component is busy with a kind of task,
// such as the time a bridge spends running batches. The clock runs while at
// least one matching task is in flight, so overlapping tasks are counted once.
type TotalTimeTracer struct {
	timeTeller sim.TimeTeller
	filter     TaskFilter

	lock       sync.Mutex
	totalTime  sim.VTimeInSec
	busySince  sim.VTimeInSec
	inflight   map[string]struct{}
	endedTasks uint64
}

// NewTotalTimeTracer creates a new TotalTimeTracer
func NewTotalTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *TotalTimeTracer {
	return &TotalTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]struct{}),
	}
}

// TotalTime returns the busy time, including the part of the tasks that are
// still running.
func (t *TotalTimeTracer) TotalTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.inflight) == 0 {
		return t.totalTime
	}

	return t.totalTime + t.timeTeller.CurrentTime() - t.busySince
}

// EndedTasks returns the number of matching tasks that have completed.
func (t *TotalTimeTracer) EndedTasks() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.endedTasks
}

// StartTask starts the clock if the component was idle.
func (t *TotalTimeTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.inflight) == 0 {
		t.busySince = now
	}

	t.inflight[task.ID] = struct{}{}
}

// StepTask does nothing
func (t *TotalTimeTracer) StepTask(_ Task) {}

// EndTask stops the clock when the last matching task ends.
func (t *TotalTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.inflight[task.ID]; !ok {
		return
	}

	delete(t.inflight, task.ID)
	t.endedTasks++

	if len(t.inflight) == 0 {
		t.totalTime += t.timeTeller.CurrentTime() - t.busySince
	}
}

package tracing

import "github.com/sarchlab/acpbridge/sim"

// A TaskStep marks a point in a task, such as a round issuing its command.
type TaskStep struct {
	Time sim.VTimeInSec `json:"time"`
	What string         `json:"what"`
}

// A Task is a span of simulated time that a component spends on one piece of
// work. The bridge reports three kinds. A "batch" task covers one trigger, a
// "round" task covers one record of the batch, and a "fabric" task covers one
// command that waits in the fabric. A round's parent is its batch and a fabric
// command's parent is its round.
type Task struct {
	ID         string         `json:"id"`
	ParentID   string         `json:"parent_id"`
	Kind       string         `json:"kind"`
	What       string         `json:"what"`
	Where      string         `json:"where"`
	StartTime  sim.VTimeInSec `json:"start_time"`
	EndTime    sim.VTimeInSec `json:"end_time"`
	Steps      []TaskStep     `json:"steps"`
	Detail     interface{}    `json:"-"`
	ParentTask *Task          `json:"-"`
}

// TaskFilter selects the tasks that a tracer cares about. It returns true for
// the tasks to keep.
type TaskFilter func(t Task) bool

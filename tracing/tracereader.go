package tracing

import (
	"context"
	"fmt"

	"github.com/sarchlab/acpbridge/datarecording"
	"github.com/sarchlab/acpbridge/sim"
)

// TraceReader reads back the tasks that a DBTracer has recorded.
type TraceReader struct {
	reader datarecording.DataReader
}

// NewTraceReader creates a TraceReader on top of a DataReader.
func NewTraceReader(reader datarecording.DataReader) *TraceReader {
	reader.MapTable(TraceTable, taskTableEntry{})

	return &TraceReader{reader: reader}
}

// ListTasks returns the recorded tasks of a kind in the order they started.
// An empty kind lists every task.
func (r *TraceReader) ListTasks(ctx context.Context, kind string) ([]Task, error) {
	params := datarecording.QueryParams{OrderBy: "StartTime, ID"}
	if kind != "" {
		params.Where = "Kind = ?"
		params.Args = []any{kind}
	}

	results, _, err := r.reader.Query(ctx, TraceTable, params)
	if err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}

	tasks := make([]Task, 0, len(results))
	for _, result := range results {
		entry := result.(*taskTableEntry)
		tasks = append(tasks, Task{
			ID:        entry.ID,
			ParentID:  entry.ParentID,
			Kind:      entry.Kind,
			What:      entry.What,
			Where:     entry.Location,
			StartTime: sim.VTimeInSec(entry.StartTime),
			EndTime:   sim.VTimeInSec(entry.EndTime),
		})
	}

	return tasks, nil
}

// Close closes the underlying reader.
func (r *TraceReader) Close() error {
	return r.reader.Close()
}

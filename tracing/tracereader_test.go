package tracing

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/acpbridge/datarecording"
	"github.com/sarchlab/acpbridge/sim"
)

type manualClock struct {
	now sim.VTimeInSec
}

func (c *manualClock) CurrentTime() sim.VTimeInSec {
	return c.now
}

var _ = Describe("TraceReader", func() {
	var (
		path   string
		clock  *manualClock
		tracer *DBTracer
		rec    datarecording.DataRecorder
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "trace")
		clock = &manualClock{}
		rec = datarecording.New(path)
		tracer = NewDBTracer(clock, rec)
		tracer.EnableTracing()
	})

	It("should read back the recorded tasks", func() {
		tracer.StartTask(Task{ID: "1", Kind: "batch", What: "batch", Where: "ACP"})
		clock.now = 1e-9
		tracer.StartTask(Task{
			ID: "2", ParentID: "1", Kind: "round", What: "request", Where: "ACP",
		})
		clock.now = 5e-9
		tracer.EndTask(Task{ID: "2"})
		tracer.StartTask(Task{
			ID: "3", ParentID: "1", Kind: "round", What: "request", Where: "ACP",
		})
		clock.now = 9e-9
		tracer.EndTask(Task{ID: "3"})
		tracer.EndTask(Task{ID: "1"})

		tracer.Terminate()
		Expect(rec.Close()).To(Succeed())

		reader := NewTraceReader(datarecording.NewReader(path + ".sqlite3"))
		defer reader.Close()

		rounds, err := reader.ListTasks(context.Background(), "round")
		Expect(err).ToNot(HaveOccurred())
		Expect(rounds).To(HaveLen(2))
		Expect(rounds[0].ID).To(Equal("2"))
		Expect(rounds[0].ParentID).To(Equal("1"))
		Expect(rounds[0].Where).To(Equal("ACP"))
		Expect(float64(rounds[0].EndTime - rounds[0].StartTime)).
			To(BeNumerically("~", 4e-9, 1e-15))
		Expect(rounds[1].ID).To(Equal("3"))

		all, err := reader.ListTasks(context.Background(), "")
		Expect(err).ToNot(HaveOccurred())
		Expect(all).To(HaveLen(3))
		Expect(all[0].Kind).To(Equal("batch"))
	})
})

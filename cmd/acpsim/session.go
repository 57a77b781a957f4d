package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/acpbridge/datarecording"
	"github.com/sarchlab/acpbridge/kernel"
	"github.com/sarchlab/acpbridge/platform"
	"github.com/sarchlab/acpbridge/sim"
	"github.com/sarchlab/acpbridge/simulation"
	"github.com/sarchlab/acpbridge/tracing"
)

type sessionConfig struct {
	channels      int
	memLatency    int
	fabricLatency int
	stopOnError   bool
	fabricTimeout int
	trace         string
	logEvents     bool
	monitor       bool
	monitorPort   int
	openBrowser   bool
	uniqueIDs     bool
}

func sessionConfigFromFlags(cmd *cobra.Command) (sessionConfig, error) {
	flags := cmd.Flags()
	c := sessionConfig{}

	var err error
	get := func(name string, dst *int) {
		if err == nil {
			*dst, err = flags.GetInt(name)
		}
	}
	getBool := func(name string, dst *bool) {
		if err == nil {
			*dst, err = flags.GetBool(name)
		}
	}

	get("channels", &c.channels)
	get("mem-latency", &c.memLatency)
	get("fabric-latency", &c.fabricLatency)
	get("fabric-timeout", &c.fabricTimeout)
	get("monitor-port", &c.monitorPort)
	getBool("stop-on-error", &c.stopOnError)
	getBool("log-events", &c.logEvents)
	getBool("monitor", &c.monitor)
	getBool("open-browser", &c.openBrowser)
	getBool("unique-ids", &c.uniqueIDs)

	if err == nil {
		c.trace, err = flags.GetString("trace")
	}

	if err != nil {
		return c, err
	}

	return c, c.validate()
}

func (c sessionConfig) validate() error {
	if c.channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.channels)
	}

	if c.memLatency < 0 || c.fabricLatency < 0 || c.fabricTimeout < 0 {
		return fmt.Errorf("latencies and timeouts must not be negative")
	}

	if c.openBrowser && !c.monitor {
		return fmt.Errorf("--open-browser requires --monitor")
	}

	return nil
}

// A session is one simulated system with the host kernel that drives it.
type session struct {
	config     sessionConfig
	simulation *simulation.Simulation
	platform   *platform.Platform
	kernel     *kernel.Kernel

	roundLatency *tracing.AverageTimeTracer
	fabricWait   *tracing.AverageTimeTracer
	batchTime    *tracing.TotalTimeTracer
}

func newSession(c sessionConfig, logOut io.Writer) *session {
	if c.uniqueIDs {
		sim.UseParallelIDGenerator()
	}

	simBuilder := simulation.MakeBuilder()
	if c.monitor {
		simBuilder = simBuilder.WithMonitorPort(c.monitorPort)
	} else {
		simBuilder = simBuilder.WithoutMonitoring()
	}

	if c.trace != "" {
		simBuilder = simBuilder.WithOutputFileName(c.trace)
	} else {
		simBuilder = simBuilder.WithoutRecording()
	}

	s := &session{
		config:     c,
		simulation: simBuilder.Build(),
	}

	engine := s.simulation.GetEngine()
	logger := log.New(logOut, "", 0)

	platformBuilder := platform.MakeBuilder().
		WithSimulation(s.simulation).
		WithNumChannels(c.channels).
		WithMemLatency(c.memLatency).
		WithFabricLatency(c.fabricLatency).
		WithFabricTimeout(c.fabricTimeout).
		WithLogger(logger)
	if c.stopOnError {
		platformBuilder = platformBuilder.WithStopBatchOnError()
	}

	s.platform = platformBuilder.Build("Host")

	s.kernel = kernel.MakeBuilder().
		WithPlatform(s.platform).
		WithLogChannel(uint32(c.channels - 1)).
		Build()

	s.roundLatency = tracing.NewAverageTimeTracer(engine,
		func(t tracing.Task) bool { return t.Kind == "round" })
	s.fabricWait = tracing.NewAverageTimeTracer(engine,
		func(t tracing.Task) bool { return t.Kind == "fabric" })
	s.batchTime = tracing.NewTotalTimeTracer(engine,
		func(t tracing.Task) bool { return t.Kind == "batch" })
	tracing.CollectTrace(s.platform.Bridge, s.roundLatency)
	tracing.CollectTrace(s.platform.Bridge, s.fabricWait)
	tracing.CollectTrace(s.platform.Bridge, s.batchTime)

	if c.logEvents {
		engine.AcceptHook(sim.NewEventLogger(logger))
		s.platform.Bridge.GetPortByName("Mem").
			AcceptHook(sim.NewPortMsgLogger(logger, engine))
	}

	if tracer := s.simulation.GetVisTracer(); tracer != nil {
		tracer.EnableTracing()
	}

	s.kernel.Init()

	return s
}

// openMonitor opens the monitoring page when asked to.
func (s *session) openMonitor() {
	if !s.config.openBrowser || s.simulation.MonitorURL() == "" {
		return
	}

	if err := browser.OpenURL(s.simulation.MonitorURL()); err != nil {
		fmt.Fprintf(os.Stderr, "cannot open browser: %v\n", err)
	}
}

// waitForMonitor keeps the monitoring page alive until the command is
// interrupted.
func (s *session) waitForMonitor(cmd *cobra.Command) {
	if s.simulation.GetMonitor() == nil {
		return
	}

	fmt.Fprintf(cmd.ErrOrStderr(),
		"Simulation finished, monitoring at %s, press Ctrl+C to exit\n",
		s.simulation.MonitorURL())
	<-cmd.Context().Done()
}

func (s *session) close() error {
	return s.simulation.Terminate()
}

// tracedKinds are the task kinds that the bridge traces.
var tracedKinds = []string{"batch", "round", "fabric"}

// printTraceSummary reads the recorded trace back and counts the tasks of
// every kind. It must run after close, which flushes the trace.
func (s *session) printTraceSummary(ctx context.Context, w io.Writer) error {
	if s.config.trace == "" {
		return nil
	}

	reader := tracing.NewTraceReader(
		datarecording.NewReader(s.config.trace + ".sqlite3"))
	defer reader.Close()

	for _, kind := range tracedKinds {
		tasks, err := reader.ListTasks(ctx, kind)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "traced %s tasks: %d\n", kind, len(tasks))
	}

	return nil
}

// finish ends the simulation and reports what the trace holds.
func (s *session) finish(ctx context.Context, w io.Writer) error {
	if err := s.close(); err != nil {
		return err
	}

	return s.printTraceSummary(ctx, w)
}

type sessionReport struct {
	simTime          sim.VTimeInSec
	rounds           uint64
	avgRoundLatency  sim.VTimeInSec
	avgFabricWait    sim.VTimeInSec
	totalBatchTime   sim.VTimeInSec
	batches          uint64
	roundsPerTrigger float64
}

func (s *session) report() sessionReport {
	triggers := s.kernel.Triggers()

	r := sessionReport{
		simTime:         s.simulation.GetEngine().CurrentTime(),
		rounds:          s.roundLatency.TotalCount(),
		avgRoundLatency: s.roundLatency.AverageTime(),
		avgFabricWait:   s.fabricWait.AverageTime(),
		totalBatchTime:  s.batchTime.TotalTime(),
		batches:         s.batchTime.EndedTasks(),
	}

	if triggers > 0 {
		r.roundsPerTrigger = float64(r.rounds) / float64(triggers)
	}

	return r
}

func (r sessionReport) print(w io.Writer) {
	fmt.Fprintf(w, "simulated time: %.9f s\n", float64(r.simTime))
	fmt.Fprintf(w, "batches: %d\n", r.batches)
	fmt.Fprintf(w, "rounds: %d\n", r.rounds)
	fmt.Fprintf(w, "rounds per trigger: %.2f\n", r.roundsPerTrigger)
	fmt.Fprintf(w, "average round latency: %.9f s\n", float64(r.avgRoundLatency))
	fmt.Fprintf(w, "average fabric wait: %.9f s\n", float64(r.avgFabricWait))
	fmt.Fprintf(w, "bridge busy time: %.9f s\n", float64(r.totalBatchTime))
}

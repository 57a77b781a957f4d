package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/acpbridge/kernel"
	"github.com/sarchlab/acpbridge/monitoring"
	"github.com/sarchlab/acpbridge/rtio"
)

// scenario is the built-in workload: single outputs, one batch, and input
// rounds, in that order.
type scenario struct {
	outputs int
	batch   int
	inputs  int

	// slack is how far ahead of the counter the first output is scheduled.
	slack int64

	// spacing is the distance between two outputs on the timeline.
	spacing int64
}

type scenarioResult struct {
	errors []error
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the built-in scenario.",
		Long: `Issue single outputs, then one batch of outputs, then input ` +
			`rounds, and report the replies and the bridge latency.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := sessionConfigFromFlags(cmd)
			if err != nil {
				return err
			}

			sc, err := scenarioFromFlags(cmd)
			if err != nil {
				return err
			}

			s := newSession(config, cmd.ErrOrStderr())
			s.openMonitor()

			result := sc.run(s, cmd.OutOrStdout())
			s.report().print(cmd.OutOrStdout())

			s.waitForMonitor(cmd)

			return errors.Join(
				s.finish(cmd.Context(), cmd.OutOrStdout()), result.err())
		},
	}

	runCmd.Flags().Int("outputs", 16, "Number of single outputs.")
	runCmd.Flags().Int("batch", 0, "Number of outputs in the batch, 0 for none.")
	runCmd.Flags().Int("inputs", 0, "Number of input rounds.")
	runCmd.Flags().Int64("slack", 10000,
		"Fabric cycles between the counter and the first output.")
	runCmd.Flags().Int64("spacing", 100,
		"Fabric cycles between two outputs.")

	return runCmd
}

func scenarioFromFlags(cmd *cobra.Command) (scenario, error) {
	flags := cmd.Flags()
	sc := scenario{}

	var err error
	for name, dst := range map[string]*int{
		"outputs": &sc.outputs,
		"batch":   &sc.batch,
		"inputs":  &sc.inputs,
	} {
		if *dst, err = flags.GetInt(name); err != nil {
			return sc, err
		}

		if *dst < 0 {
			return sc, fmt.Errorf("--%s must not be negative", name)
		}
	}

	if sc.slack, err = flags.GetInt64("slack"); err != nil {
		return sc, err
	}

	if sc.spacing, err = flags.GetInt64("spacing"); err != nil {
		return sc, err
	}

	return sc, nil
}

func (r *scenarioResult) record(w io.Writer, what string, err error) {
	if err == nil {
		fmt.Fprintf(w, "%s: ok\n", what)
		return
	}

	fmt.Fprintf(w, "%s: %v\n", what, err)
	r.errors = append(r.errors, fmt.Errorf("%s: %w", what, err))
}

// err reports the failures that are not caused by fabric statuses. Fabric
// statuses are results of the scenario rather than failures of the tool.
func (r *scenarioResult) err() error {
	var rtioErr *kernel.RTIOError

	var failures []error
	for _, err := range r.errors {
		if !errors.As(err, &rtioErr) {
			failures = append(failures, err)
		}
	}

	return errors.Join(failures...)
}

func (sc scenario) run(s *session, w io.Writer) *scenarioResult {
	k := s.kernel
	channels := uint32(s.config.channels)
	result := &scenarioResult{}

	var bar *monitoring.ProgressBar
	if m := s.simulation.GetMonitor(); m != nil {
		bar = m.CreateProgressBar("Commands", uint64(sc.outputs+sc.batch+sc.inputs))
		defer m.CompleteProgressBar(bar)
	}

	issue := func() {
		if bar != nil {
			bar.Issue(1)
		}
	}

	finish := func() {
		if bar != nil {
			bar.Answer(1)
		}
	}

	k.AtMu(k.GetCounter() + sc.slack)

	for i := 0; i < sc.outputs; i++ {
		target := (uint32(i) % channels) << 8
		issue()
		err := k.Output(target, int32(i))
		result.record(w, fmt.Sprintf("output %d", i), err)
		k.DelayMu(sc.spacing)
		finish()
	}

	if sc.batch > 0 {
		errs := sc.runBatch(s, w, result, issue)
		result.errors = append(result.errors, errs...)

		for i := 0; i < sc.batch; i++ {
			finish()
		}
	}

	for i := 0; i < sc.inputs; i++ {
		channel := uint32(i) % channels
		ts := k.GetCounter() + sc.spacing
		issue()
		s.platform.Fabric.InjectInput(channel,
			rtio.InputEvent{Timestamp: ts, Data: uint32(i)})

		td, err := k.InputTimestampedData(ts+sc.slack, channel)
		if err == nil {
			fmt.Fprintf(w, "input %d: timestamp %d, data %d\n",
				i, td.Timestamp, td.Data)
		} else {
			result.record(w, fmt.Sprintf("input %d", i), err)
		}
		finish()
	}

	return result
}

func (sc scenario) runBatch(
	s *session,
	w io.Writer,
	result *scenarioResult,
	issue func(),
) []error {
	k := s.kernel
	channels := uint32(s.config.channels)

	if err := k.BatchStart(); err != nil {
		return []error{err}
	}

	k.AtMu(k.GetCounter() + sc.slack)

	var errs []error
	for i := 0; i < sc.batch; i++ {
		target := (uint32(i) % channels) << 8
		issue()
		if err := k.Output(target, int32(i)); err != nil {
			errs = append(errs, err)
		}
		k.DelayMu(sc.spacing)
	}

	err := k.BatchEnd()
	result.record(w, fmt.Sprintf("batch of %d", sc.batch), err)

	return errs
}

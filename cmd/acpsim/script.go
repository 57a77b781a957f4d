package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/acpbridge/kernel/luascript"
)

func newScriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script <file.lua>",
		Short: "Run a Lua experiment script.",
		Long: `Run a Lua script against a fresh platform. The script can call ` +
			`rtio_output, rtio_output_wide, rtio_input_timestamp, ` +
			`rtio_input_data, rtio_input_timestamped_data, rtio_log, now_mu, ` +
			`at_mu, delay_mu, get_counter, batch_start, and batch_end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := sessionConfigFromFlags(cmd)
			if err != nil {
				return err
			}

			s := newSession(config, cmd.ErrOrStderr())
			s.openMonitor()

			runner := luascript.NewRunner(s.kernel)
			defer runner.Close()

			scriptErr := runner.RunFile(cmd.Context(), args[0])
			if scriptErr != nil {
				scriptErr = fmt.Errorf("script %s: %w", args[0], scriptErr)
			}

			s.report().print(cmd.OutOrStdout())
			s.waitForMonitor(cmd)

			return errors.Join(
				scriptErr, s.finish(cmd.Context(), cmd.OutOrStdout()))
		},
	}
}

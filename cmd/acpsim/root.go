package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix is the prefix of the environment variables that provide flag
// defaults. The flag --mem-latency reads ACPSIM_MEM_LATENCY.
const envPrefix = "ACPSIM_"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "acpsim",
		Short: "acpsim simulates a host driving a real-time I/O fabric through the bridge.",
		Long: `acpsim simulates a host that issues real-time I/O commands ` +
			`through the bridge. Flags can also be given as ACPSIM_* ` +
			`environment variables or in a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			return applyEnvDefaults(cmd.Flags())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.Int("channels", 8, "Number of fabric channels.")
	flags.Int("mem-latency", 10, "Memory latency in memory cycles.")
	flags.Int("fabric-latency", 4,
		"Number of fabric cycles an output keeps the fabric busy.")
	flags.Bool("stop-on-error", false,
		"End a batch at the first round that reports an error.")
	flags.Int("fabric-timeout", 0,
		"Bridge cycles to wait for a busy fabric, 0 waiting forever.")
	flags.String("trace", "",
		"Record bridge tasks into the given SQLite file, without suffix.")
	flags.Bool("log-events", false, "Log every event to stderr.")
	flags.Bool("monitor", false, "Serve the monitoring page.")
	flags.Int("monitor-port", 0, "Port of the monitoring page.")
	flags.Bool("open-browser", false, "Open the monitoring page in a browser.")
	flags.Bool("unique-ids", false,
		"Give tasks globally unique IDs instead of sequential ones.")
	flags.String("env-file", "", "File to load ACPSIM_* variables from.")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScriptCmd())

	return rootCmd
}

// loadEnvFile loads the given file, or .env if it exists when no file is
// given. Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}

		return nil
	}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	return nil
}

func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// applyEnvDefaults sets the flags that are not given on the command line from
// the environment.
func applyEnvDefaults(flags *pflag.FlagSet) error {
	var err error

	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || f.Name == "env-file" {
			return
		}

		value, found := os.LookupEnv(envName(f.Name))
		if !found {
			return
		}

		if setErr := flags.Set(f.Name, value); setErr != nil {
			err = fmt.Errorf("%s: %w", envName(f.Name), setErr)
		}
	})

	return err
}

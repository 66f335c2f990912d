// Command swo runs the spider wasp optimizer against the built-in benchmark
// functions from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/spiderwasp/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "swo",
		Short: "Spider wasp optimizer",
		Long: `swo minimizes benchmark functions over a box with the spider wasp
optimizer and reports the best point found, the evaluation counts and,
optionally, the convergence traces.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newFunctionsCmd(),
	)
	return rootCmd
}

// cmdLogger builds the logger selected by --log-level. Logs go to stderr so
// stdout stays parseable.
func cmdLogger(cmd *cobra.Command) (*logging.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.NewLogger(&logging.Config{
		Level:  level,
		Format: "console",
		Output: "stderr",
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "swo version %s\n", version)
			return err
		},
	}
}

// Package cli implements the cobra-based commands for berth.
//
// Each subcommand (run, clean, ports) lives in its own file. This file
// defines the root command, the global flags, and the error-to-exit-code
// translation.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/berth/internal/logging"
	"github.com/mmr-tortoise/berth/internal/model"
)

// Global flag variables, bound to persistent flags on the root command and
// therefore available to every subcommand.
var (
	// jsonOutput switches command output to structured JSON on stdout.
	jsonOutput bool

	// verbose enables debug-level launcher diagnostics on stderr.
	verbose bool
)

// Version, Commit, and Date are injected from the main package, which
// receives them from the build system via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command. The root
// performs no action itself; functionality lives in the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "berth",
		Short: "Launch a local data app on a free port",
		Long: `berth starts a local Streamlit-style data application on a free port,
clearing stale instances from previous runs first.

It probes port occupancy with whichever diagnostic tool is present
(lsof, ss, netstat, nc), terminates stale occupants gracefully before
escalating, and guarantees cleanup on every exit path.`,

		// Errors are formatted here (text or JSON), so cobra's automatic
		// usage/error printing is disabled.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewCleanCommand())
	rootCmd.AddCommand(NewPortsCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into exit codes.
// CLIError values carry their own code; anything else exits 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error in the format selected by --json.
// Errors always go to stderr; stdout is reserved for command output.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

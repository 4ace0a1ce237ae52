package cmd

import (
	"errors"
	"os"

	"aegisrt/internal/apicore"

	"github.com/spf13/cobra"
)

// Exit codes follow spec.md §6's CLI exit-code contract.
const (
	ExitCodeSuccess          = 0
	ExitCodeGeneralError     = 1
	ExitCodeConfigurationErr = 2
	ExitCodeStartupFailure   = 3
	ExitCodeShutdownTimeout  = 4
)

// startupFailureError marks a fatal essential-service load failure
// during the initial startup sequence (spec.md §7).
type startupFailureError struct {
	service string
	cause   error
}

func (e *startupFailureError) Error() string {
	return "essential service " + e.service + " failed to start: " + e.cause.Error()
}

func (e *startupFailureError) Unwrap() error { return e.cause }

var cfgPath string

// rootCmd is the entry point when aegisrt is called without any subcommand.
var rootCmd = &cobra.Command{
	Use:   "aegisrt",
	Short: "Runtime performance optimization core for multi-service engines",
	Long: `aegisrt classifies, lazily loads and consolidates the services of a
multi-service runtime, monitors resource pressure and auto-optimizes
under load, and records performance metrics with regression detection.`,
	SilenceUsage: true,
}

func SetVersion(v string) {
	rootCmd.Version = v
}

func GetVersion() string {
	return rootCmd.Version
}

func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "aegisrt version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps a returned error to the process exit code spec.md
// §6 assigns it: configuration errors are 2, startup failures 3,
// shutdown timeouts 4, anything else a generic 1.
func getExitCode(err error) int {
	if apicore.IsConfigurationError(err) {
		return ExitCodeConfigurationErr
	}
	if apicore.IsShutdownTimeout(err) {
		return ExitCodeShutdownTimeout
	}
	var sfe *startupFailureError
	if errors.As(err, &sfe) {
		return ExitCodeStartupFailure
	}
	return ExitCodeGeneralError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory (default is $HOME/.config/aegisrt)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newSnapshotCmd())
	rootCmd.AddCommand(newInspectCmd())
}

// Package cmd provides CLI commands for the lifi binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Exit codes outside the receive outcomes in runtime.
const (
	exitFailure     = 1
	exitConfigError = 3
)

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml, text.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml, text",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (receive, inspect only)",
	}

	// ConfigFlag points at a lifi.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (default: ./lifi.yaml when present)",
		EnvVars: []string{"LIFI_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for commands that only render output.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		TUIFlag,
	}
}

// isStderrTTY reports whether stderr is a terminal.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

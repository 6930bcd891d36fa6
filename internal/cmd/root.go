package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for monorun
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monorun",
		Short: "Monorepo task runner for formatting, linting, setup and e2e tests",
		Long: `monorun drives the monorepo's developer tooling from one binary.

format and lint check every target in parallel and only fix the targets
that fail. setup verifies the .NET, Node.js and npm toolchain. test-e2e
runs the newman collections and summarizes failed assertions.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: <root>/.monorun/config.yaml)")
	cmd.PersistentFlags().String("root", "", "Monorepo root (default: enclosing git worktree)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(NewFormatCommand())
	cmd.AddCommand(NewLintCommand())
	cmd.AddCommand(NewSetupCommand())
	cmd.AddCommand(NewTestE2ECommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

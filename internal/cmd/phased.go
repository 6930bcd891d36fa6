package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/monorun/internal/display"
	"github.com/harrison/monorun/internal/orchestrator"
	"github.com/harrison/monorun/internal/target"
)

// phasedTool describes one check-then-fix subcommand.
type phasedTool struct {
	category target.Category
	registry func(root string) *target.Registry
	title    string
	heading  string // Single-target heading, formatted with the target name
	fixing   string // Verb for the remediation phase header
	clean    string
	done     string
	issue    string
}

var (
	formatTool = phasedTool{
		category: target.Format,
		registry: target.NewFormatRegistry,
		title:    "arolariu.ro Code Formatter Tool",
		heading:  "🎨 Formatting: %s",
		fixing:   "Formatting",
		clean:    "All targets already properly formatted!",
		done:     "Formatting complete",
		issue:    "formatting",
	}
	lintTool = phasedTool{
		category: target.Lint,
		registry: target.NewLintRegistry,
		title:    "arolariu.ro Code Linter Tool",
		heading:  "🔍 Linting: %s",
		fixing:   "Fixing",
		clean:    "All targets pass lint checks!",
		done:     "Linting complete",
		issue:    "lint",
	}
)

// NewFormatCommand creates the 'monorun format' command
func NewFormatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "format [target]",
		Short: "Check formatting and fix the targets that fail",
		Long: `Check formatting across the monorepo and rewrite only the targets that
fail the check.

With no target (or "all") every check runs in parallel with captured output,
then the failing targets are formatted in parallel. A single target streams
its tool output directly.

Targets: all, packages, website, cv, api`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhasedTool(cmd, formatTool, args)
		},
	}
}

// NewLintCommand creates the 'monorun lint' command
func NewLintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [target]",
		Short: "Lint targets and auto-fix the ones that fail",
		Long: `Run eslint across the monorepo and apply --fix only to the targets that
fail.

Targets: all, packages, website, cv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhasedTool(cmd, lintTool, args)
		},
	}
}

func runPhasedTool(cmd *cobra.Command, tool phasedTool, args []string) error {
	env, err := loadEnvironment(cmd, true)
	if err != nil {
		return err
	}
	defer env.Close()

	out := env.out
	display.Banner(out, tool.title)

	raw := ""
	if len(args) > 0 {
		raw = args[0]
	}

	reg := tool.registry(env.root)
	sel, err := reg.Parse(raw)
	if err != nil {
		var invalid *target.InvalidTargetError
		if errors.As(err, &invalid) {
			display.Failure(out, "Invalid target: %q", invalid.Input)
			display.Hint(out, "\n💡 Valid targets: %s", strings.Join(invalid.Valid, ", "))
		}
		return err
	}

	if !sel.All {
		display.Phase(out, tool.heading, sel)
	}

	orch := orchestrator.New(tool.category.String(), env.runner, display.NewReporter(out), env.log)
	if env.store != nil {
		orch.SetRecorder(env.store)
	}
	orch.OnPhase(func(phase string, targets int) {
		switch phase {
		case orchestrator.PhaseCheck:
			display.Phase(out, "🧵 Phase 1: Checking all targets in parallel...")
		case orchestrator.PhaseFix:
			fmt.Fprintln(out)
			display.Phase(out, "🧵 Phase 2: %s %d target(s) in parallel...", tool.fixing, targets)
		}
	})

	outcome, err := orch.Run(cmd.Context(), reg, sel)
	if err != nil {
		var phaseErr *orchestrator.PhaseError
		if errors.As(err, &phaseErr) {
			if phaseErr.Phase == orchestrator.PhaseCheck {
				display.Failure(out, "Could not run the %s check for %s", tool.issue, strings.Join(phaseErr.Targets, ", "))
			} else {
				display.Failure(out, "%d target(s) had %s issues", phaseErr.Failed, tool.issue)
			}
		}
		return err
	}

	if outcome.AlreadyClean {
		display.Success(out, "%s", tool.clean)
		return nil
	}
	display.Success(out, "%s: %s", tool.done, strings.Join(outcome.Remediated, ", "))
	return nil
}

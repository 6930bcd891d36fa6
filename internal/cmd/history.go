package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/monorun/internal/config"
	"github.com/harrison/monorun/internal/history"
)

// NewHistoryCommand creates the 'monorun history' command
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent format and lint runs",
		Long: `Display the per-target results recorded by recent format and lint runs,
newest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", limit)
	}

	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	defer env.Close()

	output := env.out
	if !env.cfg.History.Enabled {
		fmt.Fprintln(output, "Run history is disabled (history.enabled: false)")
		return nil
	}

	dbPath := config.Resolve(env.root, env.cfg.History.DBPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(output, "No run history found")
		fmt.Fprintf(output, "Database path: %s\n", dbPath)
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("load recent runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(output, "No run history found")
		return nil
	}

	printRuns(output, runs)
	return nil
}

func printRuns(w io.Writer, runs []history.Run) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	cyan.Fprintf(w, "\n=== Recent Runs ===\n")

	for _, r := range runs {
		fmt.Fprintf(w, "\n%s  %s  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Command, r.RunID)
		for _, s := range r.Steps {
			fmt.Fprintf(w, "  %-5s %-10s ", s.Phase, s.Target)
			switch s.Status {
			case "passed":
				green.Fprintf(w, "%-7s", s.Status)
			default:
				red.Fprintf(w, "%-7s", s.Status)
			}
			fmt.Fprintf(w, " exit %d  %.1fs\n", s.ExitCode, s.Duration.Seconds())
		}
		if n := r.Failed(); n > 0 {
			fmt.Fprintf(w, "  ")
			red.Fprintf(w, "%d of %d steps did not pass\n", n, len(r.Steps))
		}
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chriserin/pickle/internal/config"
	"github.com/chriserin/pickle/internal/db"
	"github.com/chriserin/pickle/internal/ui"
)

var limitFlag int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or the steps of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := resolveOptions(cmd, nil)
		if err != nil {
			return err
		}
		runID := ""
		if len(args) > 0 {
			runID = args[0]
		}
		return RunHistory(cmd.Context(), cmd.OutOrStdout(), opts.HistoryDB, runID, limitFlag)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyFlag, "db", "", "History database (default "+config.DefaultHistoryDB+")")
	historyCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

func RunHistory(ctx context.Context, w io.Writer, path, runID string, limit int) error {
	if path == "" {
		path = config.DefaultHistoryDB
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	sqlDB, err := db.Open(path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()
	store := db.NewStore(sqlDB)

	if runID != "" {
		return printRun(ctx, w, store, runID)
	}

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("querying runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	for _, r := range runs {
		ui.RunRow(w, r.ID, r.StartedAt, r.FeatureName, r.Status, r.Ok, r.Total(), r.Duration)
	}
	return nil
}

func printRun(ctx context.Context, w io.Writer, store *db.Store, runID string) error {
	results, err := store.Steps(ctx, runID)
	if err != nil {
		return fmt.Errorf("querying steps: %w", err)
	}
	if len(results) == 0 {
		return exitError(1, "run %s not found", runID)
	}
	for _, r := range results {
		ui.StepRow(w, r.Scenario, r.Line, r.Status, r.Duration, r.Err)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriserin/pickle/internal/config"
	"github.com/chriserin/pickle/internal/db"
	"github.com/chriserin/pickle/internal/executor"
	"github.com/chriserin/pickle/internal/report"
	"github.com/chriserin/pickle/internal/suite"
	"github.com/chriserin/pickle/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [feature]",
	Short: "Run a feature file and report the outcome",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, closeLog, err := prepare(cmd, args)
		if err != nil {
			return err
		}
		defer closeLog()
		return RunRun(cmd.Context(), cmd.OutOrStdout(), current, opts)
	},
}

func init() {
	runCmd.Flags().StringVarP(&junitFlag, "junit", "j", "", "Write a JUnit XML report to this path")
	runCmd.Flags().StringVar(&jsonFlag, "json", "", "Write a JSON snapshot of the run to this path")
	runCmd.Flags().StringVar(&historyFlag, "history", "", "Record the run in this sqlite database")
	runCmd.Flags().BoolVarP(&debugFlag, "debug", "d", false, "Serve the debugger instead of running")
	runCmd.Flags().IntVar(&portFlag, "port", config.DefaultDebugPort, "Debugger port")
	runCmd.Flags().BoolVar(&watchFlag, "watch", false, "Reload the feature file when it changes (debugger only)")
	runCmd.Flags().BoolVar(&warnDuplicatesFlag, "warn-duplicates", false, "Warn about duplicate steps instead of failing")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", config.DefaultTimeout, "Timeout for steps that do not set one")
	rootCmd.AddCommand(runCmd)
}

// RunRun loads the feature named by opts, runs it, prints the tree and writes
// the configured reports. A failed run returns an ExitError with code 1.
func RunRun(ctx context.Context, w io.Writer, s *suite.Suite, opts config.Options) error {
	if opts.Debug {
		return RunDebug(ctx, w, s, opts)
	}
	if err := load(w, s, opts); err != nil {
		return err
	}

	startedAt := time.Now()
	o, runErr := s.Run(ctx)
	if o == nil {
		return exitError(1, "%v", runErr)
	}
	ui.FeatureTree(w, o)

	if err := writeReports(w, o, s.Source(), opts); err != nil {
		return err
	}
	if opts.HistoryDB != "" {
		if err := recordRun(ctx, w, o, opts, startedAt); err != nil {
			return err
		}
	}

	if runErr != nil {
		return exitError(1, "%v", runErr)
	}
	if !o.Passed() {
		return exitError(1, "feature %q failed", o.Feature.Name)
	}
	return nil
}

func load(w io.Writer, s *suite.Suite, opts config.Options) error {
	if opts.Feature == "" {
		return exitError(1, "feature file path is required")
	}
	if _, err := s.LoadFile(opts.Feature); err != nil {
		ui.LoadError(w, err)
		return exitError(1, "could not load %s", opts.Feature)
	}
	return nil
}

func writeReports(w io.Writer, o *executor.FeatureOutcome, source string, opts config.Options) error {
	if opts.JUnitOutput != "" {
		if err := report.WriteJUnitFile(opts.JUnitOutput, o); err != nil {
			return exitError(1, "writing JUnit report: %v", err)
		}
		ui.Wrote(w, "junit", opts.JUnitOutput)
	}
	if opts.JSONOutput != "" {
		if err := report.WriteBridgeFile(opts.JSONOutput, o, source); err != nil {
			return exitError(1, "writing JSON report: %v", err)
		}
		ui.Wrote(w, "json", opts.JSONOutput)
	}
	return nil
}

func recordRun(ctx context.Context, w io.Writer, o *executor.FeatureOutcome, opts config.Options, startedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(opts.HistoryDB), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	sqlDB, err := db.Open(opts.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	id, err := db.NewStore(sqlDB).Record(ctx, o, opts.Feature, startedAt)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	ui.Wrote(w, "run "+id, opts.HistoryDB)
	return nil
}

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chriserin/pickle/internal/suite"
)

var (
	configFlag  string
	logFlag     string
	verboseFlag bool

	current *suite.Suite
)

var rootCmd = &cobra.Command{
	Use:          "pickle",
	Short:        "Run Gherkin features against Go step definitions",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to pickle.yaml")
	rootCmd.PersistentFlags().StringVar(&logFlag, "log", "", "Also write log records to this file")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Enable debug logging")
}

// Execute runs the command line against s, the suite the calling program has
// declared its steps and hooks on.
func Execute(s *suite.Suite) {
	current = s

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

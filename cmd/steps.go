package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/chriserin/pickle/internal/config"
	"github.com/chriserin/pickle/internal/suite"
	"github.com/chriserin/pickle/internal/ui"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the registered step definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, closeLog, err := prepare(cmd, args)
		if err != nil {
			return err
		}
		defer closeLog()
		return RunSteps(cmd.OutOrStdout(), current)
	},
}

func init() {
	stepsCmd.Flags().BoolVar(&warnDuplicatesFlag, "warn-duplicates", false, "Warn about duplicate steps instead of failing")
	stepsCmd.Flags().DurationVar(&timeoutFlag, "timeout", config.DefaultTimeout, "Timeout for steps that do not set one")
	rootCmd.AddCommand(stepsCmd)
}

func RunSteps(w io.Writer, s *suite.Suite) error {
	if err := s.Flush(); err != nil {
		ui.LoadError(w, err)
		return exitError(1, "step definitions are invalid")
	}
	ui.Definitions(w, s.Definitions())
	return nil
}

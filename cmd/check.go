package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/chriserin/pickle/internal/config"
	"github.com/chriserin/pickle/internal/suite"
	"github.com/chriserin/pickle/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [feature]",
	Short: "Parse a feature file and resolve its steps without running them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, closeLog, err := prepare(cmd, args)
		if err != nil {
			return err
		}
		defer closeLog()
		return RunCheck(cmd.OutOrStdout(), current, opts)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&warnDuplicatesFlag, "warn-duplicates", false, "Warn about duplicate steps instead of failing")
	rootCmd.AddCommand(checkCmd)
}

func RunCheck(w io.Writer, s *suite.Suite, opts config.Options) error {
	if err := load(w, s, opts); err != nil {
		return err
	}
	f := s.Feature()
	steps := len(f.BackgroundSteps)
	for _, sc := range f.Scenarios {
		steps += len(sc.Steps)
	}
	ui.Checked(w, opts.Feature, len(f.Scenarios), steps)
	return nil
}

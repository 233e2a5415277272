package cmd

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"

	"github.com/chriserin/pickle/internal/config"
	"github.com/chriserin/pickle/internal/debugger"
	"github.com/chriserin/pickle/internal/suite"
	"github.com/chriserin/pickle/internal/ui"
	"github.com/chriserin/pickle/internal/watch"
)

var debugCmd = &cobra.Command{
	Use:   "debug [feature]",
	Short: "Serve the step debugger for a feature file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, closeLog, err := prepare(cmd, args)
		if err != nil {
			return err
		}
		defer closeLog()
		return RunDebug(cmd.Context(), cmd.OutOrStdout(), current, opts)
	},
}

func init() {
	debugCmd.Flags().IntVar(&portFlag, "port", config.DefaultDebugPort, "Port to listen on")
	debugCmd.Flags().BoolVar(&watchFlag, "watch", false, "Reload the feature file when it changes")
	debugCmd.Flags().BoolVar(&warnDuplicatesFlag, "warn-duplicates", false, "Warn about duplicate steps instead of failing")
	debugCmd.Flags().DurationVar(&timeoutFlag, "timeout", config.DefaultTimeout, "Timeout for steps that do not set one")
	rootCmd.AddCommand(debugCmd)
}

// RunDebug loads the feature and serves the debugger on localhost until ctx
// is cancelled. With opts.Watch the feature is reloaded whenever its file
// changes.
func RunDebug(ctx context.Context, w io.Writer, s *suite.Suite, opts config.Options) error {
	if err := load(w, s, opts); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.Watch {
		watcher := watch.New(s.Path(), watch.WithLogger(s.Logger()))
		go watcher.Run(ctx, func() error {
			f, err := s.Reload()
			if err != nil {
				ui.LoadError(w, err)
				return err
			}
			ui.Reloaded(w, s.Path(), len(f.Scenarios))
			return nil
		})
	}

	dbg := debugger.New(s, s.Logger())
	addr := fmt.Sprintf("127.0.0.1:%d", opts.DebugPort)
	err := dbg.ListenAndServe(ctx, addr, func(a net.Addr) {
		ui.Listening(w, a.String())
	})
	if err != nil {
		return exitError(1, "%v", err)
	}
	return nil
}

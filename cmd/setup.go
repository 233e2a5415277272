package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriserin/pickle/internal/config"
	"github.com/chriserin/pickle/internal/suite"
)

var (
	junitFlag          string
	jsonFlag           string
	historyFlag        string
	debugFlag          bool
	portFlag           int
	watchFlag          bool
	warnDuplicatesFlag bool
	timeoutFlag        time.Duration
)

var errNoSuite = errors.New("no steps declared: call pickle.Main from your test program")

// resolveOptions reads pickle.yaml and lays the flags the user actually set
// over it. A positional argument names the feature file.
func resolveOptions(cmd *cobra.Command, args []string) (config.Options, error) {
	opts, err := config.Resolve(configFlag)
	if err != nil {
		return opts, exitError(1, "%v", err)
	}

	flags := cmd.Flags()
	if len(args) > 0 {
		opts.Feature = args[0]
	}
	if flags.Changed("log") {
		opts.LogFile = logFlag
	}
	if flags.Changed("verbose") {
		opts.Verbose = verboseFlag
	}
	if flags.Changed("junit") {
		opts.JUnitOutput = junitFlag
	}
	if flags.Changed("json") {
		opts.JSONOutput = jsonFlag
	}
	if flags.Changed("history") || flags.Changed("db") {
		opts.HistoryDB = historyFlag
	}
	if flags.Changed("debug") {
		opts.Debug = debugFlag
	}
	if flags.Changed("port") {
		opts.DebugPort = portFlag
	}
	if flags.Changed("watch") {
		opts.Watch = watchFlag
	}
	if flags.Changed("warn-duplicates") {
		opts.WarnDuplicates = warnDuplicatesFlag
	}
	if flags.Changed("timeout") {
		opts.Timeout = timeoutFlag
	}

	if err := opts.Validate(); err != nil {
		return opts, exitError(1, "%v", err)
	}
	return opts, nil
}

// newLogger writes text records to stderr and, when a log file is set, to
// that file as well.
func newLogger(stderr io.Writer, opts config.Options) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	out := stderr
	closeLog := func() {}
	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = io.MultiWriter(stderr, f)
		closeLog = func() { f.Close() }
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closeLog, nil
}

func configure(s *suite.Suite, opts config.Options, logger *slog.Logger) {
	s.Configure(
		suite.WithLogger(logger),
		suite.WithWarnDuplicates(opts.WarnDuplicates),
		suite.WithDefaultTimeout(opts.Timeout),
	)
}

// prepare resolves the options of cmd and configures the current suite with
// them. The returned func closes the log file.
func prepare(cmd *cobra.Command, args []string) (config.Options, func(), error) {
	if current == nil {
		return config.Options{}, nil, errNoSuite
	}
	opts, err := resolveOptions(cmd, args)
	if err != nil {
		return opts, nil, err
	}
	logger, closeLog, err := newLogger(cmd.ErrOrStderr(), opts)
	if err != nil {
		return opts, nil, err
	}
	configure(current, opts, logger)
	return opts, closeLog, nil
}

package watch

import (
	"context"
	"log/slog"
	"os"
	"time"
)

const DefaultInterval = 250 * time.Millisecond

type fileState struct {
	modTime time.Time
	size    int64
	exists  bool
}

// Watcher polls one file and reports changes once the file has stopped
// changing for a full interval.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
}

type Option func(*Watcher)

func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.interval = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

func New(path string, opts ...Option) *Watcher {
	w := &Watcher{path: path, interval: DefaultInterval, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run calls onChange after each settled change until ctx is cancelled. An
// error from onChange is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func() error) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.stat()
	pending := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		cur := w.stat()
		if cur != last {
			last = cur
			pending = cur.exists
			continue
		}
		if !pending {
			continue
		}
		pending = false
		w.logger.Debug("file changed", "path", w.path)
		if err := onChange(); err != nil {
			w.logger.Error("reload failed", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) stat() fileState {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileState{}
	}
	return fileState{modTime: info.ModTime(), size: info.Size(), exists: true}
}

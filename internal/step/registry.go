package step

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chriserin/pickle/internal/expression"
)

var (
	ErrUnsupportedStep = errors.New("unsupported step")
	ErrDuplicateStep   = errors.New("duplicate step definition")
)

type declaration struct {
	pattern  expression.Pattern
	opts     Options
	fn       Func
	location string
}

// Registry collects step definitions in two phases: Register queues a
// declaration, Flush compiles every queued declaration into the lookup table.
//
// When several definitions match one line, Resolve prefers the one with the
// most placeholders and then the one registered first. That is a heuristic:
// overlapping patterns with equal placeholder counts resolve by order alone.
type Registry struct {
	types          *expression.Types
	logger         *slog.Logger
	warnDuplicates bool
	defaultTimeout time.Duration

	mu        sync.RWMutex
	pending   []declaration
	defs      []*Definition
	byPattern map[string]*Definition
}

type RegistryOption func(*Registry)

// WithWarnDuplicates logs duplicate patterns and keeps the first one instead
// of failing Flush.
func WithWarnDuplicates(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.warnDuplicates = enabled
	}
}

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(types *expression.Types, opts ...RegistryOption) *Registry {
	r := &Registry{
		types:          types,
		logger:         slog.Default(),
		defaultTimeout: DefaultTimeout,
		byPattern:      make(map[string]*Definition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetWarnDuplicates switches duplicate handling for later flushes.
func (r *Registry) SetWarnDuplicates(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnDuplicates = enabled
}

func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetDefaultTimeout sets the timeout given to declarations without one when
// they are flushed.
func (r *Registry) SetDefaultTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d <= 0 {
		d = DefaultTimeout
	}
	r.defaultTimeout = d
}

// Register queues a definition. A zero timeout is resolved at Flush.
func (r *Registry) Register(pattern expression.Pattern, opts Options, fn Func, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, declaration{pattern: pattern, opts: opts, fn: fn, location: location})
}

// Pending returns the number of declarations waiting for Flush.
func (r *Registry) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// Flush drains the queue. The table is only updated when every pending
// declaration compiles and no duplicate is rejected.
func (r *Registry) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := append([]*Definition(nil), r.defs...)
	byPattern := make(map[string]*Definition, len(r.byPattern)+len(r.pending))
	for k, v := range r.byPattern {
		byPattern[k] = v
	}

	for _, d := range r.pending {
		key := patternKey(d.pattern)
		if existing, ok := byPattern[key]; ok {
			if !r.warnDuplicates {
				return fmt.Errorf("%w: %q at %s, first defined at %s", ErrDuplicateStep, d.pattern.String(), d.location, existing.Location)
			}
			r.logger.Warn("step is defined multiple times",
				"pattern", d.pattern.String(),
				"location", d.location,
				"kept", existing.Location)
			continue
		}

		expr, err := r.types.Compile(d.pattern)
		if err != nil {
			return fmt.Errorf("compiling step %q at %s: %w", d.pattern.String(), d.location, err)
		}
		timeout := d.opts.Timeout
		if timeout <= 0 {
			timeout = r.defaultTimeout
		}
		def := &Definition{
			Pattern:    d.pattern,
			Timeout:    timeout,
			Fn:         d.fn,
			Expression: expr,
			Location:   d.location,
		}
		byPattern[key] = def
		defs = append(defs, def)
	}

	r.defs = defs
	r.byPattern = byPattern
	r.pending = nil
	return nil
}

// Clear empties the lookup table and the queue.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
	r.defs = nil
	r.byPattern = make(map[string]*Definition)
}

// Definitions returns the flushed definitions in registration order.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Definition(nil), r.defs...)
}

// Resolve finds the definition for a step line. A leading keyword is
// stripped case-insensitively before matching.
func (r *Registry) Resolve(line string) (*Definition, error) {
	text := line
	if _, rest, ok := SplitKeyword(line); ok {
		text = rest
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Definition
	for _, def := range r.defs {
		if !def.Expression.Match(text) {
			continue
		}
		if best == nil || len(def.Expression.Parsers) > len(best.Expression.Parsers) {
			best = def
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w '%s'", ErrUnsupportedStep, line)
	}
	return best, nil
}

func patternKey(p expression.Pattern) string {
	if _, ok := p.(expression.RegexPattern); ok {
		return "r:" + p.String()
	}
	return "s:" + p.String()
}

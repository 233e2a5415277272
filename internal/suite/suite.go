package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/chriserin/pickle/internal/executor"
	"github.com/chriserin/pickle/internal/expression"
	"github.com/chriserin/pickle/internal/parser"
	"github.com/chriserin/pickle/internal/step"
)

var (
	ErrNoFeature = errors.New("no feature loaded")
	ErrNotFound  = errors.New("not found")
)

// Suite owns everything a run needs: parameter types, step definitions,
// hooks, id counters and the currently loaded feature. Load, Reload, Run and
// RunStep are serialised so a hot reload never overlaps an execution.
type Suite struct {
	types    *expression.Types
	registry *step.Registry
	hooks    *executor.Hooks
	ids      *parser.IDs
	logger   *slog.Logger
	executor *executor.Executor

	mu      sync.Mutex
	feature *parser.Feature
	path    string
	source  string
}

type Option func(*Suite)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Suite) {
		s.logger = logger
	}
}

func WithWarnDuplicates(enabled bool) Option {
	return func(s *Suite) {
		s.registry.SetWarnDuplicates(enabled)
	}
}

// WithDefaultTimeout sets the timeout of steps registered without one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Suite) {
		s.registry.SetDefaultTimeout(d)
	}
}

func New(opts ...Option) *Suite {
	s := &Suite{
		types:  expression.NewTypes(),
		hooks:  &executor.Hooks{},
		ids:    &parser.IDs{},
		logger: slog.Default(),
	}
	s.registry = step.NewRegistry(s.types)
	s.Configure(opts...)
	return s
}

// Configure applies options after construction, e.g. once the CLI has
// resolved its configuration.
func (s *Suite) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(s)
	}
	s.registry.SetLogger(s.logger)
	s.executor = executor.New(s.hooks, s.logger)
}

func (s *Suite) Logger() *slog.Logger { return s.logger }

func (s *Suite) Hooks() *executor.Hooks { return s.hooks }

// Step declares a string-template step. The declaration is queued until
// Flush or Load.
func (s *Suite) Step(pattern string, fn step.Func, opts ...step.Options) {
	s.register(expression.StringPattern(pattern), fn, opts, caller(2))
}

// StepRegex declares a step matched by a regular expression. Its capture
// groups are passed to fn as strings.
func (s *Suite) StepRegex(expr string, fn step.Func, opts ...step.Options) {
	s.register(expression.Regex(expr), fn, opts, caller(2))
}

func (s *Suite) register(p expression.Pattern, fn step.Func, opts []step.Options, location string) {
	var o step.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	s.registry.Register(p, o, fn, location)
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, file); err == nil {
			file = rel
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// DefineParameterType adds or replaces a {name} placeholder. It only affects
// steps flushed afterwards.
func (s *Suite) DefineParameterType(name, pattern string, parse expression.Parser) {
	s.types.Define(expression.ParameterType{Name: name, Pattern: pattern, Parse: parse})
}

func (s *Suite) BeforeFeature(fn executor.BeforeFeatureFunc)   { s.hooks.SetBeforeFeature(fn) }
func (s *Suite) AfterFeature(fn executor.AfterFeatureFunc)     { s.hooks.SetAfterFeature(fn) }
func (s *Suite) BeforeScenario(fn executor.BeforeScenarioFunc) { s.hooks.SetBeforeScenario(fn) }
func (s *Suite) AfterScenario(fn executor.AfterScenarioFunc)   { s.hooks.SetAfterScenario(fn) }
func (s *Suite) BeforeStep(fn executor.BeforeStepFunc)         { s.hooks.SetBeforeStep(fn) }
func (s *Suite) AfterStep(fn executor.AfterStepFunc)           { s.hooks.SetAfterStep(fn) }

// Flush compiles every queued step declaration.
func (s *Suite) Flush() error {
	return s.registry.Flush()
}

func (s *Suite) Definitions() []*step.Definition {
	return s.registry.Definitions()
}

// Load flushes pending declarations and parses text as the current feature.
func (s *Suite) Load(text string) (*parser.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(text, "", s.ids)
}

// LoadFile reads and loads the feature at path. Reload reads the same path
// again.
func (s *Suite) LoadFile(path string) (*parser.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature file: %w", err)
	}
	return s.load(string(content), path, s.ids)
}

// Reload parses the current feature file again with ids starting from 1.
// When parsing fails the previous feature and its counters stay in place. It
// waits for any run in progress.
func (s *Suite) Reload() (*parser.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil, ErrNoFeature
	}
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading feature file: %w", err)
	}
	ids := &parser.IDs{}
	f, err := s.load(string(content), s.path, ids)
	if err != nil {
		return nil, err
	}
	s.ids = ids
	s.logger.Info("feature reloaded", "path", s.path, "scenarios", len(f.Scenarios))
	return f, nil
}

func (s *Suite) load(text, path string, ids *parser.IDs) (*parser.Feature, error) {
	if s.registry.Pending() > 0 {
		if err := s.registry.Flush(); err != nil {
			return nil, err
		}
	}
	f, err := parser.Parse(text, s.registry, ids)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	s.feature = f
	s.source = text
	s.path = path
	s.logger.Debug("feature loaded", "feature", f.Name, "scenarios", len(f.Scenarios), "background", len(f.BackgroundSteps))
	return f, nil
}

// Feature returns the currently loaded feature, or nil.
func (s *Suite) Feature() *parser.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feature
}

// Source returns the text the current feature was parsed from.
func (s *Suite) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Suite) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Run executes the current feature.
func (s *Suite) Run(ctx context.Context) (*executor.FeatureOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.feature == nil {
		return nil, ErrNoFeature
	}
	return s.executor.RunFeature(ctx, s.feature)
}

// RunStep executes one step of the current feature against c. The step must
// be part of the scenario or of the background.
func (s *Suite) RunStep(ctx context.Context, scenarioID, stepID int, c *step.Context) (*executor.StepOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.feature == nil {
		return nil, ErrNoFeature
	}
	sc, ok := s.feature.FindScenario(scenarioID)
	if !ok {
		return nil, fmt.Errorf("scenario %d %w", scenarioID, ErrNotFound)
	}
	st, ok := findIn(s.feature.BackgroundSteps, stepID)
	if !ok {
		st, ok = findIn(sc.Steps, stepID)
	}
	if !ok {
		return nil, fmt.Errorf("step %d %w in scenario %d", stepID, ErrNotFound, scenarioID)
	}
	return s.executor.RunStep(ctx, sc, st, c), nil
}

func findIn(steps []*step.Step, id int) (*step.Step, bool) {
	for _, st := range steps {
		if st.ID == id {
			return st, true
		}
	}
	return nil, false
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chriserin/pickle/internal/parser"
	"github.com/chriserin/pickle/internal/step"
)

// Executor runs parsed features one scenario at a time.
//
// A step that outlives its timeout has its context cancelled. The callback is
// expected to watch c.Done(); one that ignores it keeps running in its own
// goroutine but its result is discarded.
type Executor struct {
	hooks  *Hooks
	logger *slog.Logger
}

func New(hooks *Hooks, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{hooks: hooks, logger: logger}
}

// RunFeature runs every scenario in order. Step failures are recorded in the
// outcome and never stop the run. A failing feature or scenario hook is fatal:
// the partial outcome is returned together with the error.
func (e *Executor) RunFeature(ctx context.Context, f *parser.Feature) (*FeatureOutcome, error) {
	h := e.hooks.snapshot()
	out := &FeatureOutcome{Feature: f, Status: Ok}

	e.logger.Debug("running feature", "feature", f.Name, "scenarios", len(f.Scenarios))

	if h.beforeFeature != nil {
		if err := guard(func() error { return h.beforeFeature(ctx, f) }); err != nil {
			return out, out.fail(fmt.Errorf("before feature hook: %w", err))
		}
	}

	for _, sc := range f.Scenarios {
		if err := ctx.Err(); err != nil {
			return out, out.fail(err)
		}
		so, err := e.runScenario(ctx, h, f, sc)
		out.ScenarioOutcomes = append(out.ScenarioOutcomes, so)
		if so.Status == Error {
			out.Status = Error
			if out.Err == nil {
				out.Err = so.Err
			}
		}
		if err != nil {
			return out, out.fail(err)
		}
	}

	if h.afterFeature != nil {
		if err := guard(func() error { return h.afterFeature(ctx, f, out) }); err != nil {
			return out, out.fail(fmt.Errorf("after feature hook: %w", err))
		}
	}

	e.logger.Debug("feature finished", "feature", f.Name, "status", out.Status.String())
	return out, nil
}

func (o *FeatureOutcome) fail(err error) error {
	o.Status = Error
	if o.Err == nil {
		o.Err = err
	}
	return err
}

// RunScenario runs the background steps of f followed by the steps of sc
// against a fresh variable bag.
func (e *Executor) RunScenario(ctx context.Context, f *parser.Feature, sc *parser.Scenario) (*ScenarioOutcome, error) {
	return e.runScenario(ctx, e.hooks.snapshot(), f, sc)
}

func (e *Executor) runScenario(ctx context.Context, h hookSet, f *parser.Feature, sc *parser.Scenario) (*ScenarioOutcome, error) {
	c := step.NewContext().WithContext(ctx)
	so := &ScenarioOutcome{Scenario: sc, Status: Ok}

	if h.beforeScenario != nil {
		if err := guard(func() error { return h.beforeScenario(c, sc) }); err != nil {
			so.Status = Error
			so.Err = err
			return so, fmt.Errorf("before scenario hook for %q: %w", sc.Name, err)
		}
	}

	steps := make([]*step.Step, 0, len(f.BackgroundSteps)+len(sc.Steps))
	steps = append(steps, f.BackgroundSteps...)
	steps = append(steps, sc.Steps...)

	for i, st := range steps {
		o := e.runStep(ctx, h, c, sc, st)
		so.StepOutcomes = append(so.StepOutcomes, o)
		if o.Status != Error {
			continue
		}
		so.Status = Error
		so.Err = o.Err
		for _, rest := range steps[i+1:] {
			so.StepOutcomes = append(so.StepOutcomes, &StepOutcome{Step: rest, Status: Skipped})
		}
		break
	}

	if h.afterScenario != nil {
		if err := guard(func() error { return h.afterScenario(c, sc, so) }); err != nil {
			so.Status = Error
			if so.Err == nil {
				so.Err = err
			}
			return so, fmt.Errorf("after scenario hook for %q: %w", sc.Name, err)
		}
	}
	return so, nil
}

// RunStep executes a single step against c, hooks included. It is the entry
// point for interactive debugging where the caller owns the variable bag.
func (e *Executor) RunStep(ctx context.Context, sc *parser.Scenario, st *step.Step, c *step.Context) *StepOutcome {
	return e.runStep(ctx, e.hooks.snapshot(), c.WithContext(ctx), sc, st)
}

func (e *Executor) runStep(ctx context.Context, h hookSet, c *step.Context, sc *parser.Scenario, st *step.Step) *StepOutcome {
	o := &StepOutcome{Step: st, Status: Ok}

	if h.beforeStep != nil {
		if err := guard(func() error { return h.beforeStep(c, sc, st) }); err != nil {
			o.Status = Error
			o.Err = err
		}
	}

	start := time.Now()
	if o.Status != Error {
		if err := e.call(ctx, c, st); err != nil {
			o.Status = Error
			o.Err = err
		}
	}
	o.Duration = time.Since(start)

	if h.afterStep != nil {
		err := guard(func() error {
			h.afterStep(c, sc, st, o)
			return nil
		})
		if err != nil {
			o.Status = Error
			o.Err = err
		}
	}

	e.logger.Debug("step finished",
		"step", st.Line(),
		"status", o.Status.String(),
		"duration", o.Duration)
	return o
}

// call extracts the arguments and races the callback against the
// definition's timeout.
func (e *Executor) call(ctx context.Context, c *step.Context, st *step.Step) error {
	def := st.Definition
	if def == nil || def.Fn == nil {
		return fmt.Errorf("%w '%s'", step.ErrUnsupportedStep, st.Line())
	}
	args, err := def.Expression.Args(st.Text)
	if err != nil {
		return err
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = step.DefaultTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- guard(func() error { return def.Fn(c.WithContext(stepCtx), args...) })
	}()

	select {
	case err := <-done:
		return err
	case <-stepCtx.Done():
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &TimeoutError{Timeout: timeout}
		}
		return stepCtx.Err()
	}
}

// guard runs fn and turns a panic into a *PanicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}

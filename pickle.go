// Package pickle runs Gherkin feature files against step definitions
// declared in Go.
//
// A test program builds a Suite, declares its steps and hooks, and hands the
// process to Main:
//
//	s := pickle.New()
//	s.Step("I add {int} and {int}", func(c *pickle.Context, args ...any) error {
//		c.Set("sum", args[0].(int)+args[1].(int))
//		return nil
//	})
//	pickle.Main(s)
//
// The program then accepts the pickle commands: run, check, debug, steps,
// history and init.
package pickle

import (
	"github.com/chriserin/pickle/cmd"
	"github.com/chriserin/pickle/internal/executor"
	"github.com/chriserin/pickle/internal/expression"
	"github.com/chriserin/pickle/internal/parser"
	"github.com/chriserin/pickle/internal/step"
	"github.com/chriserin/pickle/internal/suite"
)

type (
	Suite       = suite.Suite
	Option      = suite.Option
	Context     = step.Context
	StepFunc    = step.Func
	StepOptions = step.Options
	Definition  = step.Definition
	Parser      = expression.Parser

	Feature  = parser.Feature
	Scenario = parser.Scenario
	Step     = step.Step

	Status          = executor.Status
	FeatureOutcome  = executor.FeatureOutcome
	ScenarioOutcome = executor.ScenarioOutcome
	StepOutcome     = executor.StepOutcome
	TimeoutError    = executor.TimeoutError

	BeforeFeatureFunc  = executor.BeforeFeatureFunc
	AfterFeatureFunc   = executor.AfterFeatureFunc
	BeforeScenarioFunc = executor.BeforeScenarioFunc
	AfterScenarioFunc  = executor.AfterScenarioFunc
	BeforeStepFunc     = executor.BeforeStepFunc
	AfterStepFunc      = executor.AfterStepFunc
)

const (
	Ok      = executor.Ok
	Warning = executor.Warning
	Error   = executor.Error
	Skipped = executor.Skipped
)

var (
	ErrUnsupportedStep = step.ErrUnsupportedStep
	ErrDuplicateStep   = step.ErrDuplicateStep
	ErrNoFeature       = suite.ErrNoFeature

	WithLogger         = suite.WithLogger
	WithWarnDuplicates = suite.WithWarnDuplicates
	WithDefaultTimeout = suite.WithDefaultTimeout
)

func New(opts ...Option) *Suite {
	return suite.New(opts...)
}

// Main runs the pickle command line against s and exits the process.
func Main(s *Suite) {
	cmd.Execute(s)
}

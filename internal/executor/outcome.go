package executor

import (
	"fmt"
	"time"

	"github.com/chriserin/pickle/internal/parser"
	"github.com/chriserin/pickle/internal/step"
)

type Status int

const (
	Ok Status = iota + 1
	Warning
	Error
	Skipped
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, ok := ParseStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown status %q", text)
	}
	*s = parsed
	return nil
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{Ok, Warning, Error, Skipped} {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// StepOutcome is the result of running one step. After-step hooks receive a
// pointer to it and may rewrite Status and Err.
type StepOutcome struct {
	Step     *step.Step
	Status   Status
	Err      error
	Duration time.Duration
}

type ScenarioOutcome struct {
	Scenario     *parser.Scenario
	Status       Status
	Err          error // first step error
	StepOutcomes []*StepOutcome
}

type FeatureOutcome struct {
	Feature          *parser.Feature
	Status           Status
	ScenarioOutcomes []*ScenarioOutcome
	Err              error // first error of the run
}

// Counts tallies step outcomes by status.
func (o *FeatureOutcome) Counts() map[Status]int {
	counts := map[Status]int{Ok: 0, Warning: 0, Error: 0, Skipped: 0}
	for _, so := range o.ScenarioOutcomes {
		for _, st := range so.StepOutcomes {
			counts[st.Status]++
		}
	}
	return counts
}

// Duration sums the recorded step durations.
func (o *FeatureOutcome) Duration() time.Duration {
	var total time.Duration
	for _, so := range o.ScenarioOutcomes {
		for _, st := range so.StepOutcomes {
			total += st.Duration
		}
	}
	return total
}

// Passed reports whether the run finished without a failed step or a fatal
// hook error.
func (o *FeatureOutcome) Passed() bool {
	return o.Status != Error
}

// TimeoutError is returned for a step that did not settle before its
// definition's timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout after %d milliseconds.", e.Timeout.Milliseconds())
}

// PanicError wraps a value recovered from a step callback or hook.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

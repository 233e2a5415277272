package parser

import (
	"fmt"
	"sync"

	"github.com/chriserin/pickle/internal/step"
)

type Feature struct {
	Tags            []string     `json:"tags,omitempty"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	BackgroundSteps []*step.Step `json:"backgroundSteps"`
	Scenarios       []*Scenario  `json:"scenarios"`
}

type Scenario struct {
	ID             int          `json:"id"`
	Tags           []string     `json:"tags,omitempty"`
	Name           string       `json:"name"`
	Steps          []*step.Step `json:"steps"`
	IsOutline      bool         `json:"isOutline,omitempty"`
	Line           int          `json:"line"`                     // 1-based line of the Scenario: header
	NextScenarioID int          `json:"nextScenarioId,omitempty"` // 0 on the last scenario
}

// FindStep looks a step up by id across the background and every scenario.
func (f *Feature) FindStep(id int) (*step.Step, bool) {
	for _, st := range f.BackgroundSteps {
		if st.ID == id {
			return st, true
		}
	}
	for _, sc := range f.Scenarios {
		for _, st := range sc.Steps {
			if st.ID == id {
				return st, true
			}
		}
	}
	return nil, false
}

func (f *Feature) FindScenario(id int) (*Scenario, bool) {
	for _, sc := range f.Scenarios {
		if sc.ID == id {
			return sc, true
		}
	}
	return nil, false
}

// IDs hands out step and scenario identifiers. Both sequences start at 1 and
// only go back to zero through Reset.
type IDs struct {
	mu       sync.Mutex
	step     int
	scenario int
}

func (ids *IDs) NextStep() int {
	ids.mu.Lock()
	defer ids.mu.Unlock()
	ids.step++
	return ids.step
}

func (ids *IDs) NextScenario() int {
	ids.mu.Lock()
	defer ids.mu.Unlock()
	ids.scenario++
	return ids.scenario
}

// Reset zeroes both sequences. Never call it while a feature is loading.
func (ids *IDs) Reset() {
	ids.mu.Lock()
	defer ids.mu.Unlock()
	ids.step = 0
	ids.scenario = 0
}

type ParseError struct {
	Line    int
	Text    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

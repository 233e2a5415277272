package executor

import (
	"context"
	"sync"

	"github.com/chriserin/pickle/internal/parser"
	"github.com/chriserin/pickle/internal/step"
)

type (
	BeforeFeatureFunc  func(ctx context.Context, f *parser.Feature) error
	AfterFeatureFunc   func(ctx context.Context, f *parser.Feature, o *FeatureOutcome) error
	BeforeScenarioFunc func(c *step.Context, sc *parser.Scenario) error
	AfterScenarioFunc  func(c *step.Context, sc *parser.Scenario, o *ScenarioOutcome) error
	BeforeStepFunc     func(c *step.Context, sc *parser.Scenario, st *step.Step) error
	AfterStepFunc      func(c *step.Context, sc *parser.Scenario, st *step.Step, o *StepOutcome)
)

// Hooks holds one optional callback per lifecycle point. Setting a slot
// replaces the previous callback and setting nil clears it.
type Hooks struct {
	mu             sync.RWMutex
	beforeFeature  BeforeFeatureFunc
	afterFeature   AfterFeatureFunc
	beforeScenario BeforeScenarioFunc
	afterScenario  AfterScenarioFunc
	beforeStep     BeforeStepFunc
	afterStep      AfterStepFunc
}

func (h *Hooks) SetBeforeFeature(fn BeforeFeatureFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeFeature = fn
}

func (h *Hooks) SetAfterFeature(fn AfterFeatureFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterFeature = fn
}

func (h *Hooks) SetBeforeScenario(fn BeforeScenarioFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeScenario = fn
}

func (h *Hooks) SetAfterScenario(fn AfterScenarioFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterScenario = fn
}

func (h *Hooks) SetBeforeStep(fn BeforeStepFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeStep = fn
}

func (h *Hooks) SetAfterStep(fn AfterStepFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterStep = fn
}

// Clear empties every slot.
func (h *Hooks) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeFeature = nil
	h.afterFeature = nil
	h.beforeScenario = nil
	h.afterScenario = nil
	h.beforeStep = nil
	h.afterStep = nil
}

type hookSet struct {
	beforeFeature  BeforeFeatureFunc
	afterFeature   AfterFeatureFunc
	beforeScenario BeforeScenarioFunc
	afterScenario  AfterScenarioFunc
	beforeStep     BeforeStepFunc
	afterStep      AfterStepFunc
}

func (h *Hooks) snapshot() hookSet {
	if h == nil {
		return hookSet{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return hookSet{
		beforeFeature:  h.beforeFeature,
		afterFeature:   h.afterFeature,
		beforeScenario: h.beforeScenario,
		afterScenario:  h.afterScenario,
		beforeStep:     h.beforeStep,
		afterStep:      h.afterStep,
	}
}

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chriserin/pickle/internal/executor"
)

// Bridge is the flat JSON snapshot of a run consumed by external dashboards.
type Bridge struct {
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	FeatureFileContent string           `json:"featureFileContent"`
	StatusCount        StatusCount      `json:"statusCount"`
	Scenarios          []BridgeScenario `json:"scenarios"`
}

type StatusCount struct {
	Ok      int `json:"ok"`
	Error   int `json:"error"`
	Warning int `json:"warning"`
	Skipped int `json:"skipped"`
}

type BridgeScenario struct {
	Status executor.Status `json:"status"`
	Name   string          `json:"name"`
	Steps  []BridgeStep    `json:"steps"`
}

type BridgeStep struct {
	Name       string          `json:"name"`
	Status     executor.Status `json:"status"`
	FilePath   string          `json:"filePath"`
	DurationMs int64           `json:"durationMs"`
	ErrorStack string          `json:"errorStack,omitempty"`
}

// NewBridge builds the snapshot. source is the feature file text.
func NewBridge(o *executor.FeatureOutcome, source string) *Bridge {
	counts := o.Counts()
	b := &Bridge{
		Name:               o.Feature.Name,
		Description:        o.Feature.Description,
		FeatureFileContent: source,
		StatusCount: StatusCount{
			Ok:      counts[executor.Ok],
			Error:   counts[executor.Error],
			Warning: counts[executor.Warning],
			Skipped: counts[executor.Skipped],
		},
		Scenarios: make([]BridgeScenario, 0, len(o.ScenarioOutcomes)),
	}

	for _, so := range o.ScenarioOutcomes {
		sc := BridgeScenario{Status: executor.Ok, Name: so.Scenario.Name}
		for _, st := range so.StepOutcomes {
			bs := BridgeStep{
				Name:       st.Step.Line(),
				Status:     st.Status,
				DurationMs: st.Duration.Milliseconds(),
			}
			if st.Step.Definition != nil {
				bs.FilePath = st.Step.Definition.Location
			}
			if st.Err != nil {
				bs.ErrorStack = st.Err.Error()
			}
			if st.Status == executor.Error {
				sc.Status = executor.Error
			}
			sc.Steps = append(sc.Steps, bs)
		}
		b.Scenarios = append(b.Scenarios, sc)
	}
	return b
}

func WriteBridge(w io.Writer, o *executor.FeatureOutcome, source string) error {
	if err := json.NewEncoder(w).Encode(NewBridge(o, source)); err != nil {
		return fmt.Errorf("encoding bridge json: %w", err)
	}
	return nil
}

// WriteBridgeFile writes the snapshot to path, creating parent directories.
func WriteBridgeFile(path string, o *executor.FeatureOutcome, source string) error {
	return writeFile(path, func(w io.Writer) error { return WriteBridge(w, o, source) })
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

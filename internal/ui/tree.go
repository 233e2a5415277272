package ui

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/chriserin/pickle/internal/executor"
	"github.com/chriserin/pickle/internal/step"
)

// FeatureTree prints the outcome as a tree: one branch per scenario, one leaf
// per step, error text under failed steps, then the result line.
func FeatureTree(w io.Writer, o *executor.FeatureOutcome) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, boldStyle.Render("Feature: "+o.Feature.Name))

	for i, so := range o.ScenarioOutcomes {
		last := i == len(o.ScenarioOutcomes)-1
		branch, trunk := "├", "│"
		if last {
			branch, trunk = "└", " "
		}

		fmt.Fprintln(w, "│")
		fmt.Fprintln(w, branch+"─ "+statusStyle(so.Status).Render(Symbol(so.Status)+" Scenario: "+so.Scenario.Name))

		for j, st := range so.StepOutcomes {
			leaf := "├"
			if j == len(so.StepOutcomes)-1 {
				leaf = "└"
			}
			fmt.Fprintln(w, trunk+"  "+stepLine(leaf, st))
			if st.Status == executor.Error && st.Err != nil {
				for _, line := range strings.Split(st.Err.Error(), "\n") {
					fmt.Fprintln(w, trunk+"  "+errorStyle.Render("│ "+line))
				}
			}
		}
	}

	if o.Err != nil && len(o.ScenarioOutcomes) == 0 {
		fmt.Fprintln(w, errorStyle.Render("✘ "+o.Err.Error()))
	}
	SummaryLine(w, o.Counts(), o.Duration())
}

func stepLine(leaf string, o *executor.StepOutcome) string {
	style := statusStyle(o.Status)
	parts := []string{
		style.Render(leaf + "─ " + Symbol(o.Status)),
		keywordStyle.Render(o.Step.Keyword.Title()),
		style.Render(o.Step.Text),
		durationStyle.Render(Duration(o.Duration)),
	}
	if loc := location(o.Step); loc != "" {
		parts = append(parts, faintStyle.Render(loc))
	}
	return strings.Join(parts, " ")
}

func location(st *step.Step) string {
	if st.Definition == nil {
		return ""
	}
	return st.Definition.Location
}

// SummaryLine prints "Test result: ok/total (pct%) duration" under a rule of
// the same width.
func SummaryLine(w io.Writer, counts map[executor.Status]int, d time.Duration) {
	total := 0
	for _, n := range counts {
		total += n
	}
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(counts[executor.Ok]) * 100 / float64(total)))
	}
	result := fmt.Sprintf("Test result: %d/%d (%d%%) %s", counts[executor.Ok], total, pct, Duration(d))
	fmt.Fprintln(w, underline.Render(strings.Repeat("_", len(result))))
	fmt.Fprintln(w, result)
}

// Definitions lists registered steps with their timeout and location.
func Definitions(w io.Writer, defs []*step.Definition) {
	if len(defs) == 0 {
		fmt.Fprintln(w, "no steps registered")
		return
	}
	for _, d := range defs {
		line := keywordStyle.Render(step.PatternString(d.Pattern)) + "  " + durationStyle.Render(Duration(d.Timeout))
		if d.Location != "" {
			line += "  " + faintStyle.Render(d.Location)
		}
		fmt.Fprintln(w, line)
	}
}

// RunRow prints one line of run history.
func RunRow(w io.Writer, id string, started time.Time, feature string, status executor.Status, ok, total int, d time.Duration) {
	fmt.Fprintf(w, "%s  %s  %s  %s  %d/%d  %s\n",
		faintStyle.Render(id),
		started.Local().Format("2006-01-02 15:04:05"),
		statusStyle(status).Render(Symbol(status)+" "+status.String()),
		feature,
		ok, total,
		Duration(d))
}

// StepRow prints one recorded step of a past run.
func StepRow(w io.Writer, scenario, line string, status executor.Status, d time.Duration, errText string) {
	style := statusStyle(status)
	fmt.Fprintln(w, style.Render(Symbol(status))+" "+faintStyle.Render(scenario+":")+" "+style.Render(line)+" "+durationStyle.Render(Duration(d)))
	if errText != "" {
		fmt.Fprintln(w, errorStyle.Render("  │ "+errText))
	}
}

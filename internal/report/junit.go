package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/chriserin/pickle/internal/executor"
)

type testSuites struct {
	XMLName xml.Name    `xml:"testsuites"`
	Suites  []testSuite `xml:"testsuite"`
}

type testSuite struct {
	Name       string     `xml:"name,attr"`
	Tests      int        `xml:"tests,attr"`
	Errors     int        `xml:"errors,attr"`
	Failures   int        `xml:"failures,attr"`
	Skipped    int        `xml:"skipped,attr"`
	Time       string     `xml:"time,attr"`
	Properties struct{}   `xml:"properties"`
	Cases      []testCase `xml:"testcase"`
}

type testCase struct {
	ClassName string    `xml:"classname,attr"`
	Name      string    `xml:"name,attr"`
	Time      string    `xml:"time,attr"`
	Failure   *failure  `xml:"failure,omitempty"`
	Skipped   *struct{} `xml:"skipped,omitempty"`
}

type failure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnit renders one testsuite per scenario and one testcase per step.
// Suites are named "feature;scenario" using the stub form of both names.
func WriteJUnit(w io.Writer, o *executor.FeatureOutcome) error {
	doc := testSuites{}
	for _, so := range o.ScenarioOutcomes {
		suite := testSuite{
			Name:  Stub(o.Feature.Name) + ";" + Stub(so.Scenario.Name),
			Tests: len(so.StepOutcomes),
		}
		var total time.Duration
		for _, st := range so.StepOutcomes {
			tc := testCase{
				ClassName: Stub(st.Step.Text),
				Name:      st.Step.Text,
				Time:      seconds(st.Duration),
			}
			switch st.Status {
			case executor.Error:
				suite.Failures++
				text := ""
				if st.Err != nil {
					text = st.Err.Error()
				}
				tc.Failure = &failure{Message: "Error", Text: text}
			case executor.Skipped:
				suite.Skipped++
				tc.Skipped = &struct{}{}
			}
			total += st.Duration
			suite.Cases = append(suite.Cases, tc)
		}
		suite.Time = seconds(total)
		doc.Suites = append(doc.Suites, suite)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteJUnitFile writes the report to path, creating parent directories.
func WriteJUnitFile(path string, o *executor.FeatureOutcome) error {
	return writeFile(path, func(w io.Writer) error { return WriteJUnit(w, o) })
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Milliseconds())/1000, 'f', -1, 64)
}

// Stub lower-cases s and joins its words with underscores, e.g.
// "User logs in" becomes "user_logs_in".
func Stub(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "_")
}

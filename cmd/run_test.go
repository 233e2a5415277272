package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriserin/pickle/internal/config"
	"github.com/chriserin/pickle/internal/db"
	"github.com/chriserin/pickle/internal/step"
	"github.com/chriserin/pickle/internal/suite"
)

const calculatorFeature = `Feature: Calculator
  Background:
    Given a calculator
  Scenario: Add
    When I add 2 and 3
    Then the result is 5
`

func newSuite() *suite.Suite {
	s := suite.New()
	s.Step("a calculator", func(c *step.Context, _ ...any) error {
		c.Set("result", 0)
		return nil
	})
	s.Step("I add {int} and {int}", func(c *step.Context, args ...any) error {
		c.Set("result", args[0].(int)+args[1].(int))
		return nil
	})
	s.Step("the result is {int}", func(c *step.Context, args ...any) error {
		v, _ := c.Get("result")
		if v != args[0] {
			return fmt.Errorf("expected %v, got %v", args[0], v)
		}
		return nil
	})
	return s
}

func writeFeature(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calculator.feature")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, code, exitErr.Code)
}

func TestRun_PassingFeature(t *testing.T) {
	opts := config.Defaults()
	opts.Feature = writeFeature(t, calculatorFeature)

	var buf bytes.Buffer
	require.NoError(t, RunRun(context.Background(), &buf, newSuite(), opts))

	out := buf.String()
	assert.Contains(t, out, "Feature: Calculator")
	assert.Contains(t, out, "✔ Scenario: Add")
	assert.Contains(t, out, "Given a calculator")
	assert.Contains(t, out, "Test result: 3/3 (100%)")
}

func TestRun_FailingFeatureExitsOne(t *testing.T) {
	opts := config.Defaults()
	opts.Feature = writeFeature(t, strings.Replace(calculatorFeature, "is 5", "is 6", 1))

	var buf bytes.Buffer
	err := RunRun(context.Background(), &buf, newSuite(), opts)
	requireExitCode(t, err, 1)
	assert.EqualError(t, err, `feature "Calculator" failed`)

	out := buf.String()
	assert.Contains(t, out, "✘ Scenario: Add")
	assert.Contains(t, out, "expected 6, got 5")
	assert.Contains(t, out, "Test result: 2/3 (67%)")
}

func TestRun_FeatureRequired(t *testing.T) {
	var buf bytes.Buffer
	err := RunRun(context.Background(), &buf, newSuite(), config.Defaults())
	requireExitCode(t, err, 1)
	assert.EqualError(t, err, "feature file path is required")
}

func TestRun_LoadErrorIsReported(t *testing.T) {
	opts := config.Defaults()
	opts.Feature = writeFeature(t, "Feature: Calculator\n  Scenario: Divide\n    When I divide by zero\n")

	var buf bytes.Buffer
	err := RunRun(context.Background(), &buf, newSuite(), opts)
	requireExitCode(t, err, 1)
	assert.Contains(t, buf.String(), "unsupported step 'When I divide by zero'")
}

func TestRun_WritesReports(t *testing.T) {
	dir := t.TempDir()
	opts := config.Defaults()
	opts.Feature = writeFeature(t, calculatorFeature)
	opts.JUnitOutput = filepath.Join(dir, "reports", "junit.xml")
	opts.JSONOutput = filepath.Join(dir, "reports", "feature.json")

	var buf bytes.Buffer
	require.NoError(t, RunRun(context.Background(), &buf, newSuite(), opts))

	xml, err := os.ReadFile(opts.JUnitOutput)
	require.NoError(t, err)
	assert.Contains(t, string(xml), `name="calculator;add"`)

	data, err := os.ReadFile(opts.JSONOutput)
	require.NoError(t, err)
	var snapshot struct {
		Name               string `json:"name"`
		FeatureFileContent string `json:"featureFileContent"`
	}
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, "Calculator", snapshot.Name)
	assert.Equal(t, calculatorFeature, snapshot.FeatureFileContent)

	assert.Contains(t, buf.String(), "wrote junit  "+opts.JUnitOutput)
	assert.Contains(t, buf.String(), "wrote json  "+opts.JSONOutput)
}

func TestRun_RecordsHistory(t *testing.T) {
	opts := config.Defaults()
	opts.Feature = writeFeature(t, calculatorFeature)
	opts.HistoryDB = filepath.Join(t.TempDir(), "nested", "history.db")

	var buf bytes.Buffer
	require.NoError(t, RunRun(context.Background(), &buf, newSuite(), opts))

	sqlDB, err := db.Open(opts.HistoryDB)
	require.NoError(t, err)
	runs, err := db.NewStore(sqlDB).Recent(context.Background(), 10)
	sqlDB.Close()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, buf.String(), "wrote run "+runs[0].ID)

	var list bytes.Buffer
	require.NoError(t, RunHistory(context.Background(), &list, opts.HistoryDB, "", 20))
	assert.Contains(t, list.String(), runs[0].ID)
	assert.Contains(t, list.String(), "Calculator")
	assert.Contains(t, list.String(), "3/3")

	var steps bytes.Buffer
	require.NoError(t, RunHistory(context.Background(), &steps, opts.HistoryDB, runs[0].ID, 20))
	assert.Contains(t, steps.String(), "Add: When I add 2 and 3")
	assert.Contains(t, steps.String(), "Add: Then the result is 5")
}

func TestHistory_NoDatabase(t *testing.T) {
	var buf bytes.Buffer
	err := RunHistory(context.Background(), &buf, filepath.Join(t.TempDir(), "missing.db"), "", 20)
	require.NoError(t, err)
	assert.Equal(t, "no runs recorded\n", buf.String())
}

func TestHistory_UnknownRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sqlDB, err := db.Open(path)
	require.NoError(t, err)
	sqlDB.Close()

	var buf bytes.Buffer
	err = RunHistory(context.Background(), &buf, path, "nope", 20)
	requireExitCode(t, err, 1)
	assert.EqualError(t, err, "run nope not found")
}

func TestCheck(t *testing.T) {
	opts := config.Defaults()
	opts.Feature = writeFeature(t, calculatorFeature)

	var buf bytes.Buffer
	require.NoError(t, RunCheck(&buf, newSuite(), opts))
	assert.Contains(t, buf.String(), "✔ "+opts.Feature)
	assert.Contains(t, buf.String(), "(1 scenarios, 3 steps)")
}

func TestCheck_ReportsParseErrors(t *testing.T) {
	opts := config.Defaults()
	opts.Feature = writeFeature(t, "Feature: One\nFeature: Two\n")

	var buf bytes.Buffer
	err := RunCheck(&buf, newSuite(), opts)
	requireExitCode(t, err, 1)
	assert.Contains(t, buf.String(), "multiple features per file are not allowed")
}

func TestSteps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunSteps(&buf, newSuite()))

	out := buf.String()
	assert.Contains(t, out, "a calculator")
	assert.Contains(t, out, "I add {int} and {int}")
	assert.Contains(t, out, "1m")
	assert.Contains(t, out, "run_test.go:")
}

func TestSteps_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunSteps(&buf, suite.New()))
	assert.Equal(t, "no steps registered\n", buf.String())
}

func TestSteps_Duplicate(t *testing.T) {
	s := newSuite()
	s.Step("a calculator", func(*step.Context, ...any) error { return nil })

	var buf bytes.Buffer
	err := RunSteps(&buf, s)
	requireExitCode(t, err, 1)
	assert.Contains(t, buf.String(), "duplicate step definition")
}

func TestResolveOptions_FlagsOverrideFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pickle.yaml"), []byte(`feature: from-file.feature
junit_output: file.xml
debug_port: 4000
`), 0o644))

	prev := junitFlag
	t.Cleanup(func() { junitFlag = prev })

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&junitFlag, "junit", "", "")
	require.NoError(t, cmd.Flags().Set("junit", "flag.xml"))

	opts, err := resolveOptions(cmd, []string{"arg.feature"})
	require.NoError(t, err)
	assert.Equal(t, "arg.feature", opts.Feature)
	assert.Equal(t, "flag.xml", opts.JUnitOutput)
	assert.Equal(t, 4000, opts.DebugPort)

	opts, err = resolveOptions(&cobra.Command{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-file.feature", opts.Feature)
	assert.Equal(t, "file.xml", opts.JUnitOutput)
}

func TestNewLogger_TeesToFile(t *testing.T) {
	opts := config.Defaults()
	opts.LogFile = filepath.Join(t.TempDir(), "logs", "pickle.log")

	var stderr bytes.Buffer
	logger, closeLog, err := newLogger(&stderr, opts)
	require.NoError(t, err)
	logger.Info("feature loaded", "scenarios", 2)
	logger.Debug("hidden")
	closeLog()

	data, err := os.ReadFile(opts.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "feature loaded")
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, stderr.String(), "scenarios=2")
}

func TestConfigure_AppliesTimeout(t *testing.T) {
	s := newSuite()
	opts := config.Defaults()
	opts.Timeout = 3 * time.Second

	var stderr bytes.Buffer
	logger, _, err := newLogger(&stderr, opts)
	require.NoError(t, err)
	configure(s, opts, logger)
	require.NoError(t, s.Flush())

	for _, d := range s.Definitions() {
		assert.Equal(t, 3*time.Second, d.Timeout)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var listeningAddr = regexp.MustCompile(`http://(\S+)`)

func waitFor(t *testing.T, buf *syncBuffer, pattern string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if out := buf.String(); strings.Contains(out, pattern) {
			return out
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never contained %q:\n%s", pattern, buf.String())
	return ""
}

func TestRunDebug_ServesAndReloads(t *testing.T) {
	opts := config.Defaults()
	opts.Feature = writeFeature(t, calculatorFeature)
	opts.DebugPort = 0
	opts.Watch = true

	s := newSuite()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var buf syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- RunDebug(ctx, &buf, s, opts)
	}()

	out := waitFor(t, &buf, "http://")
	m := listeningAddr.FindStringSubmatch(out)
	require.Len(t, m, 2)

	resp, err := http.Get("http://" + m[1] + "/api/feature")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(opts.Feature, []byte(calculatorFeature+`  Scenario: Add again
    When I add 1 and 1
    Then the result is 2
`), 0o644))

	waitFor(t, &buf, "reloaded")
	assert.Len(t, s.Feature().Scenarios, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("debugger did not stop")
	}
}

func TestRun_DebugOptionServesDebugger(t *testing.T) {
	opts := config.Defaults()
	opts.Feature = writeFeature(t, calculatorFeature)
	opts.DebugPort = 0
	opts.Debug = true

	ctx, cancel := context.WithCancel(context.Background())
	var buf syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- RunRun(ctx, &buf, newSuite(), opts)
	}()

	waitFor(t, &buf, "debugger listening on")
	assert.NotContains(t, buf.String(), "Test result")
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("debugger did not stop")
	}
}

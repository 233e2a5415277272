package step

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriserin/pickle/internal/expression"
)

func noop(*Context, ...any) error { return nil }

func newRegistry(opts ...RegistryOption) *Registry {
	return NewRegistry(expression.NewTypes(), opts...)
}

func TestRegister_DeferredUntilFlush(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("a user"), Options{}, noop, "steps.go:1")

	assert.Equal(t, 1, r.Pending())
	_, err := r.Resolve("Given a user")
	require.ErrorIs(t, err, ErrUnsupportedStep)

	require.NoError(t, r.Flush())
	assert.Equal(t, 0, r.Pending())

	def, err := r.Resolve("Given a user")
	require.NoError(t, err)
	assert.Equal(t, "a user", def.Pattern.String())
}

func TestRegister_DefaultTimeout(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("a user"), Options{}, noop, "")
	r.Register(expression.StringPattern("a slow user"), Options{Timeout: 10 * time.Millisecond}, noop, "")
	require.NoError(t, r.Flush())

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, DefaultTimeout, defs[0].Timeout)
	assert.Equal(t, 10*time.Millisecond, defs[1].Timeout)
}

func TestFlush_DuplicateIsError(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("a user"), Options{}, noop, "a.go:1")
	r.Register(expression.StringPattern("a user"), Options{}, noop, "b.go:2")

	err := r.Flush()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateStep))
	assert.Contains(t, err.Error(), "b.go:2")
	assert.Empty(t, r.Definitions())
}

func TestFlush_DuplicateWarnOnlyKeepsFirst(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := newRegistry(WithWarnDuplicates(true), WithLogger(logger))
	r.Register(expression.StringPattern("a user"), Options{}, noop, "a.go:1")
	r.Register(expression.StringPattern("a user"), Options{}, noop, "b.go:2")

	require.NoError(t, r.Flush())
	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "a.go:1", defs[0].Location)
	assert.Contains(t, buf.String(), "step is defined multiple times")
}

func TestFlush_RegexAndStringWithSameTextAreDistinct(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("a user"), Options{}, noop, "")
	r.Register(expression.Regex("a user"), Options{}, noop, "")

	require.NoError(t, r.Flush())
	assert.Len(t, r.Definitions(), 2)
}

func TestFlush_UnknownParameterType(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("I pick {colour}"), Options{}, noop, "")

	err := r.Flush()
	require.Error(t, err)
	assert.ErrorIs(t, err, expression.ErrUnknownParameterType)
}

func TestFlush_InvalidRegexNamesLocation(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("a user"), Options{}, noop, "steps.go:3")
	r.Register(expression.Regex(`^unclosed (group$`), Options{}, noop, "steps.go:9")

	err := r.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps.go:9")
	assert.Contains(t, err.Error(), "missing closing )")

	_, err = r.Resolve("Given a user")
	assert.ErrorIs(t, err, ErrUnsupportedStep)
}

func TestResolve_UnsupportedStepNamesLine(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Flush())

	_, err := r.Resolve("Given nobody defined this")
	require.Error(t, err)
	assert.Equal(t, "unsupported step 'Given nobody defined this'", err.Error())
}

func TestResolve_KeywordIsCaseInsensitive(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("a user"), Options{}, noop, "")
	require.NoError(t, r.Flush())

	for _, line := range []string{"GIVEN a user", "and a user", "But a user", "a user"} {
		_, err := r.Resolve(line)
		assert.NoError(t, err, line)
	}
}

func TestResolve_PrefersMostPlaceholders(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("we have {string}"), Options{}, noop, "")
	r.Register(expression.StringPattern("we have {string} and {string}"), Options{}, noop, "")
	r.Register(expression.StringPattern("we have {string} and {string} and {string}"), Options{}, noop, "")
	r.Register(expression.StringPattern("we have {string} and number {int}"), Options{}, noop, "")
	require.NoError(t, r.Flush())

	cases := map[string]string{
		`we have "string"`:            "we have {string}",
		`we have "a" and "b"`:         "we have {string} and {string}",
		`we have "a" and "b" and "c"`: "we have {string} and {string} and {string}",
		`we have "a" and number 5`:    "we have {string} and number {int}",
	}
	for line, want := range cases {
		def, err := r.Resolve(line)
		require.NoError(t, err, line)
		assert.Equal(t, want, def.Pattern.String(), line)
	}
}

func TestResolve_TieGoesToFirstRegistered(t *testing.T) {
	r := newRegistry()
	r.Register(expression.Regex(`^the count is \d+$`), Options{}, noop, "first")
	r.Register(expression.Regex(`^the count is [0-9]+$`), Options{}, noop, "second")
	require.NoError(t, r.Flush())

	def, err := r.Resolve("the count is 4")
	require.NoError(t, err)
	assert.Equal(t, "first", def.Location)
}

func TestClear(t *testing.T) {
	r := newRegistry()
	r.Register(expression.StringPattern("a user"), Options{}, noop, "")
	require.NoError(t, r.Flush())
	r.Register(expression.StringPattern("another"), Options{}, noop, "")

	r.Clear()
	assert.Empty(t, r.Definitions())
	assert.Equal(t, 0, r.Pending())
}

func TestSplitKeyword(t *testing.T) {
	kw, text, ok := SplitKeyword("  When  they log in ")
	require.True(t, ok)
	assert.Equal(t, When, kw)
	assert.Equal(t, "they log in", text)

	_, _, ok = SplitKeyword("Whenever they log in")
	assert.False(t, ok)

	_, _, ok = SplitKeyword("they log in")
	assert.False(t, ok)
}

func TestContext_WithContextSharesVariables(t *testing.T) {
	c := NewContext()
	c.Set("a", 1)

	view := c.WithContext(c.Context)
	view.Set("b", 2)

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, c.Variables())
	v, ok := view.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestDefinition_MarshalJSONTagsRegexp(t *testing.T) {
	types := expression.NewTypes()
	expr, err := types.Compile(expression.Regex(`^a (\d+)$`))
	require.NoError(t, err)

	def := &Definition{Pattern: expression.Regex(`^a (\d+)$`), Timeout: time.Second, Expression: expr}
	b, err := def.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"pattern":"regexp:^a (\\d+)$","timeoutMs":1000}`, string(b))
}

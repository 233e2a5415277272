package expression

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_NoPlaceholders(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("This test will be [green?]"))
	require.NoError(t, err)
	assert.Equal(t, `^This test will be \[green\?\]$`, expr.Regexp.String())
	assert.Empty(t, expr.Parsers)
}

func TestCompile_Placeholders(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("This test is ran for the {int} time."))
	require.NoError(t, err)
	assert.Equal(t, `^This test is ran for the (-?\d+) time\.$`, expr.Regexp.String())
	assert.Len(t, expr.Parsers, 1)

	expr, err = types.Compile(StringPattern("The result will be {string}."))
	require.NoError(t, err)
	assert.Equal(t, `^The result will be (?:"(.*?)"|'(.*?)')\.$`, expr.Regexp.String())
	assert.Len(t, expr.Parsers, 1)
}

func TestCompile_IsAnchored(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("a user"))
	require.NoError(t, err)
	assert.True(t, expr.Match("a user"))
	assert.False(t, expr.Match("a user logs in"))
	assert.False(t, expr.Match("given a user"))
}

func TestCompile_UnknownParameterType(t *testing.T) {
	types := NewTypes()

	_, err := types.Compile(StringPattern("I pick {colour}"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownParameterType))
	assert.Contains(t, err.Error(), "{colour}")
}

func TestCompile_RegexIsUnmodified(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(Regex(`^I have (\d+) (\w+)$`))
	require.NoError(t, err)
	assert.Equal(t, `^I have (\d+) (\w+)$`, expr.Regexp.String())
	assert.Empty(t, expr.Parsers)
}

func TestCompile_InvalidRegex(t *testing.T) {
	types := NewTypes()

	_, err := types.Compile(Regex(`^unclosed (group$`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing closing )")
}

func TestArgs_MixedTypes(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("Step {int} with {decimal} many {string} expressions."))
	require.NoError(t, err)

	args, err := expr.Args(`Step 1234 with -6.4 many "lol" expressions.`)
	require.NoError(t, err)
	assert.Equal(t, []any{1234, -6.4, "lol"}, args)
}

func TestArgs_Integers(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("Step {int} with {int} integers."))
	require.NoError(t, err)

	args, err := expr.Args("Step 1 with -2 integers.")
	require.NoError(t, err)
	assert.Equal(t, []any{1, -2}, args)
}

func TestArgs_Decimals(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("Number {decimal} divided by {decimal} gives {decimal}"))
	require.NoError(t, err)

	args, err := expr.Args("Number 10 divided by 2.5 gives 4")
	require.NoError(t, err)
	assert.Equal(t, []any{10.0, 2.5, 4.0}, args)
}

func TestArgs_Strings(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("Someone once said {string} and then {string}."))
	require.NoError(t, err)

	args, err := expr.Args(`Someone once said "To be or not to be" and then 'that is "the" question'.`)
	require.NoError(t, err)
	assert.Equal(t, []any{"To be or not to be", `that is "the" question`}, args)
}

func TestArgs_EmptyString(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("the name is {string}"))
	require.NoError(t, err)

	args, err := expr.Args(`the name is ""`)
	require.NoError(t, err)
	assert.Equal(t, []any{""}, args)
}

func TestArgs_RegexReturnsRawStrings(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(Regex(`^I have (\d+) (\w+)$`))
	require.NoError(t, err)

	args, err := expr.Args("I have 5 cukes")
	require.NoError(t, err)
	assert.Equal(t, []any{"5", "cukes"}, args)
}

func TestArgs_NoMatch(t *testing.T) {
	types := NewTypes()

	expr, err := types.Compile(StringPattern("I have {int} cukes"))
	require.NoError(t, err)

	_, err = expr.Args("I have many cukes")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatch))
}

func TestDefine_CustomType(t *testing.T) {
	types := NewTypes()
	types.Define(ParameterType{
		Name:    "colour",
		Pattern: `red|green|blue`,
		Parse: func(raw string) (any, error) {
			return strings.ToUpper(raw), nil
		},
	})

	expr, err := types.Compile(StringPattern("I pick {colour} and {int}"))
	require.NoError(t, err)

	args, err := expr.Args("I pick green and 3")
	require.NoError(t, err)
	assert.Equal(t, []any{"GREEN", 3}, args)
}

func TestDefine_LastRegistrationWins(t *testing.T) {
	types := NewTypes()
	types.Define(ParameterType{
		Name:    "int",
		Pattern: `\d+`,
		Parse: func(raw string) (any, error) {
			return "n" + raw, nil
		},
	})

	expr, err := types.Compile(StringPattern("count {int}"))
	require.NoError(t, err)

	args, err := expr.Args("count 7")
	require.NoError(t, err)
	assert.Equal(t, []any{"n7"}, args)
	assert.False(t, expr.Match("count -7"))
}

func TestDefine_FragmentWithSeveralGroups(t *testing.T) {
	types := NewTypes()
	types.Define(ParameterType{
		Name:    "pair",
		Pattern: `(\d+)x(\d+)`,
		Parse: func(raw string) (any, error) {
			return raw, nil
		},
	})

	expr, err := types.Compile(StringPattern("size {pair} then {int}"))
	require.NoError(t, err)

	args, err := expr.Args("size 3x4 then 9")
	require.NoError(t, err)
	assert.Equal(t, []any{"3", 9}, args)
}

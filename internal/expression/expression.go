package expression

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
)

var (
	ErrNoMatch              = errors.New("no match")
	ErrUnknownParameterType = errors.New("unsupported expression")
)

// Parser converts one captured group into a step argument.
type Parser func(raw string) (any, error)

// ParameterType is a named placeholder usable as {name} in a string pattern.
type ParameterType struct {
	Name    string
	Pattern string
	Parse   Parser
}

// Types is the open table of parameter types. Redefining a name replaces the
// previous entry.
type Types struct {
	mu    sync.RWMutex
	types map[string]ParameterType
}

// NewTypes returns a table preloaded with int, decimal and string.
func NewTypes() *Types {
	t := &Types{types: make(map[string]ParameterType)}
	t.Define(ParameterType{
		Name:    "int",
		Pattern: `-?\d+`,
		Parse: func(raw string) (any, error) {
			return strconv.Atoi(raw)
		},
	})
	t.Define(ParameterType{
		Name:    "decimal",
		Pattern: `-?\d+(?:\.\d+)?|-?\.\d+`,
		Parse: func(raw string) (any, error) {
			return strconv.ParseFloat(raw, 64)
		},
	})
	t.Define(ParameterType{
		Name:    "string",
		Pattern: `"(.*?)"|'(.*?)'`,
		Parse: func(raw string) (any, error) {
			return raw, nil
		},
	})
	return t
}

func (t *Types) Define(pt ParameterType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.types[pt.Name] = pt
}

func (t *Types) Lookup(name string) (ParameterType, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pt, ok := t.types[name]
	return pt, ok
}

// Pattern is either a StringPattern or a RegexPattern.
type Pattern interface {
	String() string
	isPattern()
}

// StringPattern is a template with {name} placeholders.
type StringPattern string

func (p StringPattern) String() string { return string(p) }
func (StringPattern) isPattern()       {}

// RegexPattern is a regular expression used as-is; its capture groups become
// string arguments. It is compiled by Types.Compile.
type RegexPattern string

func Regex(expr string) RegexPattern {
	return RegexPattern(expr)
}

func (p RegexPattern) String() string { return string(p) }
func (RegexPattern) isPattern()       {}

// Expression is a compiled step pattern.
type Expression struct {
	Regexp  *regexp.Regexp
	Parsers []Parser

	// groups[i] is the submatch index feeding Parsers[i].
	groups []int
	raw    bool
}

var placeholderPattern = regexp.MustCompile(`\\\{(\w+)\\\}`)

// Compile turns a pattern into an anchored matcher plus one parser per
// placeholder, in occurrence order.
func (t *Types) Compile(p Pattern) (*Expression, error) {
	switch p := p.(type) {
	case RegexPattern:
		re, err := regexp.Compile(string(p))
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %w", string(p), err)
		}
		return &Expression{Regexp: re, raw: true}, nil
	case StringPattern:
		return t.compileString(string(p))
	default:
		return nil, fmt.Errorf("compiling expression: unsupported pattern type %T", p)
	}
}

func (t *Types) compileString(pattern string) (*Expression, error) {
	expr := &Expression{}
	escaped := regexp.QuoteMeta(pattern)

	var compileErr error
	group := 1
	source := placeholderPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		pt, ok := t.Lookup(name)
		if !ok {
			if compileErr == nil {
				compileErr = fmt.Errorf("%w {%s} in %q", ErrUnknownParameterType, name, pattern)
			}
			return match
		}
		fragment, err := regexp.Compile(pt.Pattern)
		if err != nil {
			if compileErr == nil {
				compileErr = fmt.Errorf("parameter type {%s}: %w", name, err)
			}
			return match
		}

		expr.Parsers = append(expr.Parsers, pt.Parse)
		inner := fragment.NumSubexp()
		if inner > 0 {
			expr.groups = append(expr.groups, group)
			group += inner
			return "(?:" + pt.Pattern + ")"
		}
		expr.groups = append(expr.groups, group)
		group++
		return "(" + pt.Pattern + ")"
	})
	if compileErr != nil {
		return nil, compileErr
	}

	re, err := regexp.Compile("^" + source + "$")
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", pattern, err)
	}
	expr.Regexp = re
	return expr, nil
}

// Match reports whether text satisfies the expression.
func (e *Expression) Match(text string) bool {
	return e.Regexp.MatchString(text)
}

// Args extracts typed arguments from text.
func (e *Expression) Args(text string) ([]any, error) {
	match := e.Regexp.FindStringSubmatch(text)
	if match == nil {
		return nil, fmt.Errorf("%w: %q against %s", ErrNoMatch, text, e.Regexp)
	}

	if e.raw {
		args := make([]any, 0, len(match)-1)
		for _, m := range match[1:] {
			args = append(args, m)
		}
		return args, nil
	}

	args := make([]any, 0, len(e.Parsers))
	for i, parse := range e.Parsers {
		raw := firstNonEmpty(match, e.groups[i], e.groupEnd(i))
		v, err := parse(raw)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q): %w", i+1, raw, err)
		}
		args = append(args, v)
	}
	return args, nil
}

// groupEnd returns the exclusive end of the submatch range owned by parser i.
func (e *Expression) groupEnd(i int) int {
	if i+1 < len(e.groups) {
		return e.groups[i+1]
	}
	return e.Regexp.NumSubexp() + 1
}

// firstNonEmpty picks the populated alternative when a fragment has several
// groups, such as the two quote styles of {string}.
func firstNonEmpty(match []string, from, to int) string {
	for i := from; i < to && i < len(match); i++ {
		if match[i] != "" {
			return match[i]
		}
	}
	return match[from]
}

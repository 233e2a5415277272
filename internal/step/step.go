package step

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chriserin/pickle/internal/expression"
)

// DefaultTimeout applies when a definition does not set one.
const DefaultTimeout = 60 * time.Second

// Func is a step callback. args holds the extracted arguments in placeholder
// order.
type Func func(c *Context, args ...any) error

type Options struct {
	Timeout time.Duration
}

// Definition is a registered pattern, its callback and compiled expression.
type Definition struct {
	Pattern    expression.Pattern
	Timeout    time.Duration
	Fn         Func
	Expression *expression.Expression
	Location   string // file:line of the registering call
}

// MarshalJSON renders regular expressions as "regexp:<source>" because they
// have no native JSON form.
func (d *Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pattern   string `json:"pattern"`
		TimeoutMs int64  `json:"timeoutMs"`
		Location  string `json:"location,omitempty"`
	}{
		Pattern:   PatternString(d.Pattern),
		TimeoutMs: d.Timeout.Milliseconds(),
		Location:  d.Location,
	})
}

// PatternString is the tagged textual form of a pattern.
func PatternString(p expression.Pattern) string {
	if r, ok := p.(expression.RegexPattern); ok {
		return "regexp:" + r.String()
	}
	return p.String()
}

// Type tells background steps from scenario steps.
type Type int

const (
	Background Type = iota + 1
	Scenario
)

func (t Type) String() string {
	switch t {
	case Background:
		return "background"
	case Scenario:
		return "scenario"
	default:
		return "unknown"
	}
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Keyword is the lower-cased leading word of a step line.
type Keyword string

const (
	Given Keyword = "given"
	When  Keyword = "when"
	Then  Keyword = "then"
	And   Keyword = "and"
	But   Keyword = "but"
)

var keywordPattern = regexp.MustCompile(`(?i)^(given|when|then|and|but)\b\s*(.*)$`)

// SplitKeyword separates the leading keyword from the step text.
func SplitKeyword(line string) (Keyword, string, bool) {
	m := keywordPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	return Keyword(strings.ToLower(m[1])), strings.TrimSpace(m[2]), true
}

// Title returns the keyword as written in reports, e.g. "Given".
func (k Keyword) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Step is one parsed Given/When/Then/And/But line.
type Step struct {
	ID         int         `json:"id"`
	Type       Type        `json:"type"`
	Keyword    Keyword     `json:"keyword"`
	Text       string      `json:"name"`
	Definition *Definition `json:"definition"`
	NextStepID int         `json:"nextStepId,omitempty"` // 0 on the last step of a list
}

// Line returns the step as it appeared in the feature, keyword included.
func (s *Step) Line() string {
	return s.Keyword.Title() + " " + s.Text
}

// Context is the per-scenario state handed to every step callback. It is
// also a context.Context that is cancelled when the step times out.
type Context struct {
	context.Context
	bag *bag
}

type bag struct {
	mu        sync.RWMutex
	variables map[string]any
}

func NewContext() *Context {
	return &Context{Context: context.Background(), bag: &bag{variables: make(map[string]any)}}
}

// WithContext returns a view sharing the same variables under ctx.
func (c *Context) WithContext(ctx context.Context) *Context {
	return &Context{Context: ctx, bag: c.bag}
}

func (c *Context) Get(key string) (any, bool) {
	c.bag.mu.RLock()
	defer c.bag.mu.RUnlock()
	v, ok := c.bag.variables[key]
	return v, ok
}

func (c *Context) Set(key string, value any) {
	c.bag.mu.Lock()
	defer c.bag.mu.Unlock()
	c.bag.variables[key] = value
}

// Merge copies values into the bag, overwriting existing keys.
func (c *Context) Merge(values map[string]any) {
	c.bag.mu.Lock()
	defer c.bag.mu.Unlock()
	for k, v := range values {
		c.bag.variables[k] = v
	}
}

// Variables returns a copy of the bag.
func (c *Context) Variables() map[string]any {
	c.bag.mu.RLock()
	defer c.bag.mu.RUnlock()
	out := make(map[string]any, len(c.bag.variables))
	for k, v := range c.bag.variables {
		out[k] = v
	}
	return out
}

func (k Keyword) String() string { return string(k) }

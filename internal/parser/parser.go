package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/chriserin/pickle/internal/step"
)

var (
	sectionPattern  = regexp.MustCompile(`(?i)^(feature|background|scenario\s+outline|scenario)\s*:\s*(.*)$`)
	examplesPattern = regexp.MustCompile(`(?i)^examples\s*:`)
	tagPattern      = regexp.MustCompile(`@[^@\s]+`)
)

// Resolver maps a step line to its definition.
type Resolver interface {
	Resolve(line string) (*step.Definition, error)
}

type sectionKind int

const (
	sectionFeature sectionKind = iota
	sectionBackground
	sectionScenario
	sectionOutline
)

type line struct {
	number int // 1-based
	text   string
}

type section struct {
	kind   sectionKind
	name   string
	header line
	tags   []string
	body   []line
}

// Parse turns feature text into a Feature. Every step is resolved against r
// while parsing, so an unknown step fails the whole load.
func Parse(content string, r Resolver, ids *IDs) (*Feature, error) {
	sections, err := splitSections(meaningfulLines(content))
	if err != nil {
		return nil, err
	}

	feature := &Feature{}
	seenFeature := false
	seenBackground := false

	for _, s := range sections {
		switch s.kind {
		case sectionFeature:
			if seenFeature {
				return nil, &ParseError{Line: s.header.number, Text: s.header.text, Message: "multiple features per file are not allowed"}
			}
			seenFeature = true
			feature.Name = s.name
			feature.Tags = s.tags
			feature.Description = description(s.body)

		case sectionBackground:
			if seenBackground {
				return nil, &ParseError{Line: s.header.number, Text: s.header.text, Message: "multiple Background sections are not allowed"}
			}
			seenBackground = true
			steps, err := parseSteps(s.body, step.Background, r, ids)
			if err != nil {
				return nil, err
			}
			feature.BackgroundSteps = steps

		case sectionScenario:
			sc, err := parseScenario(s.name, s.header.number, s.tags, s.body, r, ids)
			if err != nil {
				return nil, err
			}
			feature.Scenarios = append(feature.Scenarios, sc)

		case sectionOutline:
			scenarios, err := expandOutline(s, r, ids)
			if err != nil {
				return nil, err
			}
			feature.Scenarios = append(feature.Scenarios, scenarios...)
		}
	}

	for i := 0; i+1 < len(feature.Scenarios); i++ {
		feature.Scenarios[i].NextScenarioID = feature.Scenarios[i+1].ID
	}

	return feature, nil
}

// meaningfulLines drops blank lines and # comments and trims the rest.
func meaningfulLines(content string) []line {
	raw := strings.Split(content, "\n")
	lines := make([]line, 0, len(raw))
	for i, l := range raw {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line{number: i + 1, text: trimmed})
	}
	return lines
}

func splitSections(lines []line) ([]section, error) {
	var sections []section
	var pendingTags []string

	for _, l := range lines {
		if isTagLine(l.text) {
			pendingTags = append(pendingTags, parseTags(l.text)...)
			continue
		}

		m := sectionPattern.FindStringSubmatch(l.text)
		if m != nil {
			s := section{
				kind:   kindOf(m[1]),
				name:   strings.TrimSpace(m[2]),
				header: l,
				tags:   pendingTags,
			}
			pendingTags = nil
			if len(sections) == 0 && s.kind != sectionFeature {
				return nil, &ParseError{Line: l.number, Text: l.text, Message: "could not parse feature file: expected Feature: before " + m[1]}
			}
			sections = append(sections, s)
			continue
		}

		if len(sections) == 0 {
			return nil, &ParseError{Line: l.number, Text: l.text, Message: "could not parse feature file"}
		}
		last := &sections[len(sections)-1]
		last.body = append(last.body, l)
	}

	if len(sections) == 0 {
		return nil, &ParseError{Message: "could not parse feature file: no Feature: found"}
	}
	return sections, nil
}

func kindOf(keyword string) sectionKind {
	switch strings.ToLower(strings.Join(strings.Fields(keyword), " ")) {
	case "feature":
		return sectionFeature
	case "background":
		return sectionBackground
	case "scenario outline":
		return sectionOutline
	default:
		return sectionScenario
	}
}

func description(body []line) string {
	texts := make([]string, 0, len(body))
	for _, l := range body {
		texts = append(texts, l.text)
	}
	return strings.Join(texts, "\n")
}

func parseScenario(name string, header int, tags []string, body []line, r Resolver, ids *IDs) (*Scenario, error) {
	sc := &Scenario{
		ID:   ids.NextScenario(),
		Tags: tags,
		Name: name,
		Line: header,
	}
	steps, err := parseSteps(body, step.Scenario, r, ids)
	if err != nil {
		return nil, err
	}
	sc.Steps = steps
	return sc, nil
}

// parseSteps resolves each line and links the steps of this list only.
func parseSteps(body []line, typ step.Type, r Resolver, ids *IDs) ([]*step.Step, error) {
	steps := make([]*step.Step, 0, len(body))
	for _, l := range body {
		if examplesPattern.MatchString(l.text) {
			return nil, &ParseError{Line: l.number, Text: l.text, Message: "Examples: is only allowed inside a Scenario Outline"}
		}
		kw, text, ok := step.SplitKeyword(l.text)
		if !ok {
			return nil, &ParseError{Line: l.number, Text: l.text, Message: "incorrect step format: " + l.text}
		}
		def, err := r.Resolve(l.text)
		if err != nil {
			return nil, &ParseError{Line: l.number, Text: l.text, Message: err.Error(), Err: err}
		}
		steps = append(steps, &step.Step{
			ID:         ids.NextStep(),
			Type:       typ,
			Keyword:    kw,
			Text:       text,
			Definition: def,
		})
	}
	for i := 0; i+1 < len(steps); i++ {
		steps[i].NextStepID = steps[i+1].ID
	}
	return steps, nil
}

type examples struct {
	columns []string
	rows    [][]string
}

// expandOutline produces one scenario per Examples data row, with every
// <column> token replaced by that row's value.
func expandOutline(s section, r Resolver, ids *IDs) ([]*Scenario, error) {
	var template []line
	i := 0
	for ; i < len(s.body); i++ {
		if examplesPattern.MatchString(s.body[i].text) {
			break
		}
		template = append(template, s.body[i])
	}
	if i == len(s.body) {
		return nil, &ParseError{Line: s.header.number, Text: s.header.text, Message: fmt.Sprintf("scenario outline '%s' has no Examples: block", s.name)}
	}

	tables, err := parseExamples(s.body[i:])
	if err != nil {
		return nil, err
	}

	var scenarios []*Scenario
	for _, table := range tables {
		for _, row := range table.rows {
			pairs := make([]string, 0, 2*len(row))
			for c, col := range table.columns {
				pairs = append(pairs, "<"+col+">", row[c])
			}
			replacer := strings.NewReplacer(pairs...)

			body := make([]line, len(template))
			for j, l := range template {
				body[j] = line{number: l.number, text: replacer.Replace(l.text)}
			}
			sc, err := parseScenario(replacer.Replace(s.name), s.header.number, s.tags, body, r, ids)
			if err != nil {
				return nil, err
			}
			sc.IsOutline = true
			scenarios = append(scenarios, sc)
		}
	}
	return scenarios, nil
}

// parseExamples reads one or more "Examples:" blocks, each a pipe table whose
// first row names the columns.
func parseExamples(lines []line) ([]examples, error) {
	var tables []examples
	var current *examples

	for _, l := range lines {
		if examplesPattern.MatchString(l.text) {
			tables = append(tables, examples{})
			current = &tables[len(tables)-1]
			continue
		}
		cells, ok := tableRow(l.text)
		if !ok {
			return nil, &ParseError{Line: l.number, Text: l.text, Message: "expected an Examples table row: " + l.text}
		}
		if current.columns == nil {
			current.columns = cells
			continue
		}
		if len(cells) != len(current.columns) {
			return nil, &ParseError{Line: l.number, Text: l.text, Message: fmt.Sprintf("Examples row has %d cells, header has %d", len(cells), len(current.columns))}
		}
		current.rows = append(current.rows, cells)
	}

	for _, t := range tables {
		if t.columns == nil {
			return nil, &ParseError{Line: lines[0].number, Text: lines[0].text, Message: "Examples: block has no header row"}
		}
	}
	return tables, nil
}

func tableRow(text string) ([]string, bool) {
	if !strings.HasPrefix(text, "|") || !strings.HasSuffix(text, "|") || len(text) < 2 {
		return nil, false
	}
	parts := strings.Split(text[1:len(text)-1], "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells, true
}

func parseTags(text string) []string {
	return tagPattern.FindAllString(text, -1)
}

func isTagLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "@")
}

// IsParseError reports whether err came from Parse.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

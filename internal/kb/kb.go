// Package kb holds known fixes for common field problems. Issues are
// matched against symptom patterns before the model is asked, and a match
// is handed to the brainstorm prompt as reference notes.
package kb

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtin []byte

type Solution struct {
	Name     string   `json:"name" yaml:"name"`
	Commands []string `json:"commands" yaml:"commands"`
	Check    string   `json:"check,omitempty" yaml:"check"`
}

// Entry is one known problem. Symptoms are case-insensitive regular
// expressions; Category is the classifier label the problem belongs to.
type Entry struct {
	Name      string     `yaml:"name"`
	Category  string     `yaml:"category"`
	Symptoms  []string   `yaml:"symptoms"`
	Solutions []Solution `yaml:"solutions"`

	patterns []*regexp.Regexp
}

// Match is the first solution of the entry an issue matched.
type Match struct {
	Entry    string   `json:"entry"`
	Category string   `json:"category"`
	Symptom  string   `json:"symptom"`
	Solution Solution `json:"solution"`
}

// Base is immutable after construction and safe for concurrent use.
type Base struct {
	entries []Entry
}

type file struct {
	Entries []Entry `yaml:"entries"`
}

// New compiles entries. Every entry needs a name, a symptom and a solution.
func New(entries []Entry) (*Base, error) {
	var errs []error
	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("entries[%d]: name required", i))
			continue
		}
		if len(e.Symptoms) == 0 || len(e.Solutions) == 0 {
			errs = append(errs, fmt.Errorf("%s: needs symptoms and solutions", e.Name))
			continue
		}
		e.Category = strings.ToLower(strings.TrimSpace(e.Category))
		e.patterns = make([]*regexp.Regexp, 0, len(e.Symptoms))
		for _, s := range e.Symptoms {
			re, err := regexp.Compile(`(?i)` + s)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: symptom %q: %w", e.Name, s, err))
				continue
			}
			e.patterns = append(e.patterns, re)
		}
		out = append(out, e)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Base{entries: out}, nil
}

// Parse reads the YAML form: a top-level "entries" list.
func Parse(data []byte) (*Base, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	return New(f.Entries)
}

func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return Parse(data)
}

// Default is the table compiled into the binary.
func Default() *Base {
	b, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Base) Len() int {
	return len(b.entries)
}

// Match returns the first entry with a matching symptom, preferring one
// whose category equals label. Nil when nothing matches.
func (b *Base) Match(issue, label string) *Match {
	if b == nil || strings.TrimSpace(issue) == "" {
		return nil
	}
	label = strings.ToLower(label)

	var first *Match
	for _, e := range b.entries {
		for _, re := range e.patterns {
			sym := re.FindString(issue)
			if sym == "" {
				continue
			}
			m := &Match{Entry: e.Name, Category: e.Category, Symptom: sym, Solution: e.Solutions[0]}
			if label != "" && e.Category == label {
				return m
			}
			if first == nil {
				first = m
			}
			break
		}
	}
	return first
}

// Notes renders m for the prompt's reference block.
func (m *Match) Notes() string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Known fix for %q: %s\n", m.Symptom, m.Solution.Name)
	if m.Solution.Check != "" {
		fmt.Fprintf(&sb, "Check: %s\n", m.Solution.Check)
	}
	if len(m.Solution.Commands) > 0 {
		fmt.Fprintf(&sb, "Fix: %s\n", strings.Join(m.Solution.Commands, "; "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// WithNotes appends m's notes to existing retrieval text.
func WithNotes(retrieval string, m *Match) string {
	notes := m.Notes()
	switch {
	case notes == "":
		return retrieval
	case strings.TrimSpace(retrieval) == "":
		return notes
	default:
		return strings.TrimRight(retrieval, "\n") + "\n" + notes
	}
}

package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// strategy returns decoded candidate values and the number of fragments it
// found but could not decode.
type strategy struct {
	name string
	fn   func(raw string) (values []any, failures int)
}

func defaultStrategies() []strategy {
	return []strategy{
		{name: "direct", fn: directParse},
		{name: "fenced", fn: fencedParse},
		{name: "numbered", fn: numberedParse},
		{name: "sweep", fn: sweepParse},
	}
}

var wrapperKeys = []string{"ideas", "candidates", "hypotheses", "results", "items", "assessments", "data"}

// flatten turns a decoded JSON value into a list of candidate values,
// unwrapping {"ideas": [...]} style containers.
func flatten(v any) []any {
	switch t := v.(type) {
	case []any:
		var out []any
		for _, el := range t {
			if m, ok := el.(map[string]any); ok {
				if inner, ok := unwrap(m); ok {
					out = append(out, flatten(inner)...)
					continue
				}
			}
			out = append(out, el)
		}
		return out
	case map[string]any:
		if inner, ok := unwrap(t); ok {
			return flatten(inner)
		}
		return []any{t}
	default:
		return nil
	}
}

func unwrap(m map[string]any) ([]any, bool) {
	if _, ok := m["hypothesis"]; ok {
		return nil, false
	}
	if _, ok := m["id"]; ok {
		return nil, false
	}
	for _, k := range wrapperKeys {
		if arr, ok := m[k].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

func decode(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func directParse(raw string) ([]any, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, 0
	}
	v, err := decode(raw)
	if err != nil {
		return nil, 0
	}
	return flatten(v), 0
}

func fencedParse(raw string) ([]any, int) {
	var (
		values   []any
		failures int
	)
	for _, block := range fencedBlocks(raw) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		v, err := decode(block)
		if err != nil {
			failures++
			continue
		}
		values = append(values, flatten(v)...)
	}
	return values, failures
}

// fencedBlocks returns the bodies of ``` fences and of sections introduced
// by a line reading just "json". An unclosed block runs to end of input.
func fencedBlocks(raw string) []string {
	lines := strings.Split(raw, "\n")
	var blocks []string
	for i := 0; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(t, "```") && !strings.EqualFold(t, "json") {
			continue
		}
		var body []string
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
				break
			}
			body = append(body, lines[j])
		}
		blocks = append(blocks, strings.Join(body, "\n"))
		i = j
	}
	return blocks
}

// An ordinal marker ("1.", "2)") with at most a short label before the
// opening brace, which may sit on the following line.
var numberedRe = regexp.MustCompile(`(?m)^[ \t]*(?:[-*][ \t]*)?\(?\d{1,3}[.)][^\n{]{0,80}\n?[ \t]*\{`)

func numberedParse(raw string) ([]any, int) {
	var (
		values   []any
		failures int
		consumed int
	)
	for _, loc := range numberedRe.FindAllStringIndex(raw, -1) {
		start := loc[1] - 1
		if start < consumed {
			continue
		}
		obj, ok := scanObject(raw, start)
		if !ok {
			failures++
			continue
		}
		consumed = start + len(obj)
		v, err := decode(obj)
		if err != nil {
			failures++
			continue
		}
		values = append(values, flatten(v)...)
	}
	return values, failures
}

func sweepParse(raw string) ([]any, int) {
	objs, failures := objects(raw)
	var values []any
	for _, obj := range objs {
		v, err := decode(obj)
		if err != nil {
			failures++
			continue
		}
		values = append(values, flatten(v)...)
	}
	return values, failures
}

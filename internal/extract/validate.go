package extract

import (
	"strings"

	"roadnerd/internal/model"
)

// toIdea converts one decoded value into an Idea. Anything that is not an
// object, lacks hypothesis or category, or carries a field of the wrong
// type is rejected.
func toIdea(v any) (model.Idea, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return model.Idea{}, false
	}

	hypothesis, ok := stringField(m, "hypothesis")
	if !ok || hypothesis == "" {
		return model.Idea{}, false
	}
	category, ok := stringField(m, "category")
	if !ok || category == "" {
		return model.Idea{}, false
	}
	rationale, ok := stringField(m, "why", "rationale")
	if !ok {
		return model.Idea{}, false
	}
	checks, ok := stepsField(m, "checks", "verification_steps")
	if !ok {
		return model.Idea{}, false
	}
	fixes, ok := stepsField(m, "fixes", "remediation_steps")
	if !ok {
		return model.Idea{}, false
	}
	risk, ok := stringField(m, "risk", "risk_level")
	if !ok {
		return model.Idea{}, false
	}

	return model.Idea{
		Category:          strings.ToLower(category),
		Hypothesis:        hypothesis,
		Rationale:         rationale,
		VerificationSteps: checks,
		RemediationSteps:  fixes,
		Risk:              model.ParseRisk(risk),
	}, true
}

// stringField returns the first present, non-null key. ok is false only
// when that value is not a string.
func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		v, present := m[k]
		if !present || v == nil {
			continue
		}
		s, isString := v.(string)
		if !isString {
			return "", false
		}
		return strings.TrimSpace(s), true
	}
	return "", true
}

// stepsField accepts a list of strings, a single string, or a list of
// {"command": "..."} objects.
func stepsField(m map[string]any, keys ...string) ([]string, bool) {
	for _, k := range keys {
		v, present := m[k]
		if !present || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return []string{s}, true
			}
			return []string{}, true
		case []any:
			out := make([]string, 0, len(t))
			for _, el := range t {
				s, ok := stepString(el)
				if !ok {
					return nil, false
				}
				if s != "" {
					out = append(out, s)
				}
			}
			return out, true
		default:
			return nil, false
		}
	}
	return []string{}, true
}

func stepString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case map[string]any:
		for _, k := range []string{"command", "cmd"} {
			if s, ok := t[k].(string); ok {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}

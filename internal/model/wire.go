package model

// WireIdea is the JSON shape exchanged with callers over HTTP and MCP.
type WireIdea struct {
	ID         string             `json:"id"`
	Category   string             `json:"category"`
	Hypothesis string             `json:"hypothesis"`
	Why        string             `json:"why"`
	Checks     []string           `json:"checks"`
	Fixes      []string           `json:"fixes"`
	Risk       Risk               `json:"risk"`
	Evidence   []Evidence         `json:"evidence,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// ToWire converts an idea to its wire form. Step lists are never null.
func ToWire(i Idea) WireIdea {
	w := WireIdea{
		ID:         i.ID,
		Category:   i.Category,
		Hypothesis: i.Hypothesis,
		Why:        i.Rationale,
		Checks:     nonNil(i.VerificationSteps),
		Fixes:      nonNil(i.RemediationSteps),
		Risk:       i.Risk,
	}
	if w.Risk == "" {
		w.Risk = RiskMedium
	}
	if len(i.Evidence) > 0 {
		w.Evidence = make([]Evidence, len(i.Evidence))
		copy(w.Evidence, i.Evidence)
	}
	if len(i.Scores) > 0 {
		w.Scores = make(map[string]float64, len(i.Scores))
		for k, v := range i.Scores {
			w.Scores[string(k)] = v
		}
	}
	return w
}

// FromWire converts a caller-supplied candidate back into an idea.
func FromWire(w WireIdea) Idea {
	i := Idea{
		ID:                w.ID,
		Category:          w.Category,
		Hypothesis:        w.Hypothesis,
		Rationale:         w.Why,
		VerificationSteps: cloneStrings(w.Checks),
		RemediationSteps:  cloneStrings(w.Fixes),
		Risk:              ParseRisk(string(w.Risk)),
	}
	if len(w.Evidence) > 0 {
		i.Evidence = make([]Evidence, len(w.Evidence))
		copy(i.Evidence, w.Evidence)
	}
	if len(w.Scores) > 0 {
		i.Scores = make(map[Axis]float64, len(w.Scores))
		for k, v := range w.Scores {
			i.Scores[Axis(k)] = v
		}
	}
	return i
}

// ToWireAll converts a slice of ideas.
func ToWireAll(ideas []Idea) []WireIdea {
	out := make([]WireIdea, 0, len(ideas))
	for _, i := range ideas {
		out = append(out, ToWire(i))
	}
	return out
}

// FromWireAll converts caller candidates, assigning fresh ids where a
// candidate has none or repeats an id already seen.
func FromWireAll(ws []WireIdea) []Idea {
	ids := NewIDSource()
	out := make([]Idea, 0, len(ws))
	for _, w := range ws {
		i := FromWire(w)
		if i.ID == "" || !ids.Claim(i.ID) {
			i.ID = ids.Next()
		}
		out = append(out, i)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return cloneStrings(in)
}

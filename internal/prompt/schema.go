package prompt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

// candidate is the object shape the model is asked to emit. It is a subset
// of the wire form: ids, evidence and scores are never model-authored.
type candidate struct {
	Hypothesis string   `json:"hypothesis" jsonschema:"description=Single most likely root cause in one sentence"`
	Category   string   `json:"category" jsonschema:"description=Problem area such as wifi or dns or network"`
	Why        string   `json:"why,omitempty" jsonschema:"description=Short reason this fits the symptoms"`
	Checks     []string `json:"checks,omitempty" jsonschema:"description=Read-only shell commands that confirm or rule out the hypothesis"`
	Fixes      []string `json:"fixes,omitempty" jsonschema:"description=Remediation commands (never run automatically)"`
	Risk       string   `json:"risk,omitempty" jsonschema:"enum=low,enum=medium,enum=high"`
}

var schemaOnce = sync.OnceValues(func() (string, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&candidate{})
	s.Version = ""
	s.ID = ""
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal candidate schema: %w", err)
	}
	return string(data), nil
})

// Schema returns the JSON schema of one candidate object. An error here is
// a startup configuration error.
func Schema() (string, error) {
	return schemaOnce()
}

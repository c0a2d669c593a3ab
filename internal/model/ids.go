package model

import (
	"strings"

	"github.com/google/uuid"
)

// IDSource hands out short ids that are unique within one run.
// It is not safe for concurrent use; each run owns its own source.
type IDSource struct {
	seen map[string]struct{}
}

// NewIDSource returns a source that will never reissue any of existing.
func NewIDSource(existing ...string) *IDSource {
	s := &IDSource{seen: make(map[string]struct{}, len(existing))}
	for _, id := range existing {
		if id != "" {
			s.seen[id] = struct{}{}
		}
	}
	return s
}

// Next returns a fresh 8-character hex id.
func (s *IDSource) Next() string {
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if s.Claim(id) {
			return id
		}
	}
}

// Claim records id as used. It returns false when id was already taken.
func (s *IDSource) Claim(id string) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

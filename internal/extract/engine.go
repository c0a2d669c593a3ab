// Package extract recovers candidate ideas from unreliable model text. It
// never fails: malformed fragments are skipped and counted.
package extract

import (
	"go.uber.org/zap"

	"roadnerd/internal/model"
	"roadnerd/internal/textutil"
)

// maxInput caps how much model text is scanned.
const maxInput = 256 * 1024

// Tag reports how much of the request extraction satisfied.
type Tag string

const (
	TagFull    Tag = "full"
	TagPartial Tag = "partial"
	TagNone    Tag = "none"
)

// TagFor classifies got against requested.
func TagFor(got, requested int) Tag {
	switch {
	case got <= 0:
		return TagNone
	case got >= requested:
		return TagFull
	default:
		return TagPartial
	}
}

// Result is the outcome of one extraction.
type Result struct {
	Ideas []model.Idea
	Tag   Tag
	// Strategy names the strategy that produced Ideas; empty when none did.
	Strategy string
	// Discarded counts fragments that failed to decode or validate.
	Discarded int
	// Recovered is the number of valid objects before truncation to the
	// requested count.
	Recovered int
}

type Engine struct {
	strategies []strategy
	log        *zap.Logger
}

func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{strategies: defaultStrategies(), log: log.Named("extract")}
}

// Extract tries direct, fenced, numbered and sweep parsing in order. The
// first strategy yielding at least one valid idea wins. At most requested
// ideas are returned, each with a fresh id from ids.
func (e *Engine) Extract(raw string, requested int, ids *model.IDSource) Result {
	if requested < 1 {
		requested = 1
	}
	if ids == nil {
		ids = model.NewIDSource()
	}
	if len(raw) > maxInput {
		raw = textutil.ClipBytes(raw, maxInput)
	}

	res := Result{Tag: TagNone}
	for _, s := range e.strategies {
		values, discarded := s.fn(raw)
		var ideas []model.Idea
		for _, v := range values {
			idea, ok := toIdea(v)
			if !ok {
				discarded++
				continue
			}
			ideas = append(ideas, idea)
		}
		if len(ideas) == 0 {
			res.Discarded = max(res.Discarded, discarded)
			continue
		}

		res.Strategy = s.name
		res.Recovered = len(ideas)
		res.Discarded = discarded
		if len(ideas) > requested {
			ideas = ideas[:requested]
		}
		for i := range ideas {
			ideas[i].ID = ids.Next()
		}
		res.Ideas = ideas
		res.Tag = TagFor(len(ideas), requested)
		break
	}

	e.log.Debug("extraction finished",
		zap.String("strategy", res.Strategy),
		zap.String("tag", string(res.Tag)),
		zap.Int("requested", requested),
		zap.Int("recovered", res.Recovered),
		zap.Int("discarded", res.Discarded))
	return res
}

// Maps returns the JSON objects found in raw using the same strategy order,
// with wrappers unwrapped. Non-object values are dropped.
func Maps(raw string) []map[string]any {
	if len(raw) > maxInput {
		raw = textutil.ClipBytes(raw, maxInput)
	}
	for _, s := range defaultStrategies() {
		values, _ := s.fn(raw)
		var out []map[string]any
		for _, v := range values {
			if m, ok := v.(map[string]any); ok {
				out = append(out, m)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Package classify maps free-text issue descriptions to a problem category.
// It is a pure function of its rule tables: no I/O and no shared state.
package classify

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"roadnerd/internal/model"
)

const Unknown = "unknown"

// Categories is the closed label set.
var Categories = []string{
	"wifi", "dns", "network", "power", "boot", "hardware",
	"physical", "software", "user", "performance", "system",
}

// Strategy scores text against every category. Scores are in [0,1] and
// returned sorted by score descending, then label ascending. Labels with
// no signal are omitted.
type Strategy interface {
	Name() string
	Scores(text string) []model.LabelScore
}

// Classifier runs its strategies in priority order. The first strategy whose
// top score clears the threshold without a tie wins; otherwise the strongest
// sub-threshold result is returned.
type Classifier struct {
	strategies []Strategy
	threshold  float64
	topK       int
}

type Option func(*Classifier)

func WithThreshold(t float64) Option {
	return func(c *Classifier) { c.threshold = t }
}

func WithTopK(k int) Option {
	return func(c *Classifier) {
		if k > 0 {
			c.topK = k
		}
	}
}

func WithStrategies(s ...Strategy) Option {
	return func(c *Classifier) { c.strategies = s }
}

// New returns a classifier using weighted patterns first and lexical
// similarity second.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		strategies: []Strategy{NewHeuristic(), NewSimilarity()},
		threshold:  0.5,
		topK:       5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: input with no signal yields "unknown" at 0.0.
func (c *Classifier) Classify(text string) model.Classification {
	text = normalize(text)
	if text == "" {
		return model.Unknown()
	}

	var (
		best  model.Classification
		found bool
	)
	for _, s := range c.strategies {
		scores := s.Scores(text)
		if len(scores) == 0 || scores[0].Score <= 0 {
			continue
		}
		tied := len(scores) > 1 && scores[1].Score == scores[0].Score
		res := c.result(s.Name(), scores)
		if !tied && res.Confidence >= c.threshold {
			return res
		}
		if !found || res.Confidence > best.Confidence {
			best, found = res, true
		}
	}
	if !found {
		return model.Unknown()
	}
	return best
}

func (c *Classifier) result(name string, scores []model.LabelScore) model.Classification {
	if len(scores) > c.topK {
		scores = scores[:c.topK]
	}
	out := make([]model.LabelScore, len(scores))
	copy(out, scores)
	return model.Classification{
		TopLabel:   out[0].Label,
		Confidence: clamp01(out[0].Score),
		Candidates: out,
		Strategy:   name,
	}
}

// IsLowConfidence reports whether res should trigger disambiguation.
func IsLowConfidence(res model.Classification, threshold float64) bool {
	return res.TopLabel == Unknown || res.Confidence < threshold
}

// Labels returns up to k candidate labels with a positive score.
func Labels(res model.Classification, k int) []string {
	var out []string
	for _, ls := range res.Candidates {
		if len(out) == k {
			break
		}
		if ls.Score > 0 && ls.Label != Unknown {
			out = append(out, ls.Label)
		}
	}
	return out
}

func normalize(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}
	text = strings.TrimSpace(text)
	for _, r := range text {
		if unicode.IsLetter(r) {
			return text
		}
	}
	return ""
}

func sortScores(scores []model.LabelScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Label < scores[j].Label
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

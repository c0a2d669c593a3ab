package classify

import (
	"math"
	"regexp"
	"strings"

	"roadnerd/internal/model"
)

// Descriptor vocabularies for the lexical fallback. Matching is on stemmed
// tokens, so these only need base forms.
var descriptors = map[string]string{
	"wifi":        "wifi wireless wlan ssid access point signal router hotspot adapter radio airplane connect association authentication password network",
	"dns":         "dns resolve resolver resolution name lookup domain host nameserver website address browser nslookup dig query",
	"network":     "network internet ethernet cable connection connectivity gateway route dhcp address vpn proxy firewall packet ping latency",
	"power":       "power battery charger charge plug adapter outlet turn on off shutdown dead light button",
	"boot":        "boot bios uefi grub bootloader startup start kernel panic logo recovery partition login loop",
	"hardware":    "hardware ram memory disk drive ssd hdd fan motherboard usb port keyboard mouse screen display monitor device",
	"physical":    "physical drop spill liquid water coffee crack broken damage bent hinge case",
	"software":    "software application app program driver crash update upgrade install package error version library",
	"user":        "user how question help confused forgot account password expected supposed setting learn",
	"performance": "performance slow lag freeze hang cpu load memory swap hot heat temperature throttle responsive",
	"system":      "system service daemon systemd kernel log journal configuration setting permission file disk space clock time",
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "it": {}, "my": {}, "on": {}, "in": {},
	"and": {}, "or": {}, "to": {}, "of": {}, "for": {}, "with": {}, "not": {},
	"every": {}, "few": {}, "after": {}, "when": {}, "i": {}, "me": {}, "this": {},
	"that": {}, "be": {}, "was": {}, "are": {}, "at": {}, "from": {}, "but": {},
}

// Similarity scores text by cosine similarity of term-frequency vectors
// against each category's descriptor vocabulary.
type Similarity struct {
	vectors map[string]map[string]float64
}

func NewSimilarity() *Similarity {
	s := &Similarity{vectors: make(map[string]map[string]float64, len(descriptors))}
	for cat, text := range descriptors {
		s.vectors[cat] = termVector(text)
	}
	return s
}

func (s *Similarity) Name() string { return "similarity" }

func (s *Similarity) Scores(text string) []model.LabelScore {
	q := termVector(text)
	if len(q) == 0 {
		return nil
	}
	var out []model.LabelScore
	for _, cat := range Categories {
		sim := cosineSimilarity(q, s.vectors[cat])
		if sim > 0 {
			out = append(out, model.LabelScore{Label: cat, Score: round4(sim)})
		}
	}
	sortScores(out)
	return out
}

func termVector(text string) map[string]float64 {
	v := make(map[string]float64)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		v[stem(tok)]++
	}
	return v
}

// stem strips a few common English suffixes. It only has to be consistent
// between descriptors and queries.
func stem(tok string) string {
	for _, suf := range []string{"ing", "ion", "ed", "es", "s"} {
		if len(tok) > len(suf)+3 && strings.HasSuffix(tok, suf) {
			return tok[:len(tok)-len(suf)]
		}
	}
	return tok
}

func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

package classify

import (
	"regexp"
	"strings"
)

// InputType describes what kind of text the user pasted.
type InputType struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

var (
	shellPromptRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+@[a-zA-Z0-9_.-]+:~?[^$#]*[$#]`)
	logLevelRe    = regexp.MustCompile(`(ERROR|WARN|WARNING|INFO|TRACE|DEBUG)[ :\]]`)
	traceRe       = regexp.MustCompile(`(?i)(exception|traceback|stack trace|panic:|goroutine \d+)`)
	pathishRe     = regexp.MustCompile(`[/\\]|==|::`)
)

// DetectInput labels text as shell, log, error, free_text or empty.
// Only the first 50 lines are inspected.
func DetectInput(text string) InputType {
	if strings.TrimSpace(text) == "" {
		return InputType{Label: "empty", Confidence: 1}
	}

	signals := map[string]float64{"shell": 0, "log": 0, "error": 0, "free_text": 0}
	lines := strings.Split(text, "\n")
	if len(lines) > 50 {
		lines = lines[:50]
	}
	for _, ln := range lines {
		s := strings.TrimSpace(ln)
		if shellPromptRe.MatchString(s) {
			signals["shell"] += 2
		}
		if logLevelRe.MatchString(s) {
			signals["log"]++
		}
		if traceRe.MatchString(s) {
			signals["error"] += 2
		}
		if len(strings.Fields(s)) > 4 && !pathishRe.MatchString(s) {
			signals["free_text"] += 0.5
		}
	}

	label, top, total := "free_text", 0.0, 0.0
	for _, name := range []string{"shell", "log", "error", "free_text"} {
		total += signals[name]
		if signals[name] > top {
			label, top = name, signals[name]
		}
	}
	if total == 0 {
		return InputType{Label: "free_text", Confidence: 0}
	}
	return InputType{Label: label, Confidence: round4(top / total)}
}

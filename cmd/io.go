package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"roadnerd/internal/model"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/render"
)

// maxInput bounds anything read from stdin or a file.
const maxInput = 1 << 20

var errNoIssue = errors.New("describe the issue as arguments or on stdin")

// readIssue joins args, or reads stdin when args are empty or "-".
func readIssue(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok && len(args) == 0 && isTerminal(f) {
		return "", errNoIssue
	}
	data, err := io.ReadAll(io.LimitReader(stdin, maxInput))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	issue := strings.TrimSpace(string(data))
	if issue == "" {
		return "", errNoIssue
	}
	return issue, nil
}

// candidateFile accepts a bare array or an object carrying "candidates"
// or "ideas", so brainstorm --json output can be piped straight back in.
type candidateFile struct {
	Candidates []model.WireIdea `json:"candidates"`
	Ideas      []model.WireIdea `json:"ideas"`
}

// readCandidates decodes candidates from path, or stdin for "" and "-".
func readCandidates(path string, stdin io.Reader) ([]model.Idea, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxInput))
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	return parseCandidates(data)
}

func parseCandidates(data []byte) ([]model.Idea, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("no candidates given")
	}
	var wire []model.WireIdea
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
			return nil, fmt.Errorf("decode candidates: %w", err)
		}
	} else {
		var f candidateFile
		if err := json.Unmarshal([]byte(trimmed), &f); err != nil {
			return nil, fmt.Errorf("decode candidates: %w", err)
		}
		wire = f.Candidates
		if len(wire) == 0 {
			wire = f.Ideas
		}
	}
	if len(wire) == 0 {
		return nil, errors.New("no candidates given")
	}
	return model.FromWireAll(wire), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// newPrinter sizes output to the terminal when stdout is one.
func newPrinter(w io.Writer, verbose bool) *render.Printer {
	width := 0
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = cols
		}
	}
	p := render.New(w, width)
	p.Verbose = verbose
	return p
}

// show prints through fn, or opens a pager when asked and stdout is a
// terminal.
func show(w io.Writer, usePager bool, title string, verbose bool, fn func(*render.Printer)) error {
	f, ok := w.(*os.File)
	if !usePager || !ok || !isTerminal(f) {
		fn(newPrinter(w, verbose))
		return nil
	}
	width := 0
	if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
		width = cols - 4
	}
	var buf bytes.Buffer
	p := render.New(&buf, width)
	p.Verbose = verbose
	fn(p)
	return render.RunPager(title, buf.String())
}

var stageLabels = map[string]string{
	pipeline.StageClassify:     "Classifying issue...",
	pipeline.StageBrainstorm:   "Asking the model for candidate causes...",
	pipeline.StageDisambiguate: "Comparing competing categories...",
	pipeline.StageProbe:        "Running read-only checks...",
	pipeline.StageJudge:        "Ranking candidates...",
	pipeline.StageRecord:       "Recording run...",
}

// progress shows a spinner on stderr while a pipeline call runs. It is a
// no-op unless stderr is a terminal.
type progress struct {
	s *spinner.Spinner
}

func startProgress(bus *pipeline.EventBus, initial string) *progress {
	if !isTerminal(os.Stderr) {
		return &progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + initial
	if bus != nil {
		bus.Subscribe(pipeline.EventStageStart, func(e pipeline.Event) {
			if label, ok := stageLabels[e.Stage]; ok {
				s.Lock()
				s.Suffix = " " + label
				s.Unlock()
			}
		})
	}
	s.Start()
	return &progress{s: s}
}

func (p *progress) Stop() {
	if p.s != nil {
		p.s.Stop()
	}
}

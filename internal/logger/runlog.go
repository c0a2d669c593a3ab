package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"roadnerd/internal/model"
	"roadnerd/internal/textutil"
)

const MaxIssueSize = 10 * 1024 // 10KB limit

// RunLog appends one JSON line per run record to
// <dir>/llm_runs/YYYYMMDD.jsonl, keyed by the record's UTC date.
type RunLog struct {
	dir string
}

// NewRunLog creates the llm_runs directory under logDir.
func NewRunLog(logDir string) (*RunLog, error) {
	dir := filepath.Join(logDir, "llm_runs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}
	return &RunLog{dir: dir}, nil
}

// Dir is the directory holding the daily files.
func (l *RunLog) Dir() string {
	return l.dir
}

// PathFor returns the file a record stamped at ts is written to.
func (l *RunLog) PathFor(ts time.Time) string {
	return filepath.Join(l.dir, ts.UTC().Format("20060102")+".jsonl")
}

// Append writes rec as a single line.
func (l *RunLog) Append(rec model.RunRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Issue = textutil.ClipBytes(rec.Issue, MaxIssueSize)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	f, err := os.OpenFile(l.PathFor(rec.Timestamp), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}

	return nil
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"roadnerd/internal/model"
)

// RunSummary is the indexed view of a stored run record.
type RunSummary struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Operation     string    `json:"operation"`
	BackendKind   string    `json:"backend_kind"`
	Model         string    `json:"model"`
	Transport     string    `json:"transport"`
	Requested     int       `json:"requested"`
	Received      int       `json:"received"`
	Ranking       []string  `json:"ranking"`
	Label         string    `json:"label"`
	Confidence    float64   `json:"confidence"`
	Category      string    `json:"category"`
	ExtractionTag string    `json:"extraction_tag"`
	RepairFired   bool      `json:"repair_fired"`
	Fallback      bool      `json:"fallback"`
	Degraded      bool      `json:"degraded"`
	DurationMs    int64     `json:"duration_ms"`
}

// SaveRun inserts rec. Records are append-only; saving an existing id fails.
func SaveRun(db *sql.DB, rec model.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("run record has no id")
	}
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	ranking := rec.Ranking
	if ranking == nil {
		ranking = []string{}
	}
	rankingJSON, err := json.Marshal(ranking)
	if err != nil {
		return fmt.Errorf("marshal ranking: %w", err)
	}

	var label string
	var confidence float64
	if rec.Classification != nil {
		label = rec.Classification.TopLabel
		confidence = rec.Classification.Confidence
	}

	query := `INSERT INTO runs
		(id, timestamp, operation, backend_kind, model, transport, requested, received, ranking,
		 label, confidence, category, extraction_tag, repair, fallback, degraded, duration_ms, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.Exec(query,
		rec.ID,
		rec.Timestamp.UnixMilli(),
		rec.Operation,
		rec.Backend.Kind,
		rec.Backend.Model,
		rec.Backend.Transport,
		rec.RequestedCount,
		rec.Received(),
		string(rankingJSON),
		label,
		confidence,
		rec.Category,
		rec.ExtractionTag,
		boolInt(rec.RepairFired),
		boolInt(rec.Fallback),
		boolInt(rec.Degraded),
		rec.DurationMs,
		string(recordJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	return nil
}

// GetRun returns the full record, or nil when id is unknown.
func GetRun(db *sql.DB, id string) (*model.RunRecord, error) {
	var recordJSON string
	err := db.QueryRow(`SELECT record FROM runs WHERE id = ?`, id).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec model.RunRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &rec, nil
}

type QueryOpts struct {
	Limit     int
	Operation string
	Model     string
	Since     time.Duration
}

// GetRecentRuns lists run summaries, newest first.
func GetRecentRuns(db *sql.DB, opts QueryOpts) ([]RunSummary, error) {
	query := `SELECT id, timestamp, operation, COALESCE(backend_kind, ''), COALESCE(model, ''), COALESCE(transport, ''),
		requested, received, COALESCE(ranking, '[]'), COALESCE(label, ''), COALESCE(confidence, 0), COALESCE(category, ''),
		COALESCE(extraction_tag, ''), repair, fallback, degraded, duration_ms
		FROM runs`
	var args []interface{}
	var whereClauses []string

	if opts.Operation != "" {
		whereClauses = append(whereClauses, "operation = ?")
		args = append(args, opts.Operation)
	}
	if opts.Model != "" {
		whereClauses = append(whereClauses, "model = ?")
		args = append(args, opts.Model)
	}
	if opts.Since > 0 {
		whereClauses = append(whereClauses, "timestamp >= ?")
		args = append(args, time.Now().Add(-opts.Since).UnixMilli())
	}
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RunSummary
	for rows.Next() {
		var s RunSummary
		var ts int64
		var rankingJSON string
		var repair, fallback, degraded int
		if err := rows.Scan(&s.ID, &ts, &s.Operation, &s.BackendKind, &s.Model, &s.Transport,
			&s.Requested, &s.Received, &rankingJSON, &s.Label, &s.Confidence, &s.Category,
			&s.ExtractionTag, &repair, &fallback, &degraded, &s.DurationMs); err != nil {
			return nil, err
		}
		s.Timestamp = time.UnixMilli(ts)
		if err := json.Unmarshal([]byte(rankingJSON), &s.Ranking); err != nil {
			s.Ranking = []string{}
		}
		s.RepairFired, s.Fallback, s.Degraded = repair != 0, fallback != 0, degraded != 0
		items = append(items, s)
	}
	return items, rows.Err()
}

// RunStore adapts a database to the pipeline's record sink.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Append(rec model.RunRecord) error {
	return SaveRun(s.db, rec)
}

func (s *RunStore) DB() *sql.DB {
	return s.db
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SummaryOf builds the indexed view of rec without touching a database.
func SummaryOf(rec model.RunRecord) RunSummary {
	s := RunSummary{
		ID:            rec.ID,
		Timestamp:     rec.Timestamp,
		Operation:     rec.Operation,
		BackendKind:   rec.Backend.Kind,
		Model:         rec.Backend.Model,
		Transport:     rec.Backend.Transport,
		Requested:     rec.RequestedCount,
		Received:      rec.Received(),
		Ranking:       rec.Ranking,
		Category:      rec.Category,
		ExtractionTag: rec.ExtractionTag,
		RepairFired:   rec.RepairFired,
		Fallback:      rec.Fallback,
		Degraded:      rec.Degraded,
		DurationMs:    rec.DurationMs,
	}
	if rec.Classification != nil {
		s.Label = rec.Classification.TopLabel
		s.Confidence = rec.Classification.Confidence
	}
	return s
}

// ParseSince accepts Go durations plus a day suffix ("7d").
func ParseSince(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid since %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid since %q", s)
	}
	return d, nil
}

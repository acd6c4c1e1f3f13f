package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/recon/recon/internal/scan"
)

// Run is one stored pipeline execution.
type Run struct {
	ID           string        `json:"id"`
	Service      string        `json:"service"`
	Host         string        `json:"host"`
	Mode         string        `json:"mode"`
	Queries      []string      `json:"queries"`
	Found        int           `json:"found"`
	Fetched      int           `json:"fetched"`
	Scanned      int           `json:"scanned"`
	Matched      int           `json:"matched"`
	RuleWarnings []string      `json:"rule_warnings,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// Finding is one distinct match in one document field.
type Finding struct {
	DocID   string `json:"doc_id"`
	Field   string `json:"field"` // "primary" or "secondary"
	Match   string `json:"match"`
	Keyword string `json:"keyword,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// SaveRun stores run with its findings and extractions in one
// transaction. An empty run.ID is filled with NewID.
func (s *Store) SaveRun(ctx context.Context, run *Run, findings []Finding, ext *scan.ExtractionResult) error {
	if run.ID == "" {
		run.ID = NewID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	queries, err := json.Marshal(nonNil(run.Queries))
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(nonNil(run.RuleWarnings))
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, service, host, mode, queries_json, found, fetched, scanned,
		matched, rule_warnings_json, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Service, run.Host, run.Mode, string(queries), run.Found, run.Fetched,
		run.Scanned, run.Matched, string(warnings), run.StartedAt.UnixMilli(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	for _, f := range findings {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO findings (run_id, doc_id, field, matched, keyword, summary)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, f.DocID, f.Field, f.Match, f.Keyword, f.Summary)
		if err != nil {
			return fmt.Errorf("store: insert finding: %w", err)
		}
	}

	if ext != nil {
		for kind, values := range map[string][]string{"url": ext.URLs, "ip": ext.IPs} {
			for _, v := range values {
				_, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO extractions (run_id, kind, value) VALUES (?, ?, ?)`,
					run.ID, kind, v)
				if err != nil {
					return fmt.Errorf("store: insert extraction: %w", err)
				}
			}
		}
	}
	return tx.Commit()
}

const runColumns = `id, service, host, mode, queries_json, found, fetched, scanned,
	matched, rule_warnings_json, started_at, duration_ms`

// GetRun retrieves a run by ID. It returns nil, nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListRuns returns the most recent runs first. limit <= 0 means 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, by cascade, its findings and extractions.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

// Findings returns the findings of a run ordered by document, field, match.
func (s *Store) Findings(ctx context.Context, runID string) ([]Finding, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT doc_id, field, matched, keyword, summary FROM findings
		WHERE run_id = ? ORDER BY doc_id, field, matched`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Finding
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.DocID, &f.Field, &f.Match, &f.Keyword, &f.Summary); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Extractions returns the URLs and IPs stored for a run, sorted.
func (s *Store) Extractions(ctx context.Context, runID string) (*scan.ExtractionResult, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT kind, value FROM extractions WHERE run_id = ? ORDER BY kind, value`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &scan.ExtractionResult{URLs: []string{}, IPs: []string{}}
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return nil, err
		}
		if kind == "url" {
			out.URLs = append(out.URLs, value)
		} else {
			out.IPs = append(out.IPs, value)
		}
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var queries, warnings string
	var started, durMs int64
	err := row.Scan(&r.ID, &r.Service, &r.Host, &r.Mode, &queries, &r.Found, &r.Fetched,
		&r.Scanned, &r.Matched, &warnings, &started, &durMs)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(queries), &r.Queries); err != nil {
		return nil, fmt.Errorf("store: run %s queries: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(warnings), &r.RuleWarnings); err != nil {
		return nil, fmt.Errorf("store: run %s warnings: %w", r.ID, err)
	}
	r.StartedAt = time.UnixMilli(started)
	r.Duration = time.Duration(durMs) * time.Millisecond
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

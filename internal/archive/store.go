// Package archive keeps a history of analysis runs in SQLite.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one archived analysis.
type Run struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	Rows         int       `json:"rows"`
	TotalSpend   float64   `json:"total_spend"`
	BaseCurrency string    `json:"base_currency"`
	Insights     []string  `json:"insights"`
	Warnings     []string  `json:"warnings,omitempty"`
	Summary      string    `json:"summary,omitempty"`
}

// FromResult captures the headline of a result under a fresh id.
func FromResult(res *analysis.Result, now time.Time) *Run {
	return &Run{
		ID:           uuid.NewString(),
		Source:       res.Source,
		CreatedAt:    now.UTC(),
		Rows:         res.KPIs.Lines,
		TotalSpend:   res.KPIs.TotalSpend,
		BaseCurrency: res.BaseCurrency,
		Insights:     append([]string(nil), res.Insights...),
		Warnings:     append([]string(nil), res.Warnings...),
	}
}

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed and applies migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts r, assigning an id and timestamp when missing.
func (s *Store) Save(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	ins, err := json.Marshal(nonNil(r.Insights))
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	warn, err := json.Marshal(nonNil(r.Warnings))
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, created_at, row_count, total_spend, base_currency, insights, warnings, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.CreatedAt.Format(time.RFC3339Nano), r.Rows, r.TotalSpend, r.BaseCurrency,
		string(ins), string(warn), r.Summary)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SetSummary attaches LLM prose to an archived run.
func (s *Store) SetSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const selectRun = `SELECT id, source, created_at, row_count, total_spend, base_currency, insights, warnings, summary FROM runs`

// Get loads one run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// List returns the newest runs first; limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r             Run
		created       string
		ins, warnings string
	)
	if err := sc.Scan(&r.ID, &r.Source, &created, &r.Rows, &r.TotalSpend, &r.BaseCurrency, &ins, &warnings, &r.Summary); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	r.CreatedAt = t
	if err := json.Unmarshal([]byte(ins), &r.Insights); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

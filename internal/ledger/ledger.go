// Package ledger keeps a SQLite table of past pipeline runs, one row per
// (run, model).
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/fracture-cli/internal/utils"
)

const schema = `CREATE TABLE IF NOT EXISTS runs (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	input        TEXT NOT NULL,
	model        TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	split        REAL NOT NULL,
	ratio        REAL NOT NULL,
	threshold    REAL NOT NULL,
	train_rows   INTEGER NOT NULL,
	test_rows    INTEGER NOT NULL,
	accuracy     REAL NOT NULL,
	sensitivity  REAL NOT NULL,
	specificity  REAL NOT NULL,
	UNIQUE (run_id, model)
)`

// Entry is one model's result within a run.
type Entry struct {
	RunID       string
	CreatedAt   time.Time
	Input       string
	Model       string
	Seed        int64
	Split       float64
	Ratio       float64
	Threshold   float64
	TrainRows   int
	TestRows    int
	Accuracy    float64
	Sensitivity float64
	Specificity float64
}

// Ledger is an open run database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("ensure ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record inserts entries in one transaction. Re-recording the same
// (run, model) replaces the earlier row.
func (l *Ledger) Record(ctx context.Context, entries ...Entry) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, created_at, input, model, seed, split, ratio, threshold, train_rows, test_rows, accuracy, sensitivity, specificity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.RunID, e.CreatedAt.UTC().Format(time.RFC3339Nano), e.Input, e.Model, e.Seed,
			e.Split, e.Ratio, e.Threshold, e.TrainRows, e.TestRows,
			e.Accuracy, e.Sensitivity, e.Specificity,
		); err != nil {
			return fmt.Errorf("insert %s/%s: %w", e.RunID, e.Model, err)
		}
	}
	return tx.Commit()
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT run_id, created_at, input, model, seed, split, ratio, threshold,
		train_rows, test_rows, accuracy, sensitivity, specificity
		FROM runs ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.RunID, &created, &e.Input, &e.Model, &e.Seed, &e.Split, &e.Ratio, &e.Threshold,
			&e.TrainRows, &e.TestRows, &e.Accuracy, &e.Sensitivity, &e.Specificity); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

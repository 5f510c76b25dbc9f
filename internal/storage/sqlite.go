// Package storage keeps a local SQLite record of the last loaded expense list
// and of every mutation attempted against the expense service.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"expensectl/internal/core"
	"expensectl/internal/log"
	"expensectl/internal/ports"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned by LatestSnapshot before any list was saved.
var ErrNoSnapshot = errors.New("no snapshot saved yet")

var (
	_ ports.SnapshotStore   = (*SQLiteStore)(nil)
	_ ports.SnapshotReader  = (*SQLiteStore)(nil)
	_ ports.MutationJournal = (*SQLiteStore)(nil)
)

type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteStore(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	logger.Info("Snapshot store opened", "db_path", dbPath, "schema_version", version)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSnapshot replaces the stored list with expenses in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, expenses []core.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_expenses"); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO snapshot_expenses (position, expense_id, description, amount, date) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range expenses {
		if _, err := stmt.ExecContext(ctx, i+1, e.ID, e.Description, e.Amount.String(), e.Date.String()); err != nil {
			return fmt.Errorf("insert snapshot row %d: %w", i+1, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (id, taken_at, expense_count) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET taken_at = excluded.taken_at, expense_count = excluded.expense_count`,
		time.Now().UTC().Format(time.RFC3339Nano), len(expenses))
	if err != nil {
		return fmt.Errorf("update snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	s.logger.DebugContext(ctx, "Snapshot saved", log.FieldCount, len(expenses))
	return nil
}

// LatestSnapshot returns the last saved list, numbered 1..N, and when it was taken.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) ([]core.Expense, time.Time, error) {
	var takenAt string
	err := s.db.QueryRowContext(ctx, "SELECT taken_at FROM snapshot_meta WHERE id = 1").Scan(&takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read snapshot meta: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, takenAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse snapshot time %q: %w", takenAt, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT position, expense_id, description, amount, date FROM snapshot_expenses ORDER BY position")
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e            core.Expense
			amount, date string
		)
		if err := rows.Scan(&e.LocalID, &e.ID, &e.Description, &amount, &date); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan snapshot row: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, time.Time{}, fmt.Errorf("snapshot row %d amount %q: %w", e.LocalID, amount, err)
		}
		if date != "" {
			if e.Date, err = core.ParseDate(date); err != nil {
				return nil, time.Time{}, fmt.Errorf("snapshot row %d: %w", e.LocalID, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate snapshot: %w", err)
	}
	return out, at, nil
}

// RecordMutation appends m to the journal.
func (s *SQLiteStore) RecordMutation(ctx context.Context, m core.Mutation) error {
	at := m.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO mutation_journal (operation, expense_id, status, applied, created_at) VALUES (?, ?, ?, ?, ?)",
		string(m.Op), m.ExpenseID, m.Status, m.Applied, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record %s mutation: %w", m.Op, err)
	}
	return nil
}

// RecentMutations returns up to limit journal entries, newest first.
func (s *SQLiteStore) RecentMutations(ctx context.Context, limit int) ([]core.Mutation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT operation, expense_id, status, applied, created_at FROM mutation_journal ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	var out []core.Mutation
	for rows.Next() {
		var (
			m      core.Mutation
			op, at string
		)
		if err := rows.Scan(&op, &m.ExpenseID, &m.Status, &m.Applied, &at); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		m.Op = core.Operation(op)
		if m.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse mutation time %q: %w", at, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

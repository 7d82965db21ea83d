// Package sqlite is a run store backed by SQLite. Runs survive a server restart,
// which lets a client finish a chain across a deploy.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/core/ports"
)

// Store is a SQLite implementation of ports.RunStore.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var (
	_ ports.RunStore = (*Store)(nil)
	_ ports.Sweeper  = (*Store)(nil)
)

// New opens (or creates) the database at dbPath. Runs expire ttl after their last write.
func New(dbPath string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, ttl: ttl, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS run_contexts (
			run_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_contexts_expires ON run_contexts(expires_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) expiry() int64 {
	return s.now().Add(s.ttl).UnixMilli()
}

func (s *Store) Create(ctx context.Context, pc *domain.PipelineContext) error {
	payload, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", pc.RunID(), err)
	}

	// An expired row with the same id is replaced; a live one makes the insert fail.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM run_contexts WHERE run_id = ? AND expires_at <= ?`,
		pc.RunID(), s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to create run %s: %w", pc.RunID(), err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_contexts (run_id, payload, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		pc.RunID(), string(payload), pc.CreatedAt(), s.expiry())
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", pc.RunID(), err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runID string) (*domain.PipelineContext, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM run_contexts WHERE run_id = ? AND expires_at > ?`,
		runID, s.now().UnixMilli()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var pc domain.PipelineContext
	if err := json.Unmarshal([]byte(payload), &pc); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &pc, nil
}

func (s *Store) Save(ctx context.Context, pc *domain.PipelineContext) error {
	payload, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", pc.RunID(), err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_contexts SET payload = ?, expires_at = ? WHERE run_id = ? AND expires_at > ?`,
		string(payload), s.expiry(), pc.RunID(), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", pc.RunID(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", pc.RunID(), err)
	}
	if n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, runID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM run_contexts WHERE run_id = ?`, runID)
	if err != nil {
		return false, fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return n > 0, nil
}

// Sweep deletes expired runs.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM run_contexts WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to sweep runs: %w", err)
	}
	return int(n), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

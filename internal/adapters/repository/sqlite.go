package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/pkg/metrics"

	_ "modernc.org/sqlite"
)

const defaultBatchSize = 500

// SQLiteStore keeps samples in a single SQLite table.
type SQLiteStore struct {
	path      string
	batchSize int

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore creates a store backed by the database file at path.
// Call Init before use.
func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{path: path, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return ErrPathRequired
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", s.path, err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS samples (
			instant_ns INTEGER PRIMARY KEY,
			state INTEGER NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return fmt.Errorf("create samples table: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveSamples(ctx context.Context, samples []model.Sample) error {
	defer observe("save", time.Now())
	db, err := s.getDB()
	if err != nil {
		return err
	}

	for start := 0; start < len(samples); start += s.batchSize {
		end := min(start+s.batchSize, len(samples))
		if err := s.saveBatch(ctx, db, samples[start:end]); err != nil {
			return err
		}
		metrics.RecordSamplesStored(end - start)
	}
	return nil
}

func (s *SQLiteStore) saveBatch(ctx context.Context, db *sql.DB, batch []model.Sample) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (instant_ns, state) VALUES (?, ?)
		ON CONFLICT(instant_ns) DO UPDATE SET state = excluded.state
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, smp := range batch {
		if _, err = stmt.ExecContext(ctx, smp.Instant.UnixNano(), boolToInt(bool(smp.State))); err != nil {
			return fmt.Errorf("insert sample %s: %w", smp.Instant.UTC().Format(time.RFC3339), err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Samples(ctx context.Context, from, to time.Time) ([]model.Sample, error) {
	defer observe("query", time.Now())
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	lo, hi := bounds(from, to)
	rows, err := db.QueryContext(ctx,
		`SELECT instant_ns, state FROM samples WHERE instant_ns >= ? AND instant_ns < ? ORDER BY instant_ns`,
		lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	out := make([]model.Sample, 0)
	for rows.Next() {
		var (
			ns    int64
			state int
		)
		if err := rows.Scan(&ns, &state); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, model.Sample{Instant: time.Unix(0, ns).UTC(), State: model.LightState(state != 0)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

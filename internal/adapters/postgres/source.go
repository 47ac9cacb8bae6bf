// Package postgres reads light events from the Hue bridge event log.
//
// The bridge stores each notification in v2events as a JSON array in the
// data column. Elements carrying an "on" object for the configured light
// are light switch events.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/pkg/logger"
)

// Defaults for the event source.
const (
	DefaultLightID = "/lights/3"
	DefaultLimit   = 100000
)

// Source streams light events from Postgres.
type Source struct {
	db      *sql.DB
	lightID string
	limit   int
	logger  logger.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts ...Option) (*Source, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return NewSource(db, opts...), nil
}

// NewSource wraps an existing connection pool.
func NewSource(db *sql.DB, opts ...Option) *Source {
	s := &Source{
		db:      db,
		lightID: DefaultLightID,
		limit:   DefaultLimit,
		logger:  logger.Get().Named("postgres"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// BuildQuery returns the event query and its arguments. from and to are
// dates; a zero value leaves that side open and to includes its whole day.
func BuildQuery(lightID string, from, to time.Time, limit int) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT v2.id, v2.creationtime, d->'on'->>'on' AS state
FROM v2events AS v2, jsonb_array_elements(v2.data) AS d
WHERE d #> '{on}' IS NOT NULL
  AND d->>'type' = 'light'
  AND d->>'id_v1' = $1`)
	args := []any{lightID}

	if !from.IsZero() {
		args = append(args, day(from))
		fmt.Fprintf(&b, "\n  AND v2.creationtime >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, day(to).AddDate(0, 0, 1))
		fmt.Fprintf(&b, "\n  AND v2.creationtime < $%d", len(args))
	}
	fmt.Fprintf(&b, "\nORDER BY v2.creationtime\nLIMIT %d", limit)
	return b.String(), args
}

// Stream calls fn for each event in [from, to] in ascending time order.
// It stops at the first error returned by fn.
func (s *Source) Stream(ctx context.Context, from, to time.Time, fn func(model.Event) error) error {
	query, args := BuildQuery(s.lightID, from, to, s.limit)
	s.logger.Debug(ctx, "querying events",
		logger.String("light", s.lightID),
		logger.Any("args", args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id    string
			at    time.Time
			state string
		)
		if err := rows.Scan(&id, &at, &state); err != nil {
			return fmt.Errorf("%w: scan: %w", ErrQuery, err)
		}
		ls, err := model.ParseLightState(state)
		if err != nil {
			return fmt.Errorf("%w: event %s: %w", ErrBadState, id, err)
		}
		if err := fn(model.Event{ID: id, Instant: asUTC(at), State: ls}); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if n == s.limit {
		s.logger.Warn(ctx, "event query hit the row limit", logger.Int("limit", s.limit))
	}
	return nil
}

// Events collects Stream into a slice.
func (s *Source) Events(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	var out []model.Event
	err := s.Stream(ctx, from, to, func(e model.Event) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// asUTC reinterprets a zone-less timestamp column as UTC.
func asUTC(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	return time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), time.UTC)
}

package safety

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// maxLoggedMessageLen caps how much of a flagged message is persisted,
// in runes.
const maxLoggedMessageLen = 2000

// EventStore persists flagged messages to PostgreSQL so crisis and
// dangerous-topic events can be reviewed later.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore.
func NewEventStore(pool *pgxpool.Pool) (*EventStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &EventStore{pool: pool}, nil
}

// Record writes one safety event.
func (s *EventStore) Record(ctx context.Context, flag Flag, detectedBy DetectedBy, reason, message string) error {
	message = truncateMessage(message)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO safety_events (flag, detected_by, reason, message)
		 VALUES ($1, $2, $3, $4)`,
		flag, detectedBy, reason, message,
	)
	if err != nil {
		return fmt.Errorf("recording safety event: %w", err)
	}
	return nil
}

// truncateMessage caps a message at maxLoggedMessageLen runes.
// Rune-boundary truncation keeps the value valid UTF-8; a split
// multibyte sequence would make Postgres reject the insert.
func truncateMessage(message string) string {
	r := []rune(message)
	if len(r) > maxLoggedMessageLen {
		return string(r[:maxLoggedMessageLen])
	}
	return message
}

// List returns the most recent events, optionally filtered by flag.
// limit <= 0 defaults to 50.
func (s *EventStore) List(ctx context.Context, flag Flag, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT id, flag, detected_by, reason, message, created_at
	          FROM safety_events`
	args := []any{}
	if flag != "" {
		query += ` WHERE flag = $1`
		args = append(args, flag)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing safety events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Flag, &e.DetectedBy, &e.Reason, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning safety event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating safety events: %w", err)
	}
	return events, nil
}

// CountByFlag returns event totals grouped by flag.
func (s *EventStore) CountByFlag(ctx context.Context) (map[Flag]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT flag, COUNT(*) FROM safety_events GROUP BY flag`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting safety events: %w", err)
	}
	defer rows.Close()

	counts := make(map[Flag]int)
	for rows.Next() {
		var flag Flag
		var n int
		if err := rows.Scan(&flag, &n); err != nil {
			return nil, fmt.Errorf("scanning safety event count: %w", err)
		}
		counts[flag] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating safety event counts: %w", err)
	}
	return counts, nil
}

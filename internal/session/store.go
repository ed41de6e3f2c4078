package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// sessionCols is the standard SELECT column list for scanSession.
const sessionCols = `id, title, audience, patient_context, created_at, updated_at`

// Store manages session persistence backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a session Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create starts a new session. An empty audience defaults to
// caregiver; patient may be nil.
func (s *Store) Create(ctx context.Context, title string, audience Audience, patient *PatientContext) (*Session, error) {
	if audience == "" {
		audience = AudienceCaregiver
	}
	if !audience.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAudience, audience)
	}
	title = truncateTitle(strings.TrimSpace(title))

	row := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (title, audience, patient_context)
		 VALUES ($1, $2, $3)
		 RETURNING `+sessionCols,
		title, audience, patient,
	)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// truncateTitle caps a title at MaxTitleLength runes. Truncating on a
// rune boundary keeps the value valid UTF-8; Postgres rejects strings
// with a split multibyte sequence.
func truncateTitle(title string) string {
	r := []rune(title)
	if len(r) > MaxTitleLength {
		return string(r[:MaxTitleLength])
	}
	return title
}

// Get returns a session with its message count. Returns ErrNotFound
// if the session does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionCols+`,
		        (SELECT COUNT(*) FROM session_messages m WHERE m.session_id = sessions.id)
		 FROM sessions WHERE id = $1`,
		id,
	)

	sess := &Session{}
	err := row.Scan(&sess.ID, &sess.Title, &sess.Audience, &sess.Patient,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// List returns sessions ordered by most recently updated.
// limit <= 0 defaults to 20.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionCols+`,
		        (SELECT COUNT(*) FROM session_messages m WHERE m.session_id = sessions.id)
		 FROM sessions
		 ORDER BY updated_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Audience, &sess.Patient,
			&sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// UpdateTitle renames a session. Returns ErrNotFound if absent.
func (s *Store) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	title = truncateTitle(strings.TrimSpace(title))
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET title = $2, updated_at = now() WHERE id = $1`,
		id, title,
	)
	if err != nil {
		return fmt.Errorf("updating session title %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch bumps a session's updated_at so it sorts first in List
// without changing anything else. Returns ErrNotFound if absent.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePatient replaces the patient context. nil clears it.
func (s *Store) UpdatePatient(ctx context.Context, id uuid.UUID, patient *PatientContext) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET patient_context = $2, updated_at = now() WHERE id = $1`,
		id, patient,
	)
	if err != nil {
		return fmt.Errorf("updating patient context %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session and, via FK cascade, its messages.
// Returns ErrNotFound if absent.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendExchange stores one user/assistant turn atomically with
// consecutive sequence numbers and bumps the session's updated_at.
//
// The per-session advisory lock serializes concurrent appends so two
// requests on the same session cannot both read the same max sequence
// number and collide on the unique constraint.
func (s *Store) AppendExchange(ctx context.Context, sessionID uuid.UUID, userInput, assistantResponse string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID.String()); err != nil {
		return fmt.Errorf("acquiring session lock: %w", err)
	}

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) + 1
		 FROM session_messages WHERE session_id = $1`,
		sessionID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("reading sequence number: %w", err)
	}

	batch := []struct {
		role    string
		content string
	}{
		{RoleUser, userInput},
		{RoleAssistant, assistantResponse},
	}
	for i, m := range batch {
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_messages (session_id, role, content, sequence_number)
			 VALUES ($1, $2, $3, $4)`,
			sessionID, m.role, m.content, next+i,
		); err != nil {
			return fmt.Errorf("inserting %s message: %w", m.role, err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, sessionID,
	)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing exchange: %w", err)
	}
	return nil
}

// Messages returns the most recent messages in conversation order.
// limit <= 0 defaults to DefaultHistoryLimit.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error) {
	limit = normalizeHistoryLimit(limit)

	// Inner query grabs the newest N; outer restores chronological order.
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, sequence_number, created_at
		 FROM (
		   SELECT id, session_id, role, content, sequence_number, created_at
		   FROM session_messages
		   WHERE session_id = $1
		   ORDER BY sequence_number DESC
		   LIMIT $2
		 ) recent
		 ORDER BY sequence_number ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.SequenceNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// History loads recent messages converted to genkit ai.Messages,
// ready to hand to generation.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*ai.Message, error) {
	messages, err := s.Messages(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return ToAIMessages(messages), nil
}

// ToAIMessages converts stored messages to genkit message structs.
// Unknown roles map to user so nothing silently disappears from
// context.
func ToAIMessages(messages []*Message) []*ai.Message {
	out := make([]*ai.Message, len(messages))
	for i, m := range messages {
		role := ai.RoleUser
		if m.Role == RoleAssistant {
			role = ai.RoleModel
		}
		out[i] = &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		}
	}
	return out
}

// normalizeHistoryLimit clamps the history limit.
func normalizeHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// scanSession reads a Session from a single row (standard column set,
// no message count).
func scanSession(row pgx.Row) (*Session, error) {
	sess := &Session{}
	if err := row.Scan(&sess.ID, &sess.Title, &sess.Audience, &sess.Patient,
		&sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return sess, nil
}

package logbook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// entryCols is the standard SELECT column list for scanEntry.
const entryCols = `id, log_date, patient_name, caregiver,
	meals, snacks, water_glasses,
	wandering, agitation, confusion,
	hours_slept, bathroom_accidents, fell_today,
	medications_taken, medications_refused,
	mood, social, activity_minutes, cognitive_activities,
	notes, created_at, updated_at`

// Store persists daily care logs.
//
// Store is safe for concurrent use; SQLite serializes writers.
type Store struct {
	db *sql.DB
}

// NewStore creates a logbook Store.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db}, nil
}

// Upsert writes an entry, replacing any existing log for the same
// date and patient. The entry's ID and timestamps are refreshed from
// the stored row.
func (s *Store) Upsert(ctx context.Context, e *Entry) error {
	if e == nil {
		return fmt.Errorf("entry is required")
	}
	e.PatientName = strings.TrimSpace(e.PatientName)
	e.Caregiver = strings.TrimSpace(e.Caregiver)
	if err := e.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_logs (
		   log_date, patient_name, caregiver,
		   meals, snacks, water_glasses,
		   wandering, agitation, confusion,
		   hours_slept, bathroom_accidents, fell_today,
		   medications_taken, medications_refused,
		   mood, social, activity_minutes, cognitive_activities, notes
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (log_date, patient_name) DO UPDATE SET
		   caregiver = excluded.caregiver,
		   meals = excluded.meals,
		   snacks = excluded.snacks,
		   water_glasses = excluded.water_glasses,
		   wandering = excluded.wandering,
		   agitation = excluded.agitation,
		   confusion = excluded.confusion,
		   hours_slept = excluded.hours_slept,
		   bathroom_accidents = excluded.bathroom_accidents,
		   fell_today = excluded.fell_today,
		   medications_taken = excluded.medications_taken,
		   medications_refused = excluded.medications_refused,
		   mood = excluded.mood,
		   social = excluded.social,
		   activity_minutes = excluded.activity_minutes,
		   cognitive_activities = excluded.cognitive_activities,
		   notes = excluded.notes,
		   updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		e.Date, e.PatientName, e.Caregiver,
		e.Meals, e.Snacks, e.WaterGlasses,
		e.Wandering, e.Agitation, e.Confusion,
		e.HoursSlept, e.BathroomAccidents, e.FellToday,
		e.MedicationsTaken, e.MedicationsRefused,
		e.Mood, e.Social, e.ActivityMinutes, e.CognitiveActivities, e.Notes,
	)
	if err != nil {
		return fmt.Errorf("upserting log for %s/%s: %w", e.Date, e.PatientName, err)
	}

	stored, err := s.Get(ctx, e.Date, e.PatientName)
	if err != nil {
		return fmt.Errorf("reading back log for %s/%s: %w", e.Date, e.PatientName, err)
	}
	e.ID = stored.ID
	e.CreatedAt = stored.CreatedAt
	e.UpdatedAt = stored.UpdatedAt
	return nil
}

// Get returns the entry for one date and patient. Returns ErrNotFound
// if none exists.
func (s *Store) Get(ctx context.Context, date, patientName string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryCols+` FROM daily_logs
		 WHERE log_date = ? AND patient_name = ?`,
		date, strings.TrimSpace(patientName),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting log for %s/%s: %w", date, patientName, err)
	}
	return e, nil
}

// Range returns entries for a patient between from and to inclusive,
// oldest first.
func (s *Store) Range(ctx context.Context, patientName, from, to string) ([]*Entry, error) {
	for _, d := range []string{from, to} {
		if _, err := time.Parse(DateFormat, d); err != nil {
			return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryCols+` FROM daily_logs
		 WHERE patient_name = ? AND log_date BETWEEN ? AND ?
		 ORDER BY log_date ASC`,
		strings.TrimSpace(patientName), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("listing logs for %s: %w", patientName, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the last days of entries for a patient, oldest first.
// days <= 0 defaults to 7.
func (s *Store) Recent(ctx context.Context, patientName string, days int) ([]*Entry, error) {
	if days <= 0 {
		days = 7
	}
	to := time.Now()
	from := to.AddDate(0, 0, -(days - 1))
	return s.Range(ctx, patientName, from.Format(DateFormat), to.Format(DateFormat))
}

// Patients returns the distinct patient names in the logbook.
func (s *Store) Patients(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT patient_name FROM daily_logs ORDER BY patient_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning patient name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patients: %w", err)
	}
	return names, nil
}

// Delete removes the entry for one date and patient. Returns
// ErrNotFound if none exists.
func (s *Store) Delete(ctx context.Context, date, patientName string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM daily_logs WHERE log_date = ? AND patient_name = ?`,
		date, strings.TrimSpace(patientName),
	)
	if err != nil {
		return fmt.Errorf("deleting log for %s/%s: %w", date, patientName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{}
	var createdAt, updatedAt string
	if err := row.Scan(
		&e.ID, &e.Date, &e.PatientName, &e.Caregiver,
		&e.Meals, &e.Snacks, &e.WaterGlasses,
		&e.Wandering, &e.Agitation, &e.Confusion,
		&e.HoursSlept, &e.BathroomAccidents, &e.FellToday,
		&e.MedicationsTaken, &e.MedicationsRefused,
		&e.Mood, &e.Social, &e.ActivityMinutes, &e.CognitiveActivities,
		&e.Notes, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	e.CreatedAt = parseTimestamp(createdAt)
	e.UpdatedAt = parseTimestamp(updatedAt)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log entries: %w", err)
	}
	return entries, nil
}

// parseTimestamp reads the RFC3339-style timestamps the schema
// defaults write. A zero time is returned for unparseable values
// rather than failing the whole row.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.999Z", time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

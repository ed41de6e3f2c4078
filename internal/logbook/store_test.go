package logbook

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "logbook.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func sampleEntry(date string) *Entry {
	return &Entry{
		Date:               date,
		PatientName:        "Rosa",
		Caregiver:          "Elena",
		Meals:              3,
		Snacks:             2,
		WaterGlasses:       6,
		Agitation:          true,
		HoursSlept:         7.5,
		MedicationsTaken:   2,
		MedicationsRefused: 1,
		Mood:               4,
		Social:             3,
		ActivityMinutes:    30,
		Notes:              "Calm morning, restless after dinner.",
	}
}

func TestUpsertAndGet(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	e := sampleEntry("2026-08-29")
	if err := store.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if e.ID == 0 {
		t.Error("Upsert() did not populate ID")
	}

	got, err := store.Get(ctx, "2026-08-29", "Rosa")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Meals != 3 || got.HoursSlept != 7.5 || !got.Agitation || got.Mood != 4 {
		t.Errorf("Get() = %+v, fields do not match what was written", got)
	}
	if got.Notes != e.Notes {
		t.Errorf("Notes = %q, want %q", got.Notes, e.Notes)
	}
}

func TestUpsert_SameDayReplaces(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	first := sampleEntry("2026-08-29")
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	second := sampleEntry("2026-08-29")
	second.Meals = 2
	second.FellToday = true
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("replacement created new row: id %d vs %d", second.ID, first.ID)
	}

	got, err := store.Get(ctx, "2026-08-29", "Rosa")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Meals != 2 || !got.FellToday {
		t.Errorf("Get() after replace = %+v, want updated fields", got)
	}
}

func TestUpsert_Validation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{name: "bad date", mutate: func(e *Entry) { e.Date = "29-08-2026" }},
		{name: "empty patient", mutate: func(e *Entry) { e.PatientName = "  " }},
		{name: "negative meals", mutate: func(e *Entry) { e.Meals = -1 }},
		{name: "sleep beyond a day", mutate: func(e *Entry) { e.HoursSlept = 25 }},
		{name: "mood out of range", mutate: func(e *Entry) { e.Mood = 6 }},
		{name: "social out of range", mutate: func(e *Entry) { e.Social = -2 }},
		{name: "activity beyond a day", mutate: func(e *Entry) { e.ActivityMinutes = 24*60 + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := sampleEntry("2026-08-29")
			tt.mutate(e)
			if err := store.Upsert(ctx, e); err == nil {
				t.Errorf("Upsert() with %s expected error, got nil", tt.name)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "2026-01-01", "Nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestRange(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	for _, date := range []string{"2026-08-25", "2026-08-26", "2026-08-28"} {
		if err := store.Upsert(ctx, sampleEntry(date)); err != nil {
			t.Fatalf("Upsert(%s) error = %v", date, err)
		}
	}
	other := sampleEntry("2026-08-26")
	other.PatientName = "Miguel"
	if err := store.Upsert(ctx, other); err != nil {
		t.Fatalf("Upsert(other patient) error = %v", err)
	}

	got, err := store.Range(ctx, "Rosa", "2026-08-26", "2026-08-31")
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Range() returned %d entries, want 2", len(got))
	}
	if got[0].Date != "2026-08-26" || got[1].Date != "2026-08-28" {
		t.Errorf("Range() dates = %s, %s; want ascending 2026-08-26, 2026-08-28", got[0].Date, got[1].Date)
	}
	for _, e := range got {
		if e.PatientName != "Rosa" {
			t.Errorf("Range() leaked entry for %q", e.PatientName)
		}
	}
}

func TestRange_InvalidDates(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	if _, err := store.Range(context.Background(), "Rosa", "yesterday", "2026-08-31"); err == nil {
		t.Error("Range() with invalid from date expected error, got nil")
	}
}

func TestRecent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	today := time.Now().Format(DateFormat)
	lastWeek := time.Now().AddDate(0, 0, -10).Format(DateFormat)
	for _, date := range []string{today, lastWeek} {
		if err := store.Upsert(ctx, sampleEntry(date)); err != nil {
			t.Fatalf("Upsert(%s) error = %v", date, err)
		}
	}

	got, err := store.Recent(ctx, "Rosa", 7)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Date != today {
		t.Errorf("Recent(7) = %d entries, want only today's", len(got))
	}
}

func TestPatients(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	for _, tc := range []struct{ name, date string }{
		{"Rosa", "2026-08-25"},
		{"Miguel", "2026-08-25"},
		{"Rosa", "2026-08-26"},
	} {
		e := sampleEntry(tc.date)
		e.PatientName = tc.name
		if err := store.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	got, err := store.Patients(ctx)
	if err != nil {
		t.Fatalf("Patients() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Patients() = %v, want 2 distinct names", got)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, sampleEntry("2026-08-29")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Delete(ctx, "2026-08-29", "Rosa"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "2026-08-29", "Rosa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "2026-08-29", "Rosa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

package report

import (
	"math"
	"testing"

	"github.com/amparo-care/amparo/internal/logbook"
)

func entry(date string, mutate func(*logbook.Entry)) *logbook.Entry {
	e := &logbook.Entry{
		Date:             date,
		PatientName:      "Rosa",
		Meals:            3,
		WaterGlasses:     6,
		HoursSlept:       7,
		MedicationsTaken: 2,
		Mood:             3,
	}
	if mutate != nil {
		mutate(e)
	}
	return e
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarize(t *testing.T) {
	entries := []*logbook.Entry{
		entry("2026-08-25", func(e *logbook.Entry) {
			e.HoursSlept = 6
			e.Mood = 2
			e.Agitation = true
			e.MedicationsRefused = 1
		}),
		entry("2026-08-26", func(e *logbook.Entry) {
			e.HoursSlept = 7
			e.Mood = 3
			e.FellToday = true
			e.BathroomAccidents = 1
		}),
		entry("2026-08-27", func(e *logbook.Entry) {
			e.HoursSlept = 8
			e.Mood = 4
			e.ActivityMinutes = 45
		}),
		entry("2026-08-28", func(e *logbook.Entry) {
			e.HoursSlept = 8
			e.Mood = 0 // not recorded
			e.Wandering = true
		}),
	}

	s, err := Summarize(entries)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if s.PatientName != "Rosa" || s.From != "2026-08-25" || s.To != "2026-08-28" || s.Days != 4 {
		t.Errorf("period = %s %s..%s over %d days, want Rosa 2026-08-25..2026-08-28 over 4", s.PatientName, s.From, s.To, s.Days)
	}
	if !almostEqual(s.AvgHoursSlept, 7.25) {
		t.Errorf("AvgHoursSlept = %v, want 7.25", s.AvgHoursSlept)
	}
	if !almostEqual(s.AvgMood, 3) {
		t.Errorf("AvgMood = %v, want 3 (average over recorded days only)", s.AvgMood)
	}
	if s.TotalFalls != 1 || s.TotalAccidents != 1 {
		t.Errorf("falls = %d, accidents = %d; want 1 and 1", s.TotalFalls, s.TotalAccidents)
	}
	if s.WanderingDays != 1 || s.AgitationDays != 1 || s.ConfusionDays != 0 {
		t.Errorf("behavior days = %d/%d/%d, want 1/1/0", s.WanderingDays, s.AgitationDays, s.ConfusionDays)
	}
	// 8 taken, 1 refused.
	if !almostEqual(s.MedicationAdherence, 8.0/9.0) {
		t.Errorf("MedicationAdherence = %v, want %v", s.MedicationAdherence, 8.0/9.0)
	}
	// First half slept (6+7)/2 = 6.5, second half (8+8)/2 = 8.
	if !almostEqual(s.SleepTrend, 1.5) {
		t.Errorf("SleepTrend = %v, want 1.5", s.SleepTrend)
	}
	// First half mood (2+3)/2 = 2.5, second half 4 (one unrecorded day).
	if !almostEqual(s.MoodTrend, 1.5) {
		t.Errorf("MoodTrend = %v, want 1.5", s.MoodTrend)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if _, err := Summarize(nil); err == nil {
		t.Error("Summarize(nil) expected error, got nil")
	}
}

func TestSummarize_MixedPatients(t *testing.T) {
	entries := []*logbook.Entry{
		entry("2026-08-25", nil),
		entry("2026-08-26", func(e *logbook.Entry) { e.PatientName = "Miguel" }),
	}
	if _, err := Summarize(entries); err == nil {
		t.Error("Summarize() with mixed patients expected error, got nil")
	}
}

func TestSummarize_NoMedicationsMeansFullAdherence(t *testing.T) {
	entries := []*logbook.Entry{
		entry("2026-08-25", func(e *logbook.Entry) { e.MedicationsTaken = 0 }),
	}
	s, err := Summarize(entries)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if !almostEqual(s.MedicationAdherence, 1) {
		t.Errorf("MedicationAdherence = %v, want 1 with no medications recorded", s.MedicationAdherence)
	}
}

func TestSummarize_SingleEntryHasNoTrend(t *testing.T) {
	s, err := Summarize([]*logbook.Entry{entry("2026-08-25", nil)})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.SleepTrend != 0 || s.MoodTrend != 0 {
		t.Errorf("trends = %v/%v, want 0/0 for a single entry", s.SleepTrend, s.MoodTrend)
	}
}

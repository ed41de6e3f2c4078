// Package logbook stores the daily care log in a local SQLite
// database. The logbook works offline and holds the day-to-day
// observations reports are built from.
package logbook

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical log date layout.
const DateFormat = "2006-01-02"

// Rating bounds for mood and social engagement (0 means not recorded).
const (
	RatingMin = 1
	RatingMax = 5
)

// ErrNotFound indicates no log exists for the requested date and patient.
var ErrNotFound = errors.New("log entry not found")

// Entry is one day of care observations for one patient.
// Date and PatientName identify the entry; writing the same pair again
// replaces the previous record.
type Entry struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	PatientName string `json:"patient_name"`
	Caregiver   string `json:"caregiver,omitempty"`

	// Nutrition.
	Meals        int `json:"meals"`
	Snacks       int `json:"snacks"`
	WaterGlasses int `json:"water_glasses"`

	// Behavior.
	Wandering bool `json:"wandering"`
	Agitation bool `json:"agitation"`
	Confusion bool `json:"confusion"`

	// Health.
	HoursSlept         float64 `json:"hours_slept"`
	BathroomAccidents  int     `json:"bathroom_accidents"`
	FellToday          bool    `json:"fell_today"`
	MedicationsTaken   int     `json:"medications_taken"`
	MedicationsRefused int     `json:"medications_refused"`

	// Wellbeing, rated 1-5 (0 = not recorded).
	Mood   int `json:"mood"`
	Social int `json:"social"`

	// Activity.
	ActivityMinutes     int    `json:"activity_minutes"`
	CognitiveActivities string `json:"cognitive_activities,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks field bounds before the entry is written.
func (e *Entry) Validate() error {
	if _, err := time.Parse(DateFormat, e.Date); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", e.Date)
	}
	if strings.TrimSpace(e.PatientName) == "" {
		return fmt.Errorf("patient name is required")
	}
	if e.HoursSlept < 0 || e.HoursSlept > 24 {
		return fmt.Errorf("hours slept %v out of range [0, 24]", e.HoursSlept)
	}
	for name, v := range map[string]int{
		"meals":               e.Meals,
		"snacks":              e.Snacks,
		"water glasses":       e.WaterGlasses,
		"bathroom accidents":  e.BathroomAccidents,
		"medications taken":   e.MedicationsTaken,
		"medications refused": e.MedicationsRefused,
		"activity minutes":    e.ActivityMinutes,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if e.ActivityMinutes > 24*60 {
		return fmt.Errorf("activity minutes %d exceeds a day", e.ActivityMinutes)
	}
	if err := validateRating("mood", e.Mood); err != nil {
		return err
	}
	if err := validateRating("social", e.Social); err != nil {
		return err
	}
	return nil
}

func validateRating(name string, v int) error {
	if v == 0 {
		return nil // not recorded
	}
	if v < RatingMin || v > RatingMax {
		return fmt.Errorf("%s rating %d out of range [%d, %d]", name, v, RatingMin, RatingMax)
	}
	return nil
}

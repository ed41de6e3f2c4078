// Package report turns daily care logs into summaries and export
// files caregivers can hand to a doctor.
package report

import (
	"fmt"

	"github.com/amparo-care/amparo/internal/logbook"
)

// Summary aggregates a run of daily logs for one patient.
type Summary struct {
	PatientName string `json:"patient_name"`
	From        string `json:"from"`
	To          string `json:"to"`
	Days        int    `json:"days"`

	AvgMeals      float64 `json:"avg_meals"`
	AvgSnacks     float64 `json:"avg_snacks"`
	AvgWater      float64 `json:"avg_water_glasses"`
	AvgHoursSlept float64 `json:"avg_hours_slept"`

	// Averages over days where the rating was recorded; 0 when never.
	AvgMood   float64 `json:"avg_mood"`
	AvgSocial float64 `json:"avg_social"`

	WanderingDays int `json:"wandering_days"`
	AgitationDays int `json:"agitation_days"`
	ConfusionDays int `json:"confusion_days"`

	TotalFalls         int `json:"total_falls"`
	TotalAccidents     int `json:"total_bathroom_accidents"`
	TotalActivityMin   int `json:"total_activity_minutes"`
	MedicationsTaken   int `json:"medications_taken"`
	MedicationsRefused int `json:"medications_refused"`

	// MedicationAdherence is taken/(taken+refused) in [0, 1];
	// 1 when no medications were recorded at all.
	MedicationAdherence float64 `json:"medication_adherence"`

	// Trends compare the second half of the period against the first:
	// positive means improving sleep, rising mood.
	SleepTrend float64 `json:"sleep_trend"`
	MoodTrend  float64 `json:"mood_trend"`
}

// Summarize computes a Summary. Entries must belong to one patient
// and be ordered by date ascending, as the logbook Range returns them.
func Summarize(entries []*logbook.Entry) (*Summary, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no log entries to summarize")
	}

	s := &Summary{
		PatientName: entries[0].PatientName,
		From:        entries[0].Date,
		To:          entries[len(entries)-1].Date,
		Days:        len(entries),
	}

	var moodSum, moodDays, socialSum, socialDays int
	for _, e := range entries {
		if e.PatientName != s.PatientName {
			return nil, fmt.Errorf("entries mix patients %q and %q", s.PatientName, e.PatientName)
		}
		s.AvgMeals += float64(e.Meals)
		s.AvgSnacks += float64(e.Snacks)
		s.AvgWater += float64(e.WaterGlasses)
		s.AvgHoursSlept += e.HoursSlept
		if e.Wandering {
			s.WanderingDays++
		}
		if e.Agitation {
			s.AgitationDays++
		}
		if e.Confusion {
			s.ConfusionDays++
		}
		if e.FellToday {
			s.TotalFalls++
		}
		s.TotalAccidents += e.BathroomAccidents
		s.TotalActivityMin += e.ActivityMinutes
		s.MedicationsTaken += e.MedicationsTaken
		s.MedicationsRefused += e.MedicationsRefused
		if e.Mood > 0 {
			moodSum += e.Mood
			moodDays++
		}
		if e.Social > 0 {
			socialSum += e.Social
			socialDays++
		}
	}

	n := float64(len(entries))
	s.AvgMeals /= n
	s.AvgSnacks /= n
	s.AvgWater /= n
	s.AvgHoursSlept /= n
	if moodDays > 0 {
		s.AvgMood = float64(moodSum) / float64(moodDays)
	}
	if socialDays > 0 {
		s.AvgSocial = float64(socialSum) / float64(socialDays)
	}

	s.MedicationAdherence = 1
	if total := s.MedicationsTaken + s.MedicationsRefused; total > 0 {
		s.MedicationAdherence = float64(s.MedicationsTaken) / float64(total)
	}

	s.SleepTrend, s.MoodTrend = trends(entries)
	return s, nil
}

// trends compares second-half averages against first-half averages.
// Fewer than two entries yields zero trends.
func trends(entries []*logbook.Entry) (sleep, mood float64) {
	if len(entries) < 2 {
		return 0, 0
	}
	mid := len(entries) / 2
	first, second := entries[:mid], entries[mid:]

	sleep = avgSleep(second) - avgSleep(first)

	firstMood, firstOK := avgMood(first)
	secondMood, secondOK := avgMood(second)
	if firstOK && secondOK {
		mood = secondMood - firstMood
	}
	return sleep, mood
}

func avgSleep(entries []*logbook.Entry) float64 {
	var sum float64
	for _, e := range entries {
		sum += e.HoursSlept
	}
	return sum / float64(len(entries))
}

func avgMood(entries []*logbook.Entry) (float64, bool) {
	var sum, n int
	for _, e := range entries {
		if e.Mood > 0 {
			sum += e.Mood
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

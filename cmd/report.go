package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/amparo-care/amparo/internal/config"
	"github.com/amparo-care/amparo/internal/logbook"
	"github.com/amparo-care/amparo/internal/report"
)

// runReport prints a care summary or writes an export file. Only the
// logbook database is opened; no model or Postgres connection is needed.
func runReport() error {
	reportFlags := flag.NewFlagSet("report", flag.ContinueOnError)
	reportFlags.SetOutput(os.Stderr)

	patient := reportFlags.String("patient", "", "Patient name (required)")
	from := reportFlags.String("from", "", "Range start, YYYY-MM-DD")
	to := reportFlags.String("to", "", "Range end, YYYY-MM-DD")
	export := reportFlags.String("export", "", "Export format: csv, json or xlsx")
	out := reportFlags.String("out", "", "Export file path")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := reportFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing report flags: %w", err)
	}

	if *patient == "" {
		return fmt.Errorf("--patient is required")
	}
	if (*from == "") != (*to == "") {
		return fmt.Errorf("--from and --to must be used together")
	}
	for _, d := range []string{*from, *to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(logbook.DateFormat, d); err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := logbook.Open(cfg.LogbookPath)
	if err != nil {
		return fmt.Errorf("opening logbook: %w", err)
	}
	defer db.Close()
	if err := logbook.Migrate(db); err != nil {
		return fmt.Errorf("migrating logbook: %w", err)
	}
	store, err := logbook.NewStore(db)
	if err != nil {
		return fmt.Errorf("preparing logbook store: %w", err)
	}

	ctx := context.Background()

	var entries []*logbook.Entry
	if *from != "" {
		entries, err = store.Range(ctx, *patient, *from, *to)
	} else {
		entries, err = store.Recent(ctx, *patient, 30)
	}
	if err != nil {
		return fmt.Errorf("loading log entries: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no log entries found for %s", *patient)
	}

	if *export != "" {
		return exportReport(*export, *out, entries)
	}
	return printSummary(entries)
}

func exportReport(formatName, outPath string, entries []*logbook.Entry) error {
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = fmt.Sprintf("daily-logs.%s", format)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	if err := report.Export(f, format, entries); err != nil {
		return fmt.Errorf("exporting logs: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	fmt.Printf("Exported %d entries to %s\n", len(entries), outPath)
	return nil
}

func printSummary(entries []*logbook.Entry) error {
	s, err := report.Summarize(entries)
	if err != nil {
		return err
	}

	fmt.Printf("Care report for %s (%s to %s, %d days)\n\n", s.PatientName, s.From, s.To, s.Days)
	fmt.Printf("Eating & drinking:\n")
	fmt.Printf("  Meals/day:        %.1f\n", s.AvgMeals)
	fmt.Printf("  Snacks/day:       %.1f\n", s.AvgSnacks)
	fmt.Printf("  Water glasses:    %.1f\n", s.AvgWater)
	fmt.Printf("Sleep & mood:\n")
	fmt.Printf("  Hours slept:      %.1f (trend %+.1f)\n", s.AvgHoursSlept, s.SleepTrend)
	if s.AvgMood > 0 {
		fmt.Printf("  Mood (1-5):       %.1f (trend %+.1f)\n", s.AvgMood, s.MoodTrend)
	}
	if s.AvgSocial > 0 {
		fmt.Printf("  Social (1-5):     %.1f\n", s.AvgSocial)
	}
	fmt.Printf("Behavior days:\n")
	fmt.Printf("  Wandering:        %d\n", s.WanderingDays)
	fmt.Printf("  Agitation:        %d\n", s.AgitationDays)
	fmt.Printf("  Confusion:        %d\n", s.ConfusionDays)
	fmt.Printf("Safety & activity:\n")
	fmt.Printf("  Falls:            %d\n", s.TotalFalls)
	fmt.Printf("  Bathroom accidents: %d\n", s.TotalAccidents)
	fmt.Printf("  Activity minutes: %d\n", s.TotalActivityMin)
	fmt.Printf("Medications:\n")
	fmt.Printf("  Taken:            %d\n", s.MedicationsTaken)
	fmt.Printf("  Refused:          %d\n", s.MedicationsRefused)
	fmt.Printf("  Adherence:        %.0f%%\n", s.MedicationAdherence*100)

	return nil
}

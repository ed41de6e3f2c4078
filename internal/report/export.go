package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/amparo-care/amparo/internal/logbook"
)

// Format selects an export encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "xlsx"
)

// ParseFormat validates a format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON, FormatExcel:
		return Format(s), nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, json, or xlsx)", s)
	}
}

// ContentType returns the MIME type for HTTP responses.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// exportHeader is the column order shared by CSV and Excel exports.
var exportHeader = []string{
	"date", "patient", "caregiver",
	"meals", "snacks", "water_glasses",
	"wandering", "agitation", "confusion",
	"hours_slept", "bathroom_accidents", "fell",
	"medications_taken", "medications_refused",
	"mood", "social", "activity_minutes", "cognitive_activities",
	"notes",
}

// Export writes entries to w in the requested format.
func Export(w io.Writer, format Format, entries []*logbook.Entry) error {
	switch format {
	case FormatJSON:
		return exportJSON(w, entries)
	case FormatExcel:
		return exportExcel(w, entries)
	case FormatCSV:
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func exportCSV(w io.Writer, entries []*logbook.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(entryRow(e)); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", e.Date, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func exportJSON(w io.Writer, entries []*logbook.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding json export: %w", err)
	}
	return nil
}

func exportExcel(w io.Writer, entries []*logbook.Entry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Daily Logs"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing excel header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastCol, err := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err != nil {
		return fmt.Errorf("computing header extent: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol, headerStyle); err != nil {
		return fmt.Errorf("styling excel header: %w", err)
	}

	for i, e := range entries {
		row := make([]any, 0, len(exportHeader))
		row = append(row,
			e.Date, e.PatientName, e.Caregiver,
			e.Meals, e.Snacks, e.WaterGlasses,
			e.Wandering, e.Agitation, e.Confusion,
			e.HoursSlept, e.BathroomAccidents, e.FellToday,
			e.MedicationsTaken, e.MedicationsRefused,
			e.Mood, e.Social, e.ActivityMinutes, e.CognitiveActivities,
			e.Notes,
		)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("computing cell for row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing excel row for %s: %w", e.Date, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func entryRow(e *logbook.Entry) []string {
	return []string{
		e.Date, e.PatientName, e.Caregiver,
		strconv.Itoa(e.Meals), strconv.Itoa(e.Snacks), strconv.Itoa(e.WaterGlasses),
		strconv.FormatBool(e.Wandering), strconv.FormatBool(e.Agitation), strconv.FormatBool(e.Confusion),
		strconv.FormatFloat(e.HoursSlept, 'f', -1, 64),
		strconv.Itoa(e.BathroomAccidents), strconv.FormatBool(e.FellToday),
		strconv.Itoa(e.MedicationsTaken), strconv.Itoa(e.MedicationsRefused),
		strconv.Itoa(e.Mood), strconv.Itoa(e.Social),
		strconv.Itoa(e.ActivityMinutes), e.CognitiveActivities,
		e.Notes,
	}
}

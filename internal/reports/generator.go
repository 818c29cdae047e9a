// Package reports exports the day shown in the client as a PDF or CSV file.
package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/fdg312/calorie-hub/internal/syncstate"
)

const (
	FormatPDF = "pdf"
	FormatCSV = "csv"
)

// Generator renders day reports.
type Generator struct {
	dir    string
	format string
	now    func() time.Time
}

// NewGenerator writes reports into dir in the given format.
func NewGenerator(dir, format string) *Generator {
	if format != FormatCSV {
		format = FormatPDF
	}
	return &Generator{dir: dir, format: format, now: time.Now}
}

// WriteDay renders st and saves it as calories-YYYY-MM-DD.<format>.
func (g *Generator) WriteDay(st syncstate.State) (string, error) {
	now := g.now()
	data, err := g.Generate(st, now)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	path := filepath.Join(g.dir, fmt.Sprintf("calories-%s.%s", now.Format("2006-01-02"), g.format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Generate renders st without touching the filesystem.
func (g *Generator) Generate(st syncstate.State, now time.Time) ([]byte, error) {
	switch g.format {
	case FormatCSV:
		return generateCSV(st)
	default:
		return generatePDF(st, now)
	}
}

func generateCSV(st syncstate.State) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"id", "time", "item", "kcal"}); err != nil {
		return nil, err
	}
	for _, m := range st.Meals {
		row := []string{strconv.FormatInt(m.ID, 10), m.Time, m.Item, strconv.Itoa(m.Kcal)}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func generatePDF(st syncstate.State, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; translate so accented names survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	fontName := "Arial"

	pdf.AddPage()
	pdf.SetFont(fontName, "B", 16)
	pdf.Cell(0, 10, "Calorie report")
	pdf.Ln(8)

	pdf.SetFont(fontName, "", 12)
	pdf.Cell(0, 8, now.Format("Monday, 2 January 2006"))
	pdf.Ln(12)

	pdf.SetFont(fontName, "B", 14)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont(fontName, "", 10)
	lines := []string{
		fmt.Sprintf("Goal: %d kcal", st.Goal),
		fmt.Sprintf("Eaten today: %d kcal (%.0f%%)", st.DayTotal, st.DayPercent()),
		fmt.Sprintf("Remaining: %d kcal", st.DisplayRemaining()),
		fmt.Sprintf("This month: %d kcal, %d kcal/day on average", st.MonthTotal, int(math.Round(st.AvgPerDay))),
		fmt.Sprintf("Plan: %s", planLabel(st)),
	}
	for _, line := range lines {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Ln(7)

	pdf.SetFont(fontName, "B", 14)
	pdf.Cell(0, 8, "Meals")
	pdf.Ln(8)
	drawMealsTable(pdf, st.Meals, fontName, tr)

	if text := strings.TrimSpace(st.CoachText); text != "" {
		pdf.Ln(8)
		pdf.SetFont(fontName, "B", 14)
		pdf.Cell(0, 8, "Coach")
		pdf.Ln(8)
		pdf.SetFont(fontName, "", 10)
		pdf.MultiCell(0, 5, tr(text), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func drawMealsTable(pdf *gofpdf.Fpdf, meals []syncstate.Meal, fontName string, tr func(string) string) {
	pdf.SetFont(fontName, "", 9)
	if len(meals) == 0 {
		pdf.Cell(0, 6, "No meals recorded.")
		pdf.Ln(6)
		return
	}

	pdf.CellFormat(25, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(115, 6, "Item", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Kcal", "1", 1, "C", false, 0, "")

	total := 0
	for _, m := range meals {
		item := m.Item
		if strings.TrimSpace(item) == "" {
			item = "No name"
		}
		pdf.CellFormat(25, 6, m.Time, "1", 0, "C", false, 0, "")
		pdf.CellFormat(115, 6, tr(item), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, strconv.Itoa(m.Kcal), "1", 1, "R", false, 0, "")
		total += m.Kcal
	}
	pdf.CellFormat(140, 6, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, strconv.Itoa(total), "1", 1, "R", false, 0, "")
}

func planLabel(st syncstate.State) string {
	if st.Plan == syncstate.PlanPro {
		return "PRO"
	}
	return fmt.Sprintf("trial, %d days left", st.TrialDays())
}

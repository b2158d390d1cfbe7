// Package document renders daily reports as PDF.
package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/harvestsmart/harvestsmart/pkg/report"
)

// FileName is the export name for a day's report.
func FileName(date string) string {
	return "HarvestReport_" + date + ".pdf"
}

// PDFRenderer implements report.Renderer.
type PDFRenderer struct {
	Title    string
	Location *time.Location // for detection times; nil = time.Local
}

func NewPDFRenderer(loc *time.Location) *PDFRenderer {
	return &PDFRenderer{Title: "Daily Harvest Report", Location: loc}
}

func (r *PDFRenderer) Render(ctx context.Context, rep *report.DailyReport) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("nil report")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.Title+" "+rep.Date, true)
	pdf.SetCreator("harvestsmart", true)
	if day, err := time.ParseInLocation("2006-01-02", rep.Date, loc); err == nil {
		pdf.SetCreationDate(day)
	}
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(0x34, 0xA8, 0x53)
	pdf.CellFormat(0, 12, r.Title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 13)
	pdf.SetTextColor(0x66, 0x66, 0x66)
	pdf.CellFormat(0, 8, rep.Date, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFillColor(0xE8, 0xF5, 0xE9)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 12, "Total Bunches: "+strconv.Itoa(rep.TotalBunches), "", 1, "L", true, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Ripeness Levels", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	levels := rep.TotalRipeLevels
	for i, row := range [][2]string{
		{"Ripe", strconv.Itoa(levels.Ripe)},
		{"Underripe", strconv.Itoa(levels.Underripe)},
		{"Overripe", strconv.Itoa(levels.Overripe)},
		{"Abnormal", strconv.Itoa(levels.Abnormal)},
	} {
		ln := 0
		if i%2 == 1 {
			ln = 1
		}
		pdf.CellFormat(45, 9, row[0]+":", "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 9, row[1], "1", ln, "C", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Detections", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(95, 8, "Time", "B", 0, "L", true, 0, "")
	pdf.CellFormat(95, 8, "Bunches", "B", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, d := range rep.Detections {
		pdf.CellFormat(95, 7, d.Timestamp.In(loc).Format("15:04:05"), "B", 0, "L", false, 0, "")
		pdf.CellFormat(95, 7, strconv.Itoa(d.TotalBunches), "B", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export renders rep into dir and returns the written path.
func Export(ctx context.Context, r report.Renderer, rep *report.DailyReport, dir string) (string, error) {
	data, err := r.Render(ctx, rep)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(rep.Date))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

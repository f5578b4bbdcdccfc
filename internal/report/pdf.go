package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"fleetrev/internal/analytics"
)

// WritePDF renders the condensed print layout as a PDF document: a title,
// the executive KPI table, and the per-fleet breakdown.
func WritePDF(w io.Writer, result analytics.Result) error {
	summary := Summarize(result)

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(summary.Title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, summary.Title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Executive Summary", "", 1, "L", false, 0, "")
	writeTwoColumnTable(pdf, summary.KPIs)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Fleet Performance Breakdown", "", 1, "L", false, 0, "")
	if len(summary.Breakdown) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, "No data available", "", 1, "L", false, 0, "")
	} else {
		writeThreeColumnTable(pdf, summary.Breakdown)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func writeTwoColumnTable(pdf *fpdf.Fpdf, rows [][2]string) {
	for i, row := range rows {
		header := i == 0
		setTableRowStyle(pdf, header)
		pdf.CellFormat(60, 7, row[0], "1", 0, "C", header, 0, "")
		pdf.CellFormat(60, 7, row[1], "1", 1, "C", header, 0, "")
	}
}

func writeThreeColumnTable(pdf *fpdf.Fpdf, rows [][3]string) {
	for i, row := range rows {
		header := i == 0
		setTableRowStyle(pdf, header)
		pdf.CellFormat(50, 7, row[0], "1", 0, "L", header, 0, "")
		pdf.CellFormat(50, 7, row[1], "1", 0, "R", header, 0, "")
		pdf.CellFormat(30, 7, row[2], "1", 1, "R", header, 0, "")
	}
}

func setTableRowStyle(pdf *fpdf.Fpdf, header bool) {
	if header {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(128, 128, 128)
		pdf.SetTextColor(255, 255, 255)
		return
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
}

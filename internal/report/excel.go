package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"fleetrev/internal/analytics"
)

// Workbook sheet names. "Bus Performance" is the primary report sheet.
const (
	sheetPerformance = "Bus Performance"
	sheetDashboard   = "Dashboard"
	sheetDaily       = "Daily Subtotals"
	sheetRaw         = "Raw Data"
)

const (
	colorHeader   = "4472C4"
	colorSentinel = "A6A6A6"
	colorTier1    = "FFFF00"
	colorTier2    = "D9E1F2"
)

// excelStyles holds the style IDs registered once per workbook.
type excelStyles struct {
	header   int
	plain    int
	sentinel int
	tier1    int
	tier2    int
	money    int
	moneyT1  int
	moneyT2  int
	moneySen int
	count    int
}

// WriteExcel renders the full multi-sheet workbook for an analytics result
// and writes it to w as xlsx.
func WriteExcel(w io.Writer, result analytics.Result, settings map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := registerStyles(f)
	if err != nil {
		return fmt.Errorf("register styles: %w", err)
	}

	if err := writePerformanceSheet(f, styles, result, settings); err != nil {
		return fmt.Errorf("performance sheet: %w", err)
	}
	if err := writeDashboardSheet(f, styles, result); err != nil {
		return fmt.Errorf("dashboard sheet: %w", err)
	}
	if err := writeDailySheet(f, styles, result); err != nil {
		return fmt.Errorf("daily subtotals sheet: %w", err)
	}
	if err := writeRawSheet(f, styles, result); err != nil {
		return fmt.Errorf("raw data sheet: %w", err)
	}

	// The default sheet is replaced by the report sheets.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(sheetPerformance); err == nil {
		f.SetActiveSheet(idx)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func registerStyles(f *excelize.File) (excelStyles, error) {
	var s excelStyles
	var err error

	borders := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	moneyFmt := "#,##0.00"
	countFmt := "#,##0"

	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}

	if s.header, err = f.NewStyle(&excelize.Style{
		Fill:      fill(colorHeader),
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    borders,
	}); err != nil {
		return s, err
	}
	if s.plain, err = f.NewStyle(&excelize.Style{Border: borders}); err != nil {
		return s, err
	}
	if s.sentinel, err = f.NewStyle(&excelize.Style{
		Fill:   fill(colorSentinel),
		Font:   &excelize.Font{Bold: true},
		Border: borders,
	}); err != nil {
		return s, err
	}
	if s.tier1, err = f.NewStyle(&excelize.Style{Fill: fill(colorTier1), Border: borders}); err != nil {
		return s, err
	}
	if s.tier2, err = f.NewStyle(&excelize.Style{Fill: fill(colorTier2), Border: borders}); err != nil {
		return s, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{Border: borders, CustomNumFmt: &moneyFmt}); err != nil {
		return s, err
	}
	if s.moneyT1, err = f.NewStyle(&excelize.Style{Fill: fill(colorTier1), Border: borders, CustomNumFmt: &moneyFmt}); err != nil {
		return s, err
	}
	if s.moneyT2, err = f.NewStyle(&excelize.Style{Fill: fill(colorTier2), Border: borders, CustomNumFmt: &moneyFmt}); err != nil {
		return s, err
	}
	if s.moneySen, err = f.NewStyle(&excelize.Style{
		Fill:         fill(colorSentinel),
		Font:         &excelize.Font{Bold: true},
		Border:       borders,
		CustomNumFmt: &moneyFmt,
	}); err != nil {
		return s, err
	}
	if s.count, err = f.NewStyle(&excelize.Style{Border: borders, CustomNumFmt: &countFmt}); err != nil {
		return s, err
	}
	return s, nil
}

// rowStyles picks (text, money) style IDs for a row by its fleet-code class.
func (s excelStyles) rowStyles(class RowClass) (text, money int) {
	switch class {
	case RowClassSentinel:
		return s.sentinel, s.moneySen
	case RowClassTier1:
		return s.tier1, s.moneyT1
	case RowClassTier2:
		return s.tier2, s.moneyT2
	}
	return s.plain, s.money
}

func writeHeader(f *excelize.File, styles excelStyles, sheet string, headers []string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, styles.header)
}

func writePerformanceSheet(f *excelize.File, styles excelStyles, result analytics.Result, settings map[string]string) error {
	if err := writeHeader(f, styles, sheetPerformance, []string{"BUS CODE", "PAX", "REVENUE", "REMITTANCE", "FUEL USED"}); err != nil {
		return err
	}

	for i, row := range PerformanceRows(result, settings) {
		r := i + 2
		if err := setRow(f, sheetPerformance, r, row.Fleet, row.Pax, row.Revenue, row.Remittance, row.FuelUsed); err != nil {
			return err
		}

		text, money := styles.rowStyles(Classify(row.Fleet))
		if err := styleCells(f, sheetPerformance, r, text, 1); err != nil {
			return err
		}
		if err := styleCells(f, sheetPerformance, r, styles.count, 2); err != nil {
			return err
		}
		if err := styleCells(f, sheetPerformance, r, money, 3, 4, 5); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetPerformance, "A", "E", 16)
}

func writeDashboardSheet(f *excelize.File, styles excelStyles, result analytics.Result) error {
	if err := writeHeader(f, styles, sheetDashboard, []string{"Metric", "Value"}); err != nil {
		return err
	}

	stats := result.Stats
	rows := []struct {
		metric string
		value  any
	}{
		{"Total Revenue", stats.TotalRevenue},
		{"Total Records", stats.TotalRecords},
		{"Top Fleet", stats.TopPerformingFleet},
		{"Avg Revenue", stats.AverageTripRevenue},
		{"Predicted Revenue", stats.PredictedRevenue},
		{"Revenue Trend %", stats.RevenueTrendPercent},
	}
	for i, row := range rows {
		r := i + 2
		if err := setRow(f, sheetDashboard, r, row.metric, row.value); err != nil {
			return err
		}
		if err := styleCells(f, sheetDashboard, r, styles.plain, 1, 2); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetDashboard, "A", "B", 22)
}

func writeDailySheet(f *excelize.File, styles excelStyles, result analytics.Result) error {
	if err := writeHeader(f, styles, sheetDaily, []string{"Date", "BUS CODE", "PAX", "REVENUE"}); err != nil {
		return err
	}

	for i, row := range DailyRows(result) {
		r := i + 2
		if err := setRow(f, sheetDaily, r, row.Date, row.Fleet, row.Pax, row.Revenue); err != nil {
			return err
		}

		// Only sentinel rows get highlighted on the daily sheet.
		text, money := styles.plain, styles.money
		if Classify(row.Fleet) == RowClassSentinel {
			text, money = styles.sentinel, styles.moneySen
		}
		if err := styleCells(f, sheetDaily, r, text, 1, 2); err != nil {
			return err
		}
		if err := styleCells(f, sheetDaily, r, styles.count, 3); err != nil {
			return err
		}
		if err := styleCells(f, sheetDaily, r, money, 4); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetDaily, "A", "D", 14)
}

func writeRawSheet(f *excelize.File, styles excelStyles, result analytics.Result) error {
	if err := writeHeader(f, styles, sheetRaw, []string{"Date", "Fleet", "Amount"}); err != nil {
		return err
	}

	for i, rec := range result.Records {
		r := i + 2
		if err := setRow(f, sheetRaw, r, rec.Date.Format(dateLayout), rec.Fleet, rec.Amount); err != nil {
			return err
		}
		if err := styleCells(f, sheetRaw, r, styles.plain, 1, 2); err != nil {
			return err
		}
		if err := styleCells(f, sheetRaw, r, styles.money, 3); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetRaw, "A", "C", 14)
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func styleCells(f *excelize.File, sheet string, row, styleID int, cols ...int) error {
	for _, col := range cols {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, styleID); err != nil {
			return err
		}
	}
	return nil
}

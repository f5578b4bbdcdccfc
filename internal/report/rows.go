// Package report turns analytics results into presentation structures:
// spreadsheet row sets with subtotal and grand-total rows, a condensed
// print layout, and the writers that render them.
package report

import (
	"fmt"
	"strings"

	"fleetrev/internal/analytics"
)

// Sentinel fleet-code values marking synthetic aggregate rows. Consumers
// recognize these rows by the fleet-code column, not by a separate flag.
const (
	SubtotalLabel   = "Subtotal"
	GrandTotalLabel = "Grand Total"
)

// fuelUsedRate estimates fuel spend as a share of revenue. Fuel is not
// measured data; this is an operational placeholder carried over from the
// reporting requirements.
const fuelUsedRate = 0.30

const dateLayout = "2006-01-02"

// DailyRow is one line of the date-grouped sheet: either a (date, fleet)
// subtotal or the per-date "Subtotal" sentinel.
type DailyRow struct {
	Date    string  `json:"date"`
	Fleet   string  `json:"fleet"`
	Pax     int     `json:"pax"`
	Revenue float64 `json:"revenue"`
}

// PerformanceRow is one line of the per-fleet performance sheet, closed by
// the "Grand Total" sentinel.
type PerformanceRow struct {
	Fleet      string  `json:"fleet"`
	Pax        int     `json:"pax"`
	Revenue    float64 `json:"revenue"`
	Remittance float64 `json:"remittance"`
	FuelUsed   float64 `json:"fuel_used"`
}

// PrintSummary is the condensed layout for print/PDF rendering: executive
// KPIs plus the per-fleet breakdown, without sentinel rows or the fuel
// column.
type PrintSummary struct {
	Title     string      `json:"title"`
	KPIs      [][2]string `json:"kpis"`
	Breakdown [][3]string `json:"breakdown"`
}

// RowClass drives the visual treatment of a row. The tier split follows
// the fleet-code first character, the same rule the remittance resolver
// applies.
type RowClass int

const (
	RowClassPlain RowClass = iota
	RowClassTier1
	RowClassTier2
	RowClassSentinel
)

// Classify maps a fleet-code cell value to its row class.
func Classify(fleetCode string) RowClass {
	switch {
	case fleetCode == SubtotalLabel || fleetCode == GrandTotalLabel:
		return RowClassSentinel
	case strings.HasPrefix(fleetCode, "1"):
		return RowClassTier1
	case strings.HasPrefix(fleetCode, "2"):
		return RowClassTier2
	}
	return RowClassPlain
}

// DailyRows regroups the daily subtotals by date, appending one "Subtotal"
// sentinel row per date with the summed pax and revenue. Input order of
// result.DailySubtotals (date asc, fleet asc) is preserved.
func DailyRows(result analytics.Result) []DailyRow {
	var rows []DailyRow

	subtotals := result.DailySubtotals
	for i := 0; i < len(subtotals); {
		date := subtotals[i].Date
		var dayPax int
		var dayRevenue float64

		for ; i < len(subtotals) && subtotals[i].Date.Equal(date); i++ {
			d := subtotals[i]
			rows = append(rows, DailyRow{
				Date:    d.Date.Format(dateLayout),
				Fleet:   d.Fleet,
				Pax:     d.Pax,
				Revenue: d.DailyTotal,
			})
			dayPax += d.Pax
			dayRevenue += d.DailyTotal
		}

		rows = append(rows, DailyRow{
			Date:    date.Format(dateLayout),
			Fleet:   SubtotalLabel,
			Pax:     dayPax,
			Revenue: dayRevenue,
		})
	}
	return rows
}

// PerformanceRows builds the per-fleet performance table, sorted by fleet
// code, with remittance from the rule resolver and the fuel-used estimate.
// A "Grand Total" sentinel row summing every numeric column closes the
// table.
func PerformanceRows(result analytics.Result, settings map[string]string) []PerformanceRow {
	if len(result.FleetSummaries) == 0 {
		return nil
	}

	rows := make([]PerformanceRow, 0, len(result.FleetSummaries)+1)
	var total PerformanceRow
	total.Fleet = GrandTotalLabel

	for _, s := range result.FleetSummaries {
		row := PerformanceRow{
			Fleet:      s.Fleet,
			Pax:        s.RecordCount,
			Revenue:    s.TotalAmount,
			Remittance: analytics.Remittance(s.TotalAmount, s.Fleet, settings),
			FuelUsed:   s.TotalAmount * fuelUsedRate,
		}
		rows = append(rows, row)

		total.Pax += row.Pax
		total.Revenue += row.Revenue
		total.Remittance += row.Remittance
		total.FuelUsed += row.FuelUsed
	}

	return append(rows, total)
}

// Summarize produces the print layout for a result.
func Summarize(result analytics.Result) PrintSummary {
	stats := result.Stats

	summary := PrintSummary{
		Title: "Fleet Reporting System - Analytical Report",
		KPIs: [][2]string{
			{"Metric", "Value"},
			{"Total Revenue", formatAmount(stats.TotalRevenue)},
			{"Total Records", fmt.Sprintf("%d", stats.TotalRecords)},
			{"Top Fleet", stats.TopPerformingFleet},
			{"Avg Revenue/Trip", formatAmount(stats.AverageTripRevenue)},
		},
	}

	if len(result.FleetSummaries) > 0 {
		summary.Breakdown = append(summary.Breakdown, [3]string{"Fleet", "Total Revenue", "Count"})
		for _, s := range result.FleetSummaries {
			summary.Breakdown = append(summary.Breakdown, [3]string{
				s.Fleet,
				formatAmount(s.TotalAmount),
				fmt.Sprintf("%d", s.RecordCount),
			})
		}
	}
	return summary
}

// formatAmount renders a monetary value with thousands separators and two
// decimals, e.g. 1234567.8 -> "1,234,567.80".
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

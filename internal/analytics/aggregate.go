package analytics

import (
	"sort"
	"time"
)

// FleetSummary aggregates one distinct fleet code.
type FleetSummary struct {
	Fleet       string  `json:"fleet"`
	TotalAmount float64 `json:"total_amount"`
	RecordCount int     `json:"record_count"`
	Remittance  float64 `json:"remittance"`
}

// DailySubtotal aggregates one (date, fleet) pair.
type DailySubtotal struct {
	Date       time.Time `json:"date"`
	Fleet      string    `json:"fleet"`
	DailyTotal float64   `json:"daily_total"`
	Pax        int       `json:"pax"`
}

// DashboardStats is the KPI snapshot for dashboard cards, fully derived and
// recomputed on every call.
type DashboardStats struct {
	TotalRevenue        float64 `json:"total_revenue"`
	TotalRecords        int     `json:"total_records"`
	TopPerformingFleet  string  `json:"top_performing_fleet"`
	AverageTripRevenue  float64 `json:"average_trip_revenue"`
	PredictedRevenue    float64 `json:"predicted_revenue"`
	RevenueTrendPercent float64 `json:"revenue_trend_percent"`
}

// Result bundles everything one analytics pass produces. It is a pure value
// with no lifecycle beyond the computation that built it.
type Result struct {
	Records        []Record        `json:"records"`
	FleetSummaries []FleetSummary  `json:"fleet_summaries"`
	DailySubtotals []DailySubtotal `json:"daily_subtotals"`
	Stats          DashboardStats  `json:"dashboard_stats"`
	Anomalies      []Anomaly       `json:"anomalies"`
}

const (
	trendWindowDays     = 7
	predictionDateCount = 14
)

// NoFleet is reported as the top performer when no records exist.
const NoFleet = "N/A"

// Process normalizes raw records and runs the full analytics pass:
// aggregation, KPI derivation, and anomaly detection. It is a stateless
// function of (records, settings); concurrent calls need no coordination.
func Process(records []Record, settings map[string]string) Result {
	return ProcessWithOptions(records, settings, DefaultDetectorOptions())
}

// ProcessWithOptions is Process with explicit anomaly-detector calibration.
func ProcessWithOptions(records []Record, settings map[string]string, opts DetectorOptions) Result {
	normalized := Normalize(records)

	summaries, subtotals, stats := Aggregate(normalized, settings)

	return Result{
		Records:        normalized,
		FleetSummaries: summaries,
		DailySubtotals: subtotals,
		Stats:          stats,
		Anomalies:      DetectAnomalies(normalized, opts),
	}
}

// Aggregate groups normalized records into per-fleet summaries, per-day
// subtotals, and the dashboard KPI snapshot. Empty input yields zero values
// throughout rather than an error.
func Aggregate(records []Record, settings map[string]string) ([]FleetSummary, []DailySubtotal, DashboardStats) {
	if len(records) == 0 {
		return nil, nil, DashboardStats{TopPerformingFleet: NoFleet}
	}

	type fleetAgg struct {
		total float64
		count int
	}
	byFleet := make(map[string]*fleetAgg)

	type dayFleetKey struct {
		date  time.Time
		fleet string
	}
	byDayFleet := make(map[dayFleetKey]*fleetAgg)

	var totalRevenue float64
	for _, r := range records {
		totalRevenue += r.Amount

		fa := byFleet[r.Fleet]
		if fa == nil {
			fa = &fleetAgg{}
			byFleet[r.Fleet] = fa
		}
		fa.total += r.Amount
		fa.count++

		dk := dayFleetKey{date: r.Date, fleet: r.Fleet}
		da := byDayFleet[dk]
		if da == nil {
			da = &fleetAgg{}
			byDayFleet[dk] = da
		}
		da.total += r.Amount
		da.count++
	}

	fleets := make([]string, 0, len(byFleet))
	for fleet := range byFleet {
		fleets = append(fleets, fleet)
	}
	sort.Strings(fleets)

	summaries := make([]FleetSummary, 0, len(fleets))
	topFleet := NoFleet
	var topTotal float64
	for _, fleet := range fleets {
		agg := byFleet[fleet]
		summaries = append(summaries, FleetSummary{
			Fleet:       fleet,
			TotalAmount: agg.total,
			RecordCount: agg.count,
			Remittance:  Remittance(agg.total, fleet, settings),
		})
		// Ties resolve to the lexicographically smallest code.
		if topFleet == NoFleet || agg.total > topTotal {
			topFleet = fleet
			topTotal = agg.total
		}
	}

	subtotals := make([]DailySubtotal, 0, len(byDayFleet))
	for key, agg := range byDayFleet {
		subtotals = append(subtotals, DailySubtotal{
			Date:       key.date,
			Fleet:      key.fleet,
			DailyTotal: agg.total,
			Pax:        agg.count,
		})
	}
	sort.Slice(subtotals, func(i, j int) bool {
		if !subtotals[i].Date.Equal(subtotals[j].Date) {
			return subtotals[i].Date.Before(subtotals[j].Date)
		}
		return subtotals[i].Fleet < subtotals[j].Fleet
	})

	totalRecords := len(records)
	stats := DashboardStats{
		TotalRevenue:        totalRevenue,
		TotalRecords:        totalRecords,
		TopPerformingFleet:  topFleet,
		AverageTripRevenue:  totalRevenue / float64(totalRecords),
		PredictedRevenue:    predictRevenue(records),
		RevenueTrendPercent: revenueTrend(records),
	}
	return summaries, subtotals, stats
}

// revenueTrend compares the revenue of the last 7 days against the 7 days
// before them, anchored at the latest date present. A fixed two-window
// comparison, not a rolling average.
func revenueTrend(records []Record) float64 {
	if len(records) == 0 {
		return 0
	}

	maxDate := records[0].Date
	for _, r := range records[1:] {
		if r.Date.After(maxDate) {
			maxDate = r.Date
		}
	}

	windowStart := maxDate.AddDate(0, 0, -trendWindowDays)
	prevStart := maxDate.AddDate(0, 0, -2*trendWindowDays)

	var last, prev float64
	for _, r := range records {
		switch {
		case !r.Date.Before(windowStart):
			last += r.Amount
		case !r.Date.Before(prevStart):
			prev += r.Amount
		}
	}

	if prev <= 0 {
		return 0
	}
	return (last - prev) / prev * 100
}

// predictRevenue forecasts the next day's revenue as a linearly weighted
// average of up to the 14 most recent distinct daily totals. The newest
// date carries the highest weight, decreasing by one per older date down
// to 1 for the oldest considered.
func predictRevenue(records []Record) float64 {
	dailyTotals := make(map[time.Time]float64)
	for _, r := range records {
		dailyTotals[r.Date] += r.Amount
	}
	if len(dailyTotals) == 0 {
		return 0
	}

	dates := make([]time.Time, 0, len(dailyTotals))
	for date := range dailyTotals {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if len(dates) > predictionDateCount {
		dates = dates[:predictionDateCount]
	}

	var weightedSum, totalWeight float64
	for i, date := range dates {
		weight := float64(len(dates) - i)
		weightedSum += dailyTotals[date] * weight
		totalWeight += weight
	}
	return weightedSum / totalWeight
}

package analytics

import "sort"

// topFleetLimit caps the "top fleets" chart series.
const topFleetLimit = 15

// ChartPoint is one labeled value in a chart series.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartData is the pre-aggregated payload for the chart views; sending it
// instead of raw records keeps dashboard responses small.
type ChartData struct {
	RevenueTrend   []ChartPoint `json:"revenue_trend"`
	RevenueByFleet []ChartPoint `json:"revenue_by_fleet"`
	TopFleets      []ChartPoint `json:"top_fleets"`
	Anomalies      []Anomaly    `json:"anomalies"`
}

// Charts derives the chart series from an analytics result: daily revenue
// ascending by date, per-fleet revenue descending by total, and the top
// fleets slice of the latter.
func Charts(result Result) ChartData {
	trendTotals := make(map[string]float64)
	for _, r := range result.Records {
		trendTotals[r.Date.Format("2006-01-02")] += r.Amount
	}
	trend := make([]ChartPoint, 0, len(trendTotals))
	for label, value := range trendTotals {
		trend = append(trend, ChartPoint{Label: label, Value: value})
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Label < trend[j].Label })

	byFleet := make([]ChartPoint, 0, len(result.FleetSummaries))
	for _, s := range result.FleetSummaries {
		byFleet = append(byFleet, ChartPoint{Label: s.Fleet, Value: s.TotalAmount})
	}
	sort.SliceStable(byFleet, func(i, j int) bool { return byFleet[i].Value > byFleet[j].Value })

	top := byFleet
	if len(top) > topFleetLimit {
		top = top[:topFleetLimit]
	}

	return ChartData{
		RevenueTrend:   trend,
		RevenueByFleet: byFleet,
		TopFleets:      top,
		Anomalies:      result.Anomalies,
	}
}

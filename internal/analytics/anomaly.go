package analytics

import (
	"fmt"
	"math"
	"time"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Anomaly flags a record whose amount deviates unusually from its fleet's
// distribution. Derived per call, never persisted by the engine.
type Anomaly struct {
	Date     time.Time `json:"date"`
	Fleet    string    `json:"fleet"`
	Amount   float64   `json:"amount"`
	Reason   string    `json:"reason"`
	Severity string    `json:"severity"`
}

// DetectorOptions tunes the outlier scan. The defaults are operational
// calibration values, not mathematical necessities.
type DetectorOptions struct {
	// MinSamples is the smallest per-fleet record count worth scanning.
	MinSamples int
	// MediumZ and HighZ are the z-score thresholds for medium and high
	// severity flags.
	MediumZ float64
	HighZ   float64
}

// DefaultDetectorOptions returns the calibration used in production.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		MinSamples: 5,
		MediumZ:    2,
		HighZ:      3,
	}
}

// DetectAnomalies runs a per-fleet z-score scan over normalized records.
// Fleets with fewer than MinSamples records or with no variation are
// skipped. Output groups by fleet in first-appearance order and keeps the
// input order within each fleet.
func DetectAnomalies(records []Record, opts DetectorOptions) []Anomaly {
	if opts.MinSamples <= 0 || opts.MediumZ <= 0 || opts.HighZ <= 0 {
		opts = DefaultDetectorOptions()
	}

	var fleets []string
	grouped := make(map[string][]Record)
	for _, r := range records {
		if _, seen := grouped[r.Fleet]; !seen {
			fleets = append(fleets, r.Fleet)
		}
		grouped[r.Fleet] = append(grouped[r.Fleet], r)
	}

	var anomalies []Anomaly
	for _, fleet := range fleets {
		group := grouped[fleet]
		if len(group) < opts.MinSamples || len(group) < 2 {
			continue
		}

		mean, stddev := meanStddev(group)
		if stddev == 0 {
			continue
		}

		for _, r := range group {
			z := math.Abs(r.Amount-mean) / stddev
			switch {
			case z > opts.HighZ:
				anomalies = append(anomalies, Anomaly{
					Date:     r.Date,
					Fleet:    r.Fleet,
					Amount:   r.Amount,
					Reason:   fmt.Sprintf("Significant deviation (Z-score: %.2f)", z),
					Severity: SeverityHigh,
				})
			case z > opts.MediumZ:
				anomalies = append(anomalies, Anomaly{
					Date:     r.Date,
					Fleet:    r.Fleet,
					Amount:   r.Amount,
					Reason:   "Unusual amount for this fleet",
					Severity: SeverityMedium,
				})
			}
		}
	}
	return anomalies
}

// meanStddev returns the sample mean and sample (n-1) standard deviation of
// the group's amounts. Callers guarantee len(group) >= 2.
func meanStddev(group []Record) (mean, stddev float64) {
	var sum float64
	for _, r := range group {
		sum += r.Amount
	}
	mean = sum / float64(len(group))

	var sumSq float64
	for _, r := range group {
		d := r.Amount - mean
		sumSq += d * d
	}
	stddev = math.Sqrt(sumSq / float64(len(group)-1))
	return mean, stddev
}

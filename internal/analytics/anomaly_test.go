package analytics

import (
	"strings"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func fleetRecords(fleet string, amounts ...float64) []Record {
	records := make([]Record, len(amounts))
	for i, amount := range amounts {
		records[i] = Record{Date: day(i + 1), Fleet: fleet, Amount: amount}
	}
	return records
}

func TestDetectAnomalies_OutlierFlagged(t *testing.T) {
	records := fleetRecords("A", 100, 100, 100, 100, 100, 100, 1000)

	anomalies := DetectAnomalies(records, DefaultDetectorOptions())

	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.Fleet != "A" {
		t.Errorf("expected fleet A, got %q", a.Fleet)
	}
	if a.Amount != 1000 {
		t.Errorf("expected amount 1000, got %v", a.Amount)
	}
	if a.Severity != SeverityMedium && a.Severity != SeverityHigh {
		t.Errorf("unexpected severity %q", a.Severity)
	}
}

func TestDetectAnomalies_SmallFleetSkipped(t *testing.T) {
	records := fleetRecords("B", 1, 1000, 1)

	anomalies := DetectAnomalies(records, DefaultDetectorOptions())

	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies for fleet with 3 records, got %d", len(anomalies))
	}
}

func TestDetectAnomalies_NoVariationSkipped(t *testing.T) {
	records := fleetRecords("C", 500, 500, 500, 500, 500, 500)

	anomalies := DetectAnomalies(records, DefaultDetectorOptions())

	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies with zero stddev, got %d", len(anomalies))
	}
}

func TestDetectAnomalies_HighSeverityCarriesZScore(t *testing.T) {
	// Nineteen identical amounts plus one extreme value pushes z past 3.
	records := fleetRecords("D", 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 5000)

	anomalies := DetectAnomalies(records, DefaultDetectorOptions())

	var high *Anomaly
	for i := range anomalies {
		if anomalies[i].Severity == SeverityHigh {
			high = &anomalies[i]
			break
		}
	}
	if high == nil {
		t.Fatal("expected a high severity anomaly")
	}
	if !strings.Contains(high.Reason, "Z-score:") {
		t.Errorf("high severity reason should carry the z-score, got %q", high.Reason)
	}
}

func TestDetectAnomalies_EmptyInput(t *testing.T) {
	if got := DetectAnomalies(nil, DefaultDetectorOptions()); len(got) != 0 {
		t.Errorf("expected no anomalies for empty input, got %d", len(got))
	}
}

func TestDetectAnomalies_CustomThresholds(t *testing.T) {
	records := fleetRecords("E", 100, 110, 90, 105, 95, 100, 160)

	strict := DetectAnomalies(records, DetectorOptions{MinSamples: 5, MediumZ: 1, HighZ: 2})
	lax := DetectAnomalies(records, DetectorOptions{MinSamples: 5, MediumZ: 50, HighZ: 100})

	if len(strict) == 0 {
		t.Error("strict thresholds should flag the 160 outlier")
	}
	if len(lax) != 0 {
		t.Errorf("lax thresholds should flag nothing, got %d", len(lax))
	}
}

func TestDetectAnomalies_MinSamplesOverride(t *testing.T) {
	records := fleetRecords("F", 10, 10, 1000)

	got := DetectAnomalies(records, DetectorOptions{MinSamples: 3, MediumZ: 1, HighZ: 3})
	if len(got) == 0 {
		t.Error("lowering MinSamples should scan the 3-record fleet")
	}
}

func TestDetectAnomalies_GroupsByFleetInFirstAppearanceOrder(t *testing.T) {
	var records []Record
	records = append(records, fleetRecords("X", 10, 10, 10, 10, 10, 500)...)
	records = append(records, fleetRecords("Y", 20, 20, 20, 20, 20, 900)...)

	anomalies := DetectAnomalies(records, DefaultDetectorOptions())

	if len(anomalies) != 2 {
		t.Fatalf("expected 2 anomalies, got %d", len(anomalies))
	}
	if anomalies[0].Fleet != "X" || anomalies[1].Fleet != "Y" {
		t.Errorf("expected fleet grouping X then Y, got %q then %q", anomalies[0].Fleet, anomalies[1].Fleet)
	}
}

package analytics

import (
	"strings"
	"time"
)

// Record is a single dated, fleet-tagged revenue entry. The engine only
// reads records; ownership stays with the caller.
type Record struct {
	ID     int64     `json:"id"`
	Date   time.Time `json:"date"`
	Fleet  string    `json:"fleet"`
	Amount float64   `json:"amount"`
}

// fleetAliases maps legacy fleet labels onto their canonical codes.
var fleetAliases = map[string]string{
	"2010M": "2010",
}

// NormalizeFleet canonicalizes a free-form fleet label: trimmed, uppercased,
// known aliases resolved.
func NormalizeFleet(fleet string) string {
	code := strings.ToUpper(strings.TrimSpace(fleet))
	if canonical, ok := fleetAliases[code]; ok {
		return canonical
	}
	return code
}

// Normalize returns a copy of records with fleet codes canonicalized and
// dates truncated to calendar days. The input slice is not modified.
func Normalize(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Record{
			ID:     r.ID,
			Date:   DateOnly(r.Date),
			Fleet:  NormalizeFleet(r.Fleet),
			Amount: r.Amount,
		}
	}
	return out
}

// DateOnly truncates a timestamp to its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

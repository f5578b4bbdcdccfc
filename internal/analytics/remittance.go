package analytics

import (
	"strconv"
	"strings"
)

// Default remittance multipliers per fleet-code prefix. These mirror the
// contractual rates; codes outside both tiers remit in full.
const (
	remittanceRateTier1 = 0.84
	remittanceRateTier2 = 0.875
)

// remittanceKeyPrefix is the system-setting key prefix for per-prefix rate
// overrides, e.g. "REMITTANCE_1" holds the percentage for "1xxx" codes.
const remittanceKeyPrefix = "REMITTANCE_"

// Remittance computes the portion of revenue owed back for a fleet code.
// A settings entry "REMITTANCE_<first char>" with a numeric percentage
// overrides the built-in tiers; malformed or missing entries fall through
// to the defaults without error.
func Remittance(revenue float64, fleetCode string, settings map[string]string) float64 {
	code := strings.TrimSpace(fleetCode)

	if len(settings) > 0 && code != "" {
		key := remittanceKeyPrefix + code[:1]
		if raw, ok := settings[key]; ok {
			if rate, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				return revenue * (rate / 100)
			}
		}
	}

	switch {
	case strings.HasPrefix(code, "1"):
		return revenue * remittanceRateTier1
	case strings.HasPrefix(code, "2"):
		return revenue * remittanceRateTier2
	}
	return revenue
}

package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetrev/internal/storage"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const queryDateLayout = "2006-01-02"

// parseRecordFilter extracts start_date, end_date, fleets, and limit query
// parameters. Malformed values leave the corresponding dimension unfiltered.
func parseRecordFilter(r *http.Request) storage.RecordFilter {
	var filter storage.RecordFilter

	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("start_date")); v != "" {
		if t, err := time.Parse(queryDateLayout, v); err == nil {
			filter.StartDate = t
		}
	}
	if v := strings.TrimSpace(q.Get("end_date")); v != "" {
		if t, err := time.Parse(queryDateLayout, v); err == nil {
			filter.EndDate = t
		}
	}
	if v := strings.TrimSpace(q.Get("fleets")); v != "" {
		for _, fleet := range strings.Split(v, ",") {
			if fleet = strings.TrimSpace(fleet); fleet != "" {
				filter.Fleets = append(filter.Fleets, fleet)
			}
		}
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	return filter
}

// filterKey builds the cache key for a record filter.
func filterKey(filter storage.RecordFilter) string {
	var b strings.Builder
	if !filter.StartDate.IsZero() {
		b.WriteString(filter.StartDate.Format(queryDateLayout))
	}
	b.WriteByte('|')
	if !filter.EndDate.IsZero() {
		b.WriteString(filter.EndDate.Format(queryDateLayout))
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(filter.Fleets, ","))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(filter.Limit))
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

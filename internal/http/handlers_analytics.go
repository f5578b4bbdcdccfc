package http

import (
	"context"
	"log/slog"
	"net/http"

	"fleetrev/internal/analytics"
	"fleetrev/internal/storage"
)

// loadResult runs one full analytics pass over the stored records matching
// the filter, using the settings currently persisted.
func (s *Server) loadResult(ctx context.Context, filter storage.RecordFilter) (analytics.Result, error) {
	records, err := s.repo.ListRecords(ctx, filter)
	if err != nil {
		return analytics.Result{}, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return analytics.Result{}, err
	}

	return analytics.ProcessWithOptions(records, settings, s.detector), nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	result, err := s.loadResult(r.Context(), parseRecordFilter(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Analytics summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute analytics summary")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	filter := parseRecordFilter(r)
	key := filterKey(filter)

	if stats, found := s.statsCache.Get(key); found {
		slog.DebugContext(r.Context(), "Dashboard stats cache hit", "key", key)
		writeJSON(w, http.StatusOK, stats)
		return
	}

	result, err := s.loadResult(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "Dashboard stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute dashboard stats")
		return
	}

	s.statsCache.Set(key, result.Stats)
	writeJSON(w, http.StatusOK, result.Stats)
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	filter := parseRecordFilter(r)
	key := filterKey(filter)

	if charts, found := s.chartsCache.Get(key); found {
		slog.DebugContext(r.Context(), "Charts cache hit", "key", key)
		writeJSON(w, http.StatusOK, charts)
		return
	}

	result, err := s.loadResult(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "Charts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute chart data")
		return
	}

	charts := analytics.Charts(result)
	s.chartsCache.Set(key, charts)
	writeJSON(w, http.StatusOK, charts)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := s.repo.GetFilterOptions(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Filter options failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load filter options")
		return
	}

	writeJSON(w, http.StatusOK, opts)
}

package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// SettingUpdate is one key-value pair in a PUT /api/settings request.
type SettingUpdate struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.repo.GetSettings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Settings load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var updates []SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body, expected an array of settings")
		return
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no settings provided")
		return
	}

	for _, update := range updates {
		if strings.TrimSpace(update.Key) == "" {
			writeError(w, http.StatusUnprocessableEntity, "setting key cannot be empty")
			return
		}
	}

	for _, update := range updates {
		if err := s.repo.UpsertSetting(r.Context(), update.Key, update.Value, update.Description); err != nil {
			slog.ErrorContext(r.Context(), "Setting save failed", "error", err, "key", update.Key)
			writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}

	// Remittance overrides feed the analytics pass, so cached results are
	// stale after any settings change.
	s.cacheManager.PurgeAll()

	writeJSON(w, http.StatusOK, map[string]int{"updated": len(updates)})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	unreadOnly := q.Get("unread_only") == "true"
	limit := 50
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	notifications, err := s.repo.ListNotifications(r.Context(), unreadOnly, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Notification list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.repo.MarkNotificationRead(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		slog.ErrorContext(r.Context(), "Notification update failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fleetrev/internal/report"
)

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	filter := parseRecordFilter(r)

	result, err := s.loadResult(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "Excel export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute analytics for export")
		return
	}

	settings, err := s.repo.GetSettings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Excel export settings load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings for export")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteExcel(&buf, result, settings); err != nil {
		slog.ErrorContext(r.Context(), "Excel report generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate Excel report")
		return
	}

	filename := fmt.Sprintf("fleet_revenue_report_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.ErrorContext(r.Context(), "Excel report write failed", "error", err)
	}
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	filter := parseRecordFilter(r)

	result, err := s.loadResult(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "PDF export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute analytics for export")
		return
	}

	var buf bytes.Buffer
	if err := report.WritePDF(&buf, result); err != nil {
		slog.ErrorContext(r.Context(), "PDF report generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate PDF report")
		return
	}

	filename := fmt.Sprintf("fleet_revenue_report_%s.pdf", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.ErrorContext(r.Context(), "PDF report write failed", "error", err)
	}
}

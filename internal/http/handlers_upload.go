package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"fleetrev/internal/analytics"
	"fleetrev/internal/ingest"
)

const maxUploadBytes = 64 * 1024 * 1024

// handleUpload accepts one or more CSV/XLSX files in the "files" multipart
// field, imports the parsed records, and reports per-file outcomes.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided, use the 'files' field")
		return
	}

	var files []ingest.File
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("cannot open uploaded file %q", header.Filename))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, ingest.MaxFileSize+1))
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("cannot read uploaded file %q", header.Filename))
			return
		}
		files = append(files, ingest.File{Name: header.Filename, Data: data})
	}

	records, stats := ingest.ParseAll(r.Context(), files)

	if len(records) > 0 {
		inserted, err := s.repo.InsertRecords(r.Context(), analytics.Normalize(records))
		if err != nil {
			slog.ErrorContext(r.Context(), "Record insert failed", "error", err, "records", len(records))
			writeError(w, http.StatusInternalServerError, "failed to save imported records")
			return
		}
		stats.RecordsImported = inserted
	}

	// Cached analytics are stale after any import.
	s.cacheManager.PurgeAll()

	if s.publisher != nil && stats.RecordsImported > 0 {
		if err := s.publisher.PublishImportCompleted(r.Context(), stats.FilesProcessed, stats.RecordsImported); err != nil {
			slog.WarnContext(r.Context(), "Import announcement failed", "error", err)
		}
	}

	slog.InfoContext(r.Context(), "Upload processed",
		"files_processed", stats.FilesProcessed,
		"records_imported", stats.RecordsImported,
		"rows_dropped", stats.RowsDropped,
		"file_errors", len(stats.Errors))

	writeJSON(w, http.StatusOK, stats)
}

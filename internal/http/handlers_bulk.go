package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"tally/internal/bulk"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	format := strings.TrimSpace(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}

	records, err := s.records.Store().List(r.Context(), collection)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	records = filterFromQuery(records, r)

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", collection))
		err = bulk.ExportCSV(w, records)
	case "json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", collection))
		err = bulk.ExportJSON(w, records)
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}
	if err != nil {
		// Headers are already out; log and drop the connection state.
		slog.ErrorContext(r.Context(), "Export failed",
			"collection", collection, "format", format, "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	format := strings.TrimSpace(r.URL.Query().Get("format"))
	if format == "" {
		format = sniffImportFormat(r.Header.Get("Content-Type"))
	}

	var created int
	switch format {
	case "csv":
		created, err = bulk.ImportCSV(r.Context(), s.records, collection, r.Body)
	case "json":
		created, err = bulk.ImportJSON(r.Context(), s.records, collection, r.Body)
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Import failed",
			"collection", collection, "format", format, "created", created, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"created": created,
		})
		return
	}

	if created > 0 {
		s.dashCache.Purge()
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

func sniffImportFormat(contentType string) string {
	switch {
	case strings.Contains(contentType, "csv"):
		return "csv"
	case strings.Contains(contentType, "json"):
		return "json"
	default:
		return ""
	}
}

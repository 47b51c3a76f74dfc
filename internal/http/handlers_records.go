package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"tally/internal/books"
	"tally/internal/report"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	records, err := s.records.Store().List(r.Context(), collection)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	records = filterFromQuery(records, r)

	if records == nil {
		records = []books.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	rec, err := s.records.Store().Get(r.Context(), collection, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var rec books.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.records.Create(r.Context(), collection, rec)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.dashCache.Purge()
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.records.Update(r.Context(), collection, r.PathValue("id"), fields); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.dashCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := s.records.Delete(r.Context(), collection, r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.dashCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

// filterFromQuery applies the shared month/year/search filter when any
// of the parameters is present.
func filterFromQuery(records []books.Record, r *http.Request) []books.Record {
	q := r.URL.Query()
	month := strings.TrimSpace(q.Get("month"))
	year := strings.TrimSpace(q.Get("year"))
	search := strings.TrimSpace(q.Get("q"))
	if month == "" && year == "" && search == "" {
		return records
	}
	if month == "" {
		month = report.All
	}
	if year == "" {
		year = report.All
	}
	return report.Filter(records, month, year, search)
}

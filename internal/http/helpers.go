package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tally/internal/books"
)

// collections routable through the generic record API. Users are
// excluded: they only move through /api/auth.
var apiCollections = map[string]bool{
	books.Clients:     true,
	books.Vendors:     true,
	books.Invoices:    true,
	books.VendorBills: true,
	books.PettyCash:   true,
	books.BankRecords: true,
	books.Salaries:    true,
	books.Expenses:    true,
}

func collectionParam(r *http.Request) (string, error) {
	collection := strings.TrimSpace(r.PathValue("collection"))
	if !apiCollections[collection] {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return collection, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinels onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, books.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, books.ErrConflict):
		writeError(w, http.StatusConflict, "record changed concurrently, retry")
	default:
		slog.ErrorContext(r.Context(), "Store operation failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

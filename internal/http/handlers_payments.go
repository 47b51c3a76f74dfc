package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tally/internal/books"
	"tally/internal/core"
	"tally/internal/services"
)

type linkPaymentRequest struct {
	Kind         string `json:"kind"`
	ObligationID string `json:"obligationId"`
	Amount       int64  `json:"amount"`
	Account      string `json:"account"`
}

func (s *Server) handleLinkPayment(w http.ResponseWriter, r *http.Request) {
	var req linkPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.payments.Link(r.Context(), services.LinkRequest{
		Kind:         services.ObligationKind(req.Kind),
		ObligationID: req.ObligationID,
		Amount:       req.Amount,
		Account:      services.SettlementAccount(req.Account),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownKind), errors.Is(err, services.ErrUnknownAccount),
			errors.Is(err, core.ErrInvalidAmount):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, services.ErrAlreadySettled):
			writeError(w, http.StatusConflict, "obligation already settled")
		case errors.Is(err, books.ErrNotFound):
			writeError(w, http.StatusNotFound, "obligation not found")
		case errors.Is(err, books.ErrConflict):
			writeError(w, http.StatusConflict, "record changed concurrently, retry")
		default:
			slog.ErrorContext(r.Context(), "Payment link failed",
				"kind", req.Kind, "obligation", req.ObligationID, "error", err)
			writeError(w, http.StatusInternalServerError, "payment link failed")
		}
		return
	}

	s.dashCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunRetainers(w http.ResponseWriter, r *http.Request) {
	created, err := s.retainer.GenerateDue(r.Context(), time.Now())
	if err != nil {
		slog.ErrorContext(r.Context(), "Retainer run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "retainer generation failed")
		return
	}

	if created > 0 {
		s.dashCache.Purge()
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pickem/internal/money"
)

// ClaimResponse reports the amount moved by a claim or quoted for one.
type ClaimResponse struct {
	SeriesKey string       `json:"series_key"`
	Amount    money.Amount `json:"amount"`
	Display   string       `json:"display"`
}

func claimResponse(key string, amount money.Amount) ClaimResponse {
	return ClaimResponse{SeriesKey: key, Amount: amount, Display: amount.Display()}
}

// handleClaimPrize handles POST /api/series/{key}/claim-prize
func (h *Handler) handleClaimPrize(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	amount, err := h.ledger.ClaimPrize(r.Context(), key, callerOrEmpty(r))
	if err != nil {
		writeLedgerError(w, r, "claim_prize_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse(key, amount))
}

// handleClaimRefund handles POST /api/series/{key}/claim-refund
func (h *Handler) handleClaimRefund(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	amount, err := h.ledger.ClaimRefund(r.Context(), key, callerOrEmpty(r))
	if err != nil {
		writeLedgerError(w, r, "claim_refund_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse(key, amount))
}

// handleQuote previews the caller's prize without claiming it.
func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	amount, err := h.ledger.QuotePrize(r.Context(), key, callerOrEmpty(r))
	if err != nil {
		writeLedgerError(w, r, "quote_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse(key, amount))
}

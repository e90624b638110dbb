package handlers

import (
	"net/http"

	"pickem/internal/ledger"
)

// handleUserSeries handles GET /api/users/{address}/series
func (h *Handler) handleUserSeries(w http.ResponseWriter, r *http.Request) {
	address, ok := parseAddressParam(w, r)
	if !ok {
		return
	}
	keys, err := h.ledger.GetUserSeries(r.Context(), address)
	if err != nil {
		writeLedgerError(w, r, "user_series_failed", err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, keys)
}

// handleJournal handles GET /api/users/{address}/journal
func (h *Handler) handleJournal(w http.ResponseWriter, r *http.Request) {
	address, ok := parseAddressParam(w, r)
	if !ok {
		return
	}
	journal, err := h.ledger.GetJournal(r.Context(), address)
	if err != nil {
		writeLedgerError(w, r, "journal_failed", err)
		return
	}
	if journal == nil {
		journal = []ledger.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, journal)
}

package handlers

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pickem/internal/ledger"
	"pickem/internal/logger"
	"pickem/internal/money"
)

// EnterRequest is the request body for entering a series.
// Handle and Proof are 0x-prefixed hex produced by the encryption relayer.
type EnterRequest struct {
	Side   string        `json:"side"`
	Handle ledger.Handle `json:"handle"`
	Proof  string        `json:"proof"`
	Paid   string        `json:"paid"`
}

// HandleResponse is the response for the confidential handle lookup
type HandleResponse struct {
	Participant ledger.Address `json:"participant"`
	Handle      ledger.Handle  `json:"handle"`
}

// handleEnter handles POST /api/series/{key}/entries
func (h *Handler) handleEnter(w http.ResponseWriter, r *http.Request) {
	caller := callerOrEmpty(r)

	var req EnterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug(string(caller), "enter_invalid_body", "error="+err.Error())
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	paid, err := money.Parse(req.Paid)
	if err != nil {
		logger.Debug(string(caller), "enter_invalid_amount", "paid="+req.Paid)
		writeError(w, http.StatusBadRequest, "Invalid paid amount")
		return
	}
	proof, err := hex.DecodeString(strings.TrimPrefix(req.Proof, "0x"))
	if err != nil {
		logger.Debug(string(caller), "enter_invalid_proof_encoding", "error="+err.Error())
		writeError(w, http.StatusBadRequest, "Invalid proof encoding")
		return
	}
	// an unparseable side is rejected by the ledger after the fee and
	// duplicate checks
	side, _ := ledger.ParseSide(req.Side)

	entry, err := h.ledger.Enter(r.Context(), ledger.EnterRequest{
		Key:    chi.URLParam(r, "key"),
		Side:   side,
		Handle: req.Handle,
		Proof:  proof,
		Paid:   paid,
		Caller: caller,
	})
	if err != nil {
		writeLedgerError(w, r, "enter_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleEntrants handles GET /api/series/{key}/entries
func (h *Handler) handleEntrants(w http.ResponseWriter, r *http.Request) {
	entrants, err := h.ledger.GetEntrants(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeLedgerError(w, r, "entrants_list_failed", err)
		return
	}
	if entrants == nil {
		entrants = []ledger.Address{}
	}
	writeJSON(w, http.StatusOK, entrants)
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	address, ok := parseAddressParam(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	entry, err := h.ledger.GetEntry(r.Context(), key, address)
	if err != nil {
		writeLedgerError(w, r, "entry_get_failed", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No entry for %s in %s", address, key))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleGetHandle(w http.ResponseWriter, r *http.Request) {
	address, ok := parseAddressParam(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	handle, found, err := h.ledger.GetEntryConfidentialHandle(r.Context(), key, address)
	if err != nil {
		writeLedgerError(w, r, "handle_get_failed", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No entry for %s in %s", address, key))
		return
	}
	writeJSON(w, http.StatusOK, HandleResponse{Participant: address, Handle: handle})
}

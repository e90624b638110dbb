package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pickem/internal/ledger"
	"pickem/internal/logger"
	"pickem/internal/money"
)

// ConfigResponse carries the creation limits.
type ConfigResponse struct {
	MinEntryFee        money.Amount   `json:"min_entry_fee"`
	MinEntryFeeDisplay string         `json:"min_entry_fee_display"`
	MinDurationSeconds int64          `json:"min_duration_seconds"`
	MaxDurationSeconds int64          `json:"max_duration_seconds"`
	Organizer          ledger.Address `json:"organizer"`
}

// CreateSeriesRequest is the request body for creating a series
type CreateSeriesRequest struct {
	Key             string `json:"key"`
	TeamA           string `json:"team_a"`
	TeamB           string `json:"team_b"`
	EntryFee        string `json:"entry_fee"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// SettleRequest is the request body for settling a series
type SettleRequest struct {
	Winner string `json:"winner"`
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	p := h.ledger.Params()
	writeJSON(w, http.StatusOK, ConfigResponse{
		MinEntryFee:        p.MinEntryFee,
		MinEntryFeeDisplay: p.MinEntryFee.Display(),
		MinDurationSeconds: int64(p.MinDuration / time.Second),
		MaxDurationSeconds: int64(p.MaxDuration / time.Second),
		Organizer:          h.ledger.Organizer(),
	})
}

// handleListSeries handles GET /api/series
func (h *Handler) handleListSeries(w http.ResponseWriter, r *http.Request) {
	keys, err := h.ledger.ListSeries(r.Context())
	if err != nil {
		writeLedgerError(w, r, "series_list_error", err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, keys)
}

// handleCreateSeries handles POST /api/series
func (h *Handler) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	caller := callerOrEmpty(r)

	var req CreateSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug(string(caller), "series_create_invalid_body", "error="+err.Error())
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fee, err := money.Parse(req.EntryFee)
	if err != nil {
		logger.Debug(string(caller), "series_create_invalid_fee", "entry_fee="+req.EntryFee)
		writeError(w, http.StatusBadRequest, "Invalid entry_fee")
		return
	}
	if req.DurationSeconds <= 0 {
		logger.Debug(string(caller), "series_create_invalid_duration", fmt.Sprintf("duration_seconds=%d", req.DurationSeconds))
		writeError(w, http.StatusBadRequest, "duration_seconds must be positive")
		return
	}

	s, err := h.ledger.CreateSeries(r.Context(), caller, ledger.CreateSeriesRequest{
		Key:      req.Key,
		TeamA:    req.TeamA,
		TeamB:    req.TeamB,
		EntryFee: fee,
		Duration: time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		writeLedgerError(w, r, "series_create_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, ledger.SeriesView{Series: s, State: ledger.StateOpen})
}

// handleGetSeries handles GET /api/series/{key}
func (h *Handler) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	view, err := h.ledger.GetSeriesView(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeLedgerError(w, r, "series_get_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handlePickCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.ledger.GetPickCounts(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeLedgerError(w, r, "picks_get_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// handleSettle handles POST /api/series/{key}/settle
func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	caller := callerOrEmpty(r)

	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug(string(caller), "settle_invalid_body", "error="+err.Error())
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// an unknown winner stays unresolved; Settle reports it after its own checks
	winner, _ := ledger.ParseSide(req.Winner)

	s, err := h.ledger.Settle(r.Context(), chi.URLParam(r, "key"), winner, caller)
	if err != nil {
		writeLedgerError(w, r, "settle_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.SeriesView{Series: s, State: ledger.StateSettled})
}

// handleCancel handles POST /api/series/{key}/cancel
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	s, err := h.ledger.Cancel(r.Context(), chi.URLParam(r, "key"), callerOrEmpty(r))
	if err != nil {
		writeLedgerError(w, r, "cancel_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.SeriesView{Series: s, State: ledger.StateCancelled})
}

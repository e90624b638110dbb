package handlers

import (
	"net/http"
	"time"
)

// PingResponse is the response for the ping endpoint
type PingResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// handlePing answers GET /api/ping with the ledger clock, so clients can
// compare it against lock deadlines.
func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{Status: "ok", Time: h.ledger.Now()})
}

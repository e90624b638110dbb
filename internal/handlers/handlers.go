// Package handlers exposes the ledger over a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"pickem/internal/auth"
	"pickem/internal/ledger"
	"pickem/internal/logger"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Message string `json:"message"`
	Code    uint32 `json:"code,omitempty"`
}

// Handler serves the API for one ledger.
type Handler struct {
	ledger *ledger.Ledger
}

func NewHandler(l *ledger.Ledger) *Handler {
	return &Handler{ledger: l}
}

// Routes builds the router. Reads are public; every mutation needs a signed caller.
func (h *Handler) Routes(validator *auth.Validator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(validator.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.handlePing)
		r.Get("/config", h.handleConfig)

		r.Get("/series", h.handleListSeries)
		r.With(auth.RequireCaller).Post("/series", h.handleCreateSeries)

		r.Route("/series/{key}", func(r chi.Router) {
			r.Get("/", h.handleGetSeries)
			r.Get("/picks", h.handlePickCounts)
			r.Get("/entries", h.handleEntrants)
			r.Get("/entries/{address}", h.handleGetEntry)
			r.Get("/entries/{address}/handle", h.handleGetHandle)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireCaller)

				r.Post("/entries", h.handleEnter)
				r.Post("/settle", h.handleSettle)
				r.Post("/cancel", h.handleCancel)
				r.Post("/claim-prize", h.handleClaimPrize)
				r.Post("/claim-refund", h.handleClaimRefund)
				r.Get("/quote", h.handleQuote)
			})
		})

		r.Get("/users/{address}/series", h.handleUserSeries)
		r.Get("/users/{address}/journal", h.handleJournal)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Message: msg})
}

// statusFor maps ledger errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrDuplicateKey),
		errors.Is(err, ledger.ErrAlreadyEntered),
		errors.Is(err, ledger.ErrAlreadyClaimed),
		errors.Is(err, ledger.ErrAlreadySettledOrCancelled),
		errors.Is(err, ledger.ErrSeriesClosed),
		errors.Is(err, ledger.ErrSeriesLocked),
		errors.Is(err, ledger.ErrNotYetLocked),
		errors.Is(err, ledger.ErrNotSettled):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrIncorrectFee):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrNotAWinner),
		errors.Is(err, ledger.ErrNotEligible),
		errors.Is(err, ledger.ErrInvalidConfidentialProof):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidFee),
		errors.Is(err, ledger.ErrInvalidDuration),
		errors.Is(err, ledger.ErrInvalidRequest),
		errors.Is(err, ledger.ErrInvalidSide),
		errors.Is(err, ledger.ErrInvalidOutcome):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeLedgerError logs the failure and writes the mapped status. Internal
// errors are not echoed to the client.
func writeLedgerError(w http.ResponseWriter, r *http.Request, action string, err error) {
	caller, _ := auth.GetCallerFromContext(r.Context())
	logger.Debug(string(caller), action, "path="+r.URL.Path+" error="+err.Error())

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, "Internal error")
		return
	}
	resp := ErrorResponse{Message: err.Error()}
	if coded, ok := rootCode(err); ok {
		resp.Code = coded
	}
	writeJSON(w, status, resp)
}

// rootCode finds the registered ledger error code in err's chain.
func rootCode(err error) (uint32, bool) {
	for _, sentinel := range ledgerErrors {
		if errors.Is(err, sentinel) {
			return sentinel.ABCICode(), true
		}
	}
	return 0, false
}

var ledgerErrors = []interface {
	error
	ABCICode() uint32
}{
	ledger.ErrDuplicateKey, ledger.ErrInvalidFee, ledger.ErrInvalidDuration, ledger.ErrNotFound,
	ledger.ErrSeriesClosed, ledger.ErrSeriesLocked, ledger.ErrIncorrectFee, ledger.ErrAlreadyEntered,
	ledger.ErrInvalidConfidentialProof, ledger.ErrAlreadySettledOrCancelled, ledger.ErrNotYetLocked,
	ledger.ErrNotSettled, ledger.ErrNotAWinner, ledger.ErrNotEligible, ledger.ErrAlreadyClaimed,
	ledger.ErrUnauthorized, ledger.ErrInvalidRequest, ledger.ErrInvalidSide, ledger.ErrInvalidOutcome,
	ledger.ErrTransferFailed,
}

// callerOrEmpty returns the signed caller, or "" on anonymous reads.
func callerOrEmpty(r *http.Request) ledger.Address {
	caller, _ := auth.GetCallerFromContext(r.Context())
	return caller
}

func parseAddressParam(w http.ResponseWriter, r *http.Request) (ledger.Address, bool) {
	address, err := ledger.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		logger.Debug(string(callerOrEmpty(r)), "invalid_address_param", "path="+r.URL.Path)
		writeError(w, http.StatusBadRequest, "Invalid address")
		return "", false
	}
	return address, true
}

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"pickem/internal/ledger"
	"pickem/internal/logger"
)

// HeaderName carries the signed caller identity.
const HeaderName = "X-Pickem-Init-Data"

// ContextKey is the key type for context values
type ContextKey string

const (
	// CallerKey is the context key for the authenticated address
	CallerKey ContextKey = "caller"
)

// DefaultMaxAge bounds how old auth_date may be.
const DefaultMaxAge = 24 * time.Hour

// Validator checks init data signed by the gateway.
type Validator struct {
	Secret []byte
	MaxAge time.Duration
	Now    func() time.Time
}

// NewValidator returns a validator with the default max age and wall clock.
func NewValidator(secret string) *Validator {
	return &Validator{Secret: []byte(secret), MaxAge: DefaultMaxAge, Now: time.Now}
}

// dataCheckString joins every field except hash as key=value lines sorted by key.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	return strings.Join(lines, "\n")
}

func (v *Validator) mac(values url.Values) string {
	h := hmac.New(sha256.New, v.Secret)
	h.Write([]byte(dataCheckString(values)))
	return hex.EncodeToString(h.Sum(nil))
}

// Sign produces init data for address issued at authDate.
func (v *Validator) Sign(address ledger.Address, authDate time.Time) string {
	values := url.Values{}
	values.Set("address", string(address))
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("hash", v.mac(values))
	return values.Encode()
}

// ValidateInitData checks the HMAC-SHA256 signature and the auth_date and
// returns the signed address.
func (v *Validator) ValidateInitData(initData string) (ledger.Address, error) {
	if len(v.Secret) == 0 {
		return "", fmt.Errorf("auth secret not set")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return "", fmt.Errorf("malformed initData: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return "", fmt.Errorf("hash not found in initData")
	}
	if !hmac.Equal([]byte(hash), []byte(v.mac(values))) {
		return "", fmt.Errorf("invalid hash")
	}

	// Check auth_date (must be less than MaxAge old)
	authDateStr := values.Get("auth_date")
	if authDateStr == "" {
		return "", fmt.Errorf("auth_date not found")
	}
	authDate, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid auth_date format")
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	maxAge := v.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if now().Unix()-authDate > int64(maxAge/time.Second) {
		return "", fmt.Errorf("auth_date is too old")
	}

	address, err := ledger.ParseAddress(values.Get("address"))
	if err != nil {
		return "", fmt.Errorf("failed to parse address: %w", err)
	}
	return address, nil
}

type errorResponse struct {
	Message string `json:"message"`
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(errorResponse{Message: msg})
}

// Middleware resolves the caller from the init data header when present.
// Requests without the header pass through anonymously; a header that fails
// validation is rejected.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for non-API routes and the health check
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api/ping" {
			next.ServeHTTP(w, r)
			return
		}

		initData := r.Header.Get(HeaderName)
		if initData == "" {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := v.ValidateInitData(initData)
		if err != nil {
			logger.Debug("", "auth_failed", err.Error())
			unauthorized(w, "Unauthorized: invalid init data")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
	})
}

// RequireCaller rejects requests that carry no authenticated caller.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetCallerFromContext(r.Context()); !ok {
			unauthorized(w, "Unauthorized: missing "+HeaderName+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ContextWithCaller adds the caller address to the context
func ContextWithCaller(ctx context.Context, caller ledger.Address) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// GetCallerFromContext retrieves the caller address from the context
func GetCallerFromContext(ctx context.Context) (ledger.Address, bool) {
	caller, ok := ctx.Value(CallerKey).(ledger.Address)
	return caller, ok && caller != ""
}

package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storeconsole/internal/compose"
	"storeconsole/internal/gateway"
	"storeconsole/internal/service"
	"storeconsole/internal/session"
	"storeconsole/internal/store"
)

const (
	roleAdmin    = "admin"
	roleOperator = "operator"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (Unix time truncated to the hour).
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	anyRole := []string{roleOperator, roleAdmin}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("POST /api/v1/auth/logout", a.requireAuth(a.handleLogout, anyRole...))

	mux.HandleFunc("GET /api/v1/session/preferences", a.requireAuth(a.handleGetPreferences, anyRole...))
	mux.HandleFunc("PUT /api/v1/session/preferences", a.requireAuth(a.handlePutPreferences, anyRole...))

	mux.HandleFunc("GET /api/v1/workers", a.requireAuth(a.handleWorkers, anyRole...))
	mux.HandleFunc("GET /api/v1/orders", a.requireAuth(a.handleOrders, anyRole...))
	mux.HandleFunc("PUT /api/v1/orders/{id}/delivered-by", a.requireAuth(a.handleOrderDeliveredBy, anyRole...))
	mux.HandleFunc("PUT /api/v1/orders/{id}/state", a.requireAuth(a.handleOrderState, anyRole...))
	mux.HandleFunc("PUT /api/v1/clients/{client}/debts/{id}/state", a.requireAuth(a.handleDebtState, anyRole...))

	mux.HandleFunc("POST /api/v1/products/{id}/discounts", a.requireAuth(a.handleCreateDiscount, roleAdmin))
	mux.HandleFunc("DELETE /api/v1/products/{id}/discounts/{discountId}", a.requireAuth(a.handleDeleteDiscount, roleAdmin))
	mux.HandleFunc("POST /api/v1/pricing/discount-preview", a.requireAuth(a.handleDiscountPreview, anyRole...))

	mux.HandleFunc("POST /api/v1/compose/order", a.requireAuth(a.handleStartOrder, anyRole...))
	mux.HandleFunc("GET /api/v1/compose/order", a.requireAuth(a.handleOrderView, anyRole...))
	mux.HandleFunc("DELETE /api/v1/compose/order", a.requireAuth(a.handleDiscardOrder, anyRole...))
	mux.HandleFunc("GET /api/v1/compose/order/catalog", a.requireAuth(a.handleBrowseCatalog, anyRole...))
	mux.HandleFunc("POST /api/v1/compose/order/items", a.requireAuth(a.handlePickProduct, anyRole...))
	mux.HandleFunc("PUT /api/v1/compose/order/items/{name}", a.requireAuth(a.handleOrderQty, anyRole...))
	mux.HandleFunc("DELETE /api/v1/compose/order/items/{name}", a.requireAuth(a.handleDeleteOrderItem, anyRole...))
	mux.HandleFunc("PUT /api/v1/compose/order/worker", a.requireAuth(a.handlePickWorker, anyRole...))
	mux.HandleFunc("PUT /api/v1/compose/order/anotations", a.requireAuth(a.handleAnotations, anyRole...))
	mux.HandleFunc("PUT /api/v1/compose/order/discount", a.requireAuth(a.handleOrderDiscount, anyRole...))
	mux.HandleFunc("POST /api/v1/compose/order/submit", a.requireAuth(a.handleSubmitOrder, anyRole...))

	mux.HandleFunc("POST /api/v1/compose/debt", a.requireAuth(a.handleStartDebt, anyRole...))
	mux.HandleFunc("GET /api/v1/compose/debt", a.requireAuth(a.handleDebtView, anyRole...))
	mux.HandleFunc("DELETE /api/v1/compose/debt", a.requireAuth(a.handleDiscardDebt, anyRole...))
	mux.HandleFunc("PUT /api/v1/compose/debt/template", a.requireAuth(a.handlePickTemplate, anyRole...))
	mux.HandleFunc("PUT /api/v1/compose/debt/items/{name}", a.requireAuth(a.handleDebtQty, anyRole...))
	mux.HandleFunc("DELETE /api/v1/compose/debt/items/{name}", a.requireAuth(a.handleDeleteDebtItem, anyRole...))
	mux.HandleFunc("PUT /api/v1/compose/debt/payment", a.requireAuth(a.handleDebtPayment, anyRole...))
	mux.HandleFunc("POST /api/v1/compose/debt/submit", a.requireAuth(a.handleSubmitDebt, anyRole...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.Authorize(r.Context(), token)
		if err != nil {
			if errors.Is(err, errInvalidToken) || errors.Is(err, errSessionClosed) {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// csrfExemptPaths are called before the client can hold a CSRF token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces the X-CSRF-Token header on every state-changing method.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

// statusFor maps domain and backend failures onto HTTP statuses. Backend
// sentinels are checked before ErrTransport since submissions wrap both.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, session.ErrNotFound), errors.Is(err, store.ErrInvalidLogin):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, compose.ErrStockExceeded), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrEmptySubmission):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNoWorkspace), errors.Is(err, compose.ErrProductNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, store.ErrInvalidRequest),
		errors.Is(err, compose.ErrInvalidQuantity), errors.Is(err, compose.ErrUnknownWorker), errors.Is(err, compose.ErrReadOnly):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeError hides the cause of 5xx responses from the client.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	switch {
	case status == http.StatusBadGateway:
		zap.L().Warn("backend request failed", zap.Error(err))
		msg = "store backend request failed"
	case status >= 500:
		zap.L().Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

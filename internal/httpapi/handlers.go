package httpapi

import (
	"errors"
	"net/http"
	"time"

	"storeconsole/internal/domain"
	"storeconsole/internal/service"
	"storeconsole/internal/session"
	"storeconsole/internal/store"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, store.ErrInvalidLogin), errors.Is(err, errInactive):
		writeError(w, http.StatusUnauthorized, store.ErrInvalidLogin)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

// handleCSRFToken returns a token valid for the current hour bucket. Clients
// send it in X-CSRF-Token on every mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.service.EndSession(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := a.service.Preferences(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

func (a *API) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req session.Preferences
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	prefs, err := a.service.SetPreferences(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

func (a *API) handleWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := a.service.ListWorkers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": workers})
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	page := parsePositiveLimit(r.URL.Query().Get("page"), 1, 0)
	orders, err := a.service.ListOrders(r.Context(), page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (a *API) handleOrderDeliveredBy(w http.ResponseWriter, r *http.Request) {
	var req domain.DeliveredByRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.SetOrderDeliveredBy(r.Context(), r.PathValue("id"), req.DeliveredBy); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleOrderState(w http.ResponseWriter, r *http.Request) {
	var req domain.StateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.SetOrderState(r.Context(), r.PathValue("id"), req.State); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDebtState(w http.ResponseWriter, r *http.Request) {
	var req domain.StateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.SetDebtState(r.Context(), r.PathValue("client"), r.PathValue("id"), req.State); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req service.DiscountInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	discount, err := a.service.CreateDiscount(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"discount": discount})
}

func (a *API) handleDeleteDiscount(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteDiscount(r.Context(), r.PathValue("id"), r.PathValue("discountId")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDiscountPreview(w http.ResponseWriter, r *http.Request) {
	var req service.DiscountInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	draft, err := a.service.PreviewDiscount(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"discount": draft})
}

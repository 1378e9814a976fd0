package httpapi

import (
	"net/http"
	"strings"
)

type startRequest struct {
	Client string `json:"client"`
}

type pickRequest struct {
	ProductID string `json:"productId"`
}

type qtyRequest struct {
	Qty int `json:"qty"`
}

type workerRequest struct {
	Name string `json:"name"`
}

type anotationsRequest struct {
	Anotations []string `json:"anotations"`
}

type valueRequest struct {
	Value float64 `json:"value"`
}

type templateRequest struct {
	OrderID string `json:"orderId"`
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

func (a *API) handleStartOrder(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.StartOrder(r.Context(), req.Client)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleOrderView(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.OrderView(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDiscardOrder(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DiscardOrder(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleBrowseCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parsePositiveLimit(query.Get("page"), 1, 0)
	view, err := a.service.BrowseCatalog(r.Context(), page, strings.TrimSpace(query.Get("query")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handlePickProduct(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.PickProduct(r.Context(), req.ProductID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleOrderQty(w http.ResponseWriter, r *http.Request) {
	var req qtyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.ChangeOrderQty(r.Context(), r.PathValue("name"), req.Qty)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDeleteOrderItem(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.DeleteOrderItem(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handlePickWorker(w http.ResponseWriter, r *http.Request) {
	var req workerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.PickWorker(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleAnotations(w http.ResponseWriter, r *http.Request) {
	var req anotationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.SetAnotations(r.Context(), req.Anotations)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleOrderDiscount(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.ApplyOrderDiscount(r.Context(), req.Value)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.SubmitOrder(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleStartDebt(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.StartDebt(r.Context(), req.Client)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleDebtView(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.DebtView(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDiscardDebt(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DiscardDebt(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePickTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.PickTemplateOrder(r.Context(), req.OrderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDebtQty(w http.ResponseWriter, r *http.Request) {
	var req qtyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.ChangeDebtQty(r.Context(), r.PathValue("name"), req.Qty)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDeleteDebtItem(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.DeleteDebtItem(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleDebtPayment(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.ApplyDebtPayment(r.Context(), req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleSubmitDebt(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.SubmitDebt(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/middleware"
	"github.com/tableflow/api/internal/model"
)

// KitchenOrderServicer defines the order methods used by kitchen displays.
// Satisfied by *service.OrderService.
type KitchenOrderServicer interface {
	ListKitchenOrders(ctx context.Context, branchID int64) ([]model.Order, error)
	Accept(ctx context.Context, branchID, orderID int64) (model.Order, error)
	MarkReady(ctx context.Context, branchID, orderID int64) (model.Order, error)
}

// KitchenPinServicer defines the kitchen PIN methods.
// Satisfied by *service.KitchenPinService.
type KitchenPinServicer interface {
	Verify(ctx context.Context, branchID int64, pin string) (model.KDSLogin, error)
	Info(ctx context.Context, branchID int64) (model.KitchenPinInfo, error)
	Set(ctx context.Context, branchID int64, pin string) (model.KitchenPinInfo, error)
	Generate(ctx context.Context, branchID int64) (model.KitchenPinInfo, error)
}

// KitchenHandler serves the kitchen display endpoints of a branch.
type KitchenHandler struct {
	orders       KitchenOrderServicer
	pins         KitchenPinServicer
	cookieSecure bool
}

// NewKitchenHandler creates a new KitchenHandler. cookieSecure marks the
// kitchen token cookie Secure.
func NewKitchenHandler(orders KitchenOrderServicer, pins KitchenPinServicer, cookieSecure bool) *KitchenHandler {
	return &KitchenHandler{orders: orders, pins: pins, cookieSecure: cookieSecure}
}

// RegisterPublicRoutes registers the PIN exchange. Mounted at
// /branches/{branchId}/kitchen without authentication.
func (h *KitchenHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/pin/verify", h.VerifyPin)
}

// RegisterOrderRoutes registers the order queue endpoints. Mounted at
// /branches/{branchId}/kitchen behind middleware.KitchenAccess.
func (h *KitchenHandler) RegisterOrderRoutes(r chi.Router) {
	r.Get("/orders", h.ListOrders)
	r.Post("/orders/{id}/accept", h.Accept)
	r.Post("/orders/{id}/ready", h.MarkReady)
}

// RegisterAdminRoutes registers PIN management. Mounted at
// /branches/{branchId}/kitchen behind staff authentication.
func (h *KitchenHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/pin", h.PinInfo)
	r.Post("/pin", h.SetPin)
	r.Post("/pin/generate", h.GeneratePin)
}

// VerifyPin exchanges a correct PIN for a kitchen token, returned in the
// body and as an HttpOnly cookie.
func (h *KitchenHandler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	branchID, ok := middleware.BranchIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}

	var req model.VerifyPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	login, err := h.pins.Verify(r.Context(), branchID, req.Pin)
	if err != nil {
		writeServiceError(w, "verify kitchen pin", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     apiclient.KDSCookie,
		Value:    login.KDSToken,
		Path:     "/",
		Expires:  login.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, login)
}

func (h *KitchenHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	branchID, ok := middleware.BranchIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}

	orders, err := h.orders.ListKitchenOrders(r.Context(), branchID)
	if err != nil {
		writeServiceError(w, "list kitchen orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *KitchenHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, "accept order", h.orders.Accept)
}

func (h *KitchenHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, "mark order ready", h.orders.MarkReady)
}

func (h *KitchenHandler) advance(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, branchID, orderID int64) (model.Order, error)) {
	branchID, ok := middleware.BranchIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}
	orderID, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := fn(r.Context(), branchID, orderID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *KitchenHandler) PinInfo(w http.ResponseWriter, r *http.Request) {
	branchID, ok := middleware.BranchIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}

	info, err := h.pins.Info(r.Context(), branchID)
	if err != nil {
		writeServiceError(w, "get kitchen pin", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *KitchenHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	branchID, ok := middleware.BranchIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}

	var req model.VerifyPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.pins.Set(r.Context(), branchID, req.Pin)
	if err != nil {
		writeServiceError(w, "set kitchen pin", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *KitchenHandler) GeneratePin(w http.ResponseWriter, r *http.Request) {
	branchID, ok := middleware.BranchIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}

	info, err := h.pins.Generate(r.Context(), branchID)
	if err != nil {
		writeServiceError(w, "generate kitchen pin", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

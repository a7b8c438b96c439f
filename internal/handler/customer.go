package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tableflow/api/internal/model"
)

// SessionServicer defines the guest session methods needed by customer handlers.
// Satisfied by *service.SessionService.
type SessionServicer interface {
	Start(ctx context.Context, branchID, tableID int64) (model.GuestSession, error)
	End(ctx context.Context, guestSessionID string) error
	Menu(ctx context.Context, branchID, tableID int64) ([]model.MenuItem, error)
}

// OrderCreator places orders for guests. Satisfied by *service.OrderService.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error)
}

// CustomerHandler serves the unauthenticated ordering endpoints used by
// diners who scanned a table QR code.
type CustomerHandler struct {
	sessions SessionServicer
	orders   OrderCreator
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(sessions SessionServicer, orders OrderCreator) *CustomerHandler {
	return &CustomerHandler{sessions: sessions, orders: orders}
}

// RegisterRoutes registers customer endpoints on the given Chi router.
// Expected to be mounted at /customer.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/session/start", h.StartSession)
	r.Post("/session/end", h.EndSession)
	r.Get("/menu", h.Menu)
	r.Post("/orders", h.CreateOrder)
}

func (h *CustomerHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req model.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BranchID <= 0 || req.TableID <= 0 {
		writeError(w, http.StatusBadRequest, "branchId and tableId are required")
		return
	}

	session, err := h.sessions.Start(r.Context(), req.BranchID, req.TableID)
	if err != nil {
		writeServiceError(w, "start guest session", err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *CustomerHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req model.EndSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GuestSessionID == "" {
		writeError(w, http.StatusBadRequest, "guestSessionId is required")
		return
	}

	if err := h.sessions.End(r.Context(), req.GuestSessionID); err != nil {
		writeServiceError(w, "end guest session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Menu handles GET /customer/menu?branchId=&tableId=.
func (h *CustomerHandler) Menu(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	branchID, err1 := strconv.ParseInt(q.Get("branchId"), 10, 64)
	tableID, err2 := strconv.ParseInt(q.Get("tableId"), 10, 64)
	if err1 != nil || err2 != nil || branchID <= 0 || tableID <= 0 {
		writeError(w, http.StatusBadRequest, "branchId and tableId are required")
		return
	}

	items, err := h.sessions.Menu(r.Context(), branchID, tableID)
	if err != nil {
		writeServiceError(w, "load customer menu", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CustomerHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GuestSessionID == "" {
		writeError(w, http.StatusBadRequest, "guestSessionId is required")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

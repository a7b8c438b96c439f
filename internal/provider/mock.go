package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
)

const mockSessionTTL = 4 * time.Hour

type mockSession struct {
	BranchID  int64
	TableID   int64
	ExpiresAt time.Time
	Ended     bool
}

type mockToken struct {
	BranchID  int64
	ExpiresAt time.Time
}

// Mock is an in-memory Provider seeded with fixture data. It enforces the
// same rules as the backend and fails with the same *apiclient.StatusError
// values, so terminals behave identically against it.
type Mock struct {
	Now func() time.Time

	pin      string
	tokenTTL time.Duration

	mu          sync.Mutex
	menu        []model.MenuItem
	orders      []model.Order
	sessions    map[string]*mockSession
	tokens      map[string]mockToken
	nextOrderID int64
	nextItemID  int64
}

func NewMock(pin string, tokenTTL time.Duration) *Mock {
	now := time.Now()
	menu := fixtureMenu()
	orders := fixtureOrders(now, menu)

	m := &Mock{
		Now:      time.Now,
		pin:      pin,
		tokenTTL: tokenTTL,
		menu:     menu,
		orders:   orders,
		sessions: make(map[string]*mockSession),
		tokens:   make(map[string]mockToken),
	}
	for _, o := range orders {
		m.nextOrderID = max(m.nextOrderID, o.ID)
		for _, it := range o.Items {
			m.nextItemID = max(m.nextItemID, *it.ID)
		}
	}
	return m
}

func mockErr(op string, status int, msg string) error {
	return &apiclient.StatusError{Op: op, StatusCode: status, Message: msg}
}

// --- Customer ---

func (m *Mock) StartSession(_ context.Context, branchID, tableID int64) (model.GuestSession, error) {
	const op = "start session"
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkTable(op, branchID, tableID); err != nil {
		return model.GuestSession{}, err
	}
	id := "mock-session-" + uuid.NewString()
	m.sessions[id] = &mockSession{
		BranchID:  branchID,
		TableID:   tableID,
		ExpiresAt: m.Now().Add(mockSessionTTL),
	}
	return model.GuestSession{GuestSessionID: id, RestaurantID: mockRestaurantID}, nil
}

func (m *Mock) EndSession(_ context.Context, guestSessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[guestSessionID]
	if !ok {
		return mockErr("end session", http.StatusNotFound, "session not found")
	}
	s.Ended = true
	return nil
}

// CustomerMenu returns the whole menu, unavailable items included; filtering
// is the caller's job.
func (m *Mock) CustomerMenu(_ context.Context, branchID, tableID int64) ([]model.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkTable("load menu", branchID, tableID); err != nil {
		return nil, err
	}
	out := make([]model.MenuItem, len(m.menu))
	copy(out, m.menu)
	return out, nil
}

func (m *Mock) SubmitOrder(_ context.Context, req model.CreateOrderRequest) (model.Order, error) {
	const op = "submit order"
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[req.GuestSessionID]
	if !ok {
		return model.Order{}, mockErr(op, http.StatusNotFound, "session not found")
	}
	now := m.Now()
	if s.Ended || !now.Before(s.ExpiresAt) {
		return model.Order{}, mockErr(op, http.StatusBadRequest, "session is no longer active")
	}
	if s.BranchID != req.BranchID || s.TableID != req.TableID {
		return model.Order{}, mockErr(op, http.StatusBadRequest, "session does not belong to this table")
	}
	if len(req.Items) == 0 {
		return model.Order{}, mockErr(op, http.StatusBadRequest, "order must contain at least one item")
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if !model.ValidItemQty(it.Qty) {
			return model.Order{}, mockErr(op, http.StatusBadRequest, fmt.Sprintf("quantity must be between 1 and %d", model.MaxItemQty))
		}
		mi, ok := m.menuItem(it.MenuItemID)
		if !ok || !mi.IsAvailable {
			return model.Order{}, mockErr(op, http.StatusBadRequest, fmt.Sprintf("menu item %d is not available", it.MenuItemID))
		}
		m.nextItemID++
		items = append(items, model.OrderItem{
			ID:           model.Ptr(m.nextItemID),
			MenuItemID:   mi.ID,
			Qty:          it.Qty,
			PriceCents:   model.Ptr(mi.PriceCents),
			MenuItemName: model.Ptr(mi.Name),
			Notes:        it.Notes,
		})
	}

	m.nextOrderID++
	o := model.Order{
		ID:             m.nextOrderID,
		RestaurantID:   mockRestaurantID,
		BranchID:       req.BranchID,
		TableID:        req.TableID,
		TableName:      model.Ptr(tableName(req.TableID)),
		GuestSessionID: model.Ptr(req.GuestSessionID),
		Status:         enum.OrderStatusOrdered,
		Items:          items,
		TotalCents:     model.Ptr(totalCents(items)),
		CreatedAt:      &now,
		UpdatedAt:      &now,
		Notes:          req.Notes,
	}
	m.orders = append(m.orders, o)
	return o.Clone(), nil
}

// --- Kitchen ---

func (m *Mock) VerifyPin(_ context.Context, branchID int64, pin string) (model.KDSLogin, error) {
	const op = "verify kitchen pin"
	if !model.ValidKitchenPin(pin) {
		return model.KDSLogin{}, mockErr(op, http.StatusBadRequest, "pin must be 6 digits")
	}
	if !branchExists(branchID) {
		return model.KDSLogin{}, mockErr(op, http.StatusNotFound, "branch not found")
	}
	if pin != m.pin {
		return model.KDSLogin{}, mockErr(op, http.StatusUnauthorized, "invalid pin")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	token := "mock-kds-" + uuid.NewString()
	exp := m.Now().Add(m.tokenTTL).UTC()
	m.tokens[token] = mockToken{BranchID: branchID, ExpiresAt: exp}
	return model.KDSLogin{BranchID: branchID, KDSToken: token, ExpiresAt: exp}, nil
}

func (m *Mock) KitchenOrders(_ context.Context, branchID int64, cred apiclient.Credentials) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.authorize("list kitchen orders", branchID, cred); err != nil {
		return nil, err
	}
	out := []model.Order{}
	for _, o := range m.orders {
		if o.BranchID == branchID && o.Status.IsActive() {
			out = append(out, o.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(*out[j].CreatedAt)
	})
	return out, nil
}

func (m *Mock) AcceptOrder(_ context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error) {
	return m.advance("accept order", branchID, orderID, enum.OrderStatusPreparing, cred)
}

func (m *Mock) MarkReady(_ context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error) {
	return m.advance("mark order ready", branchID, orderID, enum.OrderStatusPreparedWaiting, cred)
}

// advance moves an order to target. Repeating a transition that already
// happened returns the order unchanged.
func (m *Mock) advance(op string, branchID, orderID int64, target enum.OrderStatus, cred apiclient.Credentials) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.authorize(op, branchID, cred); err != nil {
		return model.Order{}, err
	}
	for i := range m.orders {
		o := &m.orders[i]
		if o.ID != orderID || o.BranchID != branchID {
			continue
		}
		if o.Status == target {
			return o.Clone(), nil
		}
		if !enum.CanAdvance(o.Status, target) {
			return model.Order{}, mockErr(op, http.StatusConflict,
				fmt.Sprintf("invalid status transition from %s to %s", o.Status, target))
		}
		now := m.Now()
		o.Status = target
		o.UpdatedAt = &now
		return o.Clone(), nil
	}
	return model.Order{}, mockErr(op, http.StatusNotFound, "order not found")
}

// SetStatus forces an order's status. It stands in for the waiter and
// cashier flows that move orders out of the kitchen.
func (m *Mock) SetStatus(orderID int64, status enum.OrderStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == orderID {
			m.orders[i].Status = status
			return true
		}
	}
	return false
}

func (m *Mock) authorize(op string, branchID int64, cred apiclient.Credentials) error {
	tok, ok := m.tokens[cred.KDSToken]
	if cred.KDSToken == "" || !ok || !m.Now().Before(tok.ExpiresAt) {
		return &apiclient.StatusError{
			Op:          op,
			StatusCode:  http.StatusUnauthorized,
			Message:     "kitchen PIN required",
			RequiresPin: true,
		}
	}
	if tok.BranchID != branchID {
		return mockErr(op, http.StatusForbidden, "token is not valid for this branch")
	}
	return nil
}

func (m *Mock) menuItem(id int64) (model.MenuItem, bool) {
	for _, mi := range m.menu {
		if mi.ID == id {
			return mi, true
		}
	}
	return model.MenuItem{}, false
}

func branchExists(id int64) bool {
	for _, b := range mockBranches {
		if b.ID == id {
			return true
		}
	}
	return false
}

func checkTable(op string, branchID, tableID int64) error {
	if !branchExists(branchID) {
		return mockErr(op, http.StatusNotFound, "branch not found")
	}
	for _, t := range mockTables {
		if t.ID != tableID || t.BranchID != branchID {
			continue
		}
		if !t.Active {
			return mockErr(op, http.StatusBadRequest, "table is not active")
		}
		return nil
	}
	return mockErr(op, http.StatusNotFound, "table not found")
}

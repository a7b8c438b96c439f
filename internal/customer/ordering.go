package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/tableflow/api/internal/kvstore"
	"github.com/tableflow/api/internal/model"
	"github.com/tableflow/api/internal/provider"
)

// Storage keys for the active guest session.
const (
	sessionKey  = "customerSession"
	branchIDKey = "customerBranchId"
	tableIDKey  = "customerTableId"
)

var (
	ErrNoSession        = errors.New("session missing")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidQuantity  = errors.New("item quantity must be between 1 and 999")
	ErrSubmitInProgress = errors.New("an order is already being placed")
	ErrStartFailed      = errors.New("failed to start session")
	ErrSubmitFailed     = errors.New("failed to place order")
	ErrMenuFailed       = errors.New("failed to load menu")
)

// Session is the guest session a device is bound to after scanning a table.
type Session struct {
	model.GuestSession
	BranchID int64 `json:"branchId"`
	TableID  int64 `json:"tableId"`
}

// Ordering drives the guest flow on one device: bind to a table, browse the
// menu, fill the cart and place orders. At most one submission runs at a
// time.
type Ordering struct {
	Backend provider.Customer
	Store   kvstore.Store
	Cart    *Cart

	mu         sync.Mutex
	session    *Session
	submitting bool
}

// NewOrdering restores the cart and any stored session from store.
func NewOrdering(ctx context.Context, backend provider.Customer, store kvstore.Store) (*Ordering, error) {
	cart, err := LoadCart(ctx, store)
	if err != nil {
		return nil, err
	}
	o := &Ordering{Backend: backend, Store: store, Cart: cart}
	if _, err := o.Resume(ctx); err != nil && !errors.Is(err, ErrNoSession) {
		return nil, err
	}
	return o, nil
}

// Start opens a guest session for the scanned table and persists it. The
// table reference is checked before anything is sent.
func (o *Ordering) Start(ctx context.Context, ref TableRef) (Session, error) {
	if !ref.Valid() {
		return Session{}, ErrInvalidScan
	}
	gs, err := o.Backend.StartSession(ctx, ref.BranchID, ref.TableID)
	if err != nil {
		log.Printf("ERROR: start session branch=%d table=%d: %v", ref.BranchID, ref.TableID, err)
		return Session{}, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	s := Session{GuestSession: gs, BranchID: ref.BranchID, TableID: ref.TableID}
	if err := o.persist(ctx, s); err != nil {
		return Session{}, err
	}

	o.mu.Lock()
	o.session = &s
	o.mu.Unlock()
	return s, nil
}

// StartFromScan parses a scanned payload and starts a session for it.
func (o *Ordering) StartFromScan(ctx context.Context, text string) (Session, error) {
	ref, err := ParseScan(text)
	if err != nil {
		return Session{}, err
	}
	return o.Start(ctx, ref)
}

// Resume reloads the stored session. All three keys must be present.
func (o *Ordering) Resume(ctx context.Context) (Session, error) {
	raw, okSession, err := o.Store.Get(ctx, sessionKey)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	branchRaw, okBranch, err := o.Store.Get(ctx, branchIDKey)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	tableRaw, okTable, err := o.Store.Get(ctx, tableIDKey)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !okSession || !okBranch || !okTable {
		return Session{}, ErrNoSession
	}

	var gs model.GuestSession
	if err := json.Unmarshal([]byte(raw), &gs); err != nil || gs.GuestSessionID == "" {
		return Session{}, ErrNoSession
	}
	branchID, errB := strconv.ParseInt(branchRaw, 10, 64)
	tableID, errT := strconv.ParseInt(tableRaw, 10, 64)
	if errB != nil || errT != nil || branchID <= 0 || tableID <= 0 {
		return Session{}, ErrNoSession
	}

	s := Session{GuestSession: gs, BranchID: branchID, TableID: tableID}
	o.mu.Lock()
	o.session = &s
	o.mu.Unlock()
	return s, nil
}

// Session returns the active session, if any.
func (o *Ordering) Session() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return Session{}, false
	}
	return *o.session, true
}

// LoadMenu returns the items a guest can order at the session's table.
// Unavailable items are filtered out.
func (o *Ordering) LoadMenu(ctx context.Context) ([]model.MenuItem, error) {
	s, ok := o.Session()
	if !ok {
		return nil, ErrNoSession
	}
	items, err := o.Backend.CustomerMenu(ctx, s.BranchID, s.TableID)
	if err != nil {
		log.Printf("ERROR: load menu branch=%d table=%d: %v", s.BranchID, s.TableID, err)
		return nil, fmt.Errorf("%w: %w", ErrMenuFailed, err)
	}
	out := make([]model.MenuItem, 0, len(items))
	for _, it := range items {
		if it.IsAvailable {
			out = append(out, it)
		}
	}
	return out, nil
}

// Submit places the cart as one order. The cart is cleared only after the
// backend accepted the order; on any failure it is left untouched.
func (o *Ordering) Submit(ctx context.Context, notes *string) (model.Order, error) {
	o.mu.Lock()
	if o.submitting {
		o.mu.Unlock()
		return model.Order{}, ErrSubmitInProgress
	}
	s := o.session
	if s == nil {
		o.mu.Unlock()
		return model.Order{}, ErrNoSession
	}
	o.submitting = true
	sess := *s
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.submitting = false
		o.mu.Unlock()
	}()

	lines := o.Cart.Lines()
	if len(lines) == 0 {
		return model.Order{}, ErrEmptyCart
	}
	req := model.CreateOrderRequest{
		GuestSessionID: sess.GuestSessionID,
		BranchID:       sess.BranchID,
		TableID:        sess.TableID,
		Items:          make([]model.OrderItemRequest, 0, len(lines)),
		Notes:          notes,
	}
	for _, l := range lines {
		if !model.ValidItemQty(l.Qty) {
			return model.Order{}, ErrInvalidQuantity
		}
		req.Items = append(req.Items, model.OrderItemRequest{MenuItemID: l.Item.ID, Qty: l.Qty})
	}

	order, err := o.Backend.SubmitOrder(ctx, req)
	if err != nil {
		log.Printf("ERROR: submit order session=%s: %v", sess.GuestSessionID, err)
		return model.Order{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	if err := o.Cart.Clear(ctx); err != nil {
		log.Printf("WARN: order %d placed but cart not cleared: %v", order.ID, err)
	}
	return order, nil
}

// End closes the session on the backend and forgets it locally. The local
// keys are cleared even when the backend call fails.
func (o *Ordering) End(ctx context.Context) error {
	s, ok := o.Session()
	if !ok {
		return ErrNoSession
	}
	err := o.Backend.EndSession(ctx, s.GuestSessionID)
	if err != nil {
		log.Printf("WARN: end session %s: %v", s.GuestSessionID, err)
	}
	if derr := o.Store.Delete(ctx, sessionKey, branchIDKey, tableIDKey); derr != nil {
		return errors.Join(err, fmt.Errorf("clear session: %w", derr))
	}
	o.mu.Lock()
	o.session = nil
	o.mu.Unlock()
	return err
}

func (o *Ordering) persist(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s.GuestSession)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	for _, kv := range [][2]string{
		{sessionKey, string(raw)},
		{branchIDKey, strconv.FormatInt(s.BranchID, 10)},
		{tableIDKey, strconv.FormatInt(s.TableID, 10)},
	} {
		if err := o.Store.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	return nil
}

// Message returns the text shown to a guest for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidScan):
		return "Invalid QR code format."
	case errors.Is(err, ErrStartFailed):
		return "Failed to start session. Please try scanning again."
	case errors.Is(err, ErrNoSession):
		return "Your session has ended. Please scan the table code again."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, ErrSubmitInProgress):
		return "Your order is being placed."
	case errors.Is(err, ErrItemUnavailable):
		return "This item is currently unavailable."
	case errors.Is(err, ErrMenuFailed):
		return "Failed to load menu. Please try again."
	case errors.Is(err, ErrInvalidQuantity):
		return fmt.Sprintf("Quantities must be between 1 and %d.", model.MaxItemQty)
	case errors.Is(err, ErrSubmitFailed):
		return "Failed to place order. Please try again."
	}
	return "Something went wrong. Please try again."
}

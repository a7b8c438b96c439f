package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableflow/api/internal/database"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/events"
	"github.com/tableflow/api/internal/model"
)

// Errors returned by the order service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidQuantity     = errors.New("qty must be between 1 and 999")
	ErrTotalOutOfRange     = errors.New("order total is out of range")
	ErrInvalidSession      = errors.New("invalid guestSessionId")
	ErrSessionNotFound     = errors.New("guest session not found")
	ErrSessionInactive     = errors.New("guest session has ended or expired")
	ErrSessionMismatch     = errors.New("guest session does not belong to this table")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item is not available")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and advance orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetGuestSession(ctx context.Context, id uuid.UUID) (database.GuestSession, error)
	GetMenuItemsByIDs(ctx context.Context, arg database.GetMenuItemsByIDsParams) ([]database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListActiveOrdersByBranch(ctx context.Context, branchID int64) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ListOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService handles order business logic. Every committed change is
// published to the event publisher; publish failures are logged only.
type OrderService struct {
	pool      TxBeginner
	store     OrderStore
	newStore  NewOrderStore
	publisher events.Publisher

	Now func() time.Time
}

func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, publisher events.Publisher) *OrderService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &OrderService{
		pool:      pool,
		store:     store,
		newStore:  newStore,
		publisher: publisher,
		Now:       time.Now,
	}
}

// CreateOrder validates the guest session and items, snapshots menu prices
// and names, and creates the order with its items in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	// --- Validate request shape ---
	if len(req.Items) == 0 {
		return model.Order{}, ErrEmptyItems
	}
	for i, it := range req.Items {
		if !model.ValidItemQty(it.Qty) {
			return model.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
	}
	sessionID, err := uuid.Parse(req.GuestSessionID)
	if err != nil {
		return model.Order{}, ErrInvalidSession
	}

	now := s.Now()
	order, err := s.createOrderTx(ctx, req, sessionID, now)
	if err != nil {
		return model.Order{}, err
	}

	s.publish(ctx, events.Created(order, now))
	return order, nil
}

func (s *OrderService) createOrderTx(ctx context.Context, req model.CreateOrderRequest, sessionID uuid.UUID, now time.Time) (model.Order, error) {
	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Check the guest session ---
	session, err := store.GetGuestSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, ErrSessionNotFound
		}
		return model.Order{}, fmt.Errorf("get guest session: %w", err)
	}
	if session.EndedAt.Valid || !now.Before(session.ExpiresAt) {
		return model.Order{}, ErrSessionInactive
	}
	if session.BranchID != req.BranchID || session.TableID != req.TableID {
		return model.Order{}, ErrSessionMismatch
	}

	// --- Load menu items for price snapshots ---
	ids := make([]int64, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.MenuItemID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	menuRows, err := store.GetMenuItemsByIDs(ctx, database.GetMenuItemsByIDsParams{
		RestaurantID: session.RestaurantID,
		IDs:          ids,
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("get menu items: %w", err)
	}
	menu := make(map[int64]database.MenuItem, len(menuRows))
	for _, m := range menuRows {
		menu[m.ID] = m
	}

	var total int64
	for i, it := range req.Items {
		m, ok := menu[it.MenuItemID]
		if !ok {
			return model.Order{}, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
		}
		if !m.IsAvailable {
			return model.Order{}, fmt.Errorf("item[%d]: %w", i, ErrMenuItemUnavailable)
		}
		qty := int64(it.Qty)
		if m.PriceCents < 0 || m.PriceCents > (math.MaxInt64-total)/qty {
			return model.Order{}, fmt.Errorf("item[%d]: %w", i, ErrTotalOutOfRange)
		}
		total += m.PriceCents * qty
	}

	// --- Insert order ---
	dbOrder, err := store.CreateOrder(ctx, database.CreateOrderParams{
		RestaurantID:   session.RestaurantID,
		BranchID:       session.BranchID,
		TableID:        session.TableID,
		GuestSessionID: pgtype.UUID{Bytes: session.ID, Valid: true},
		Status:         string(enum.OrderStatusOrdered),
		TotalCents:     total,
		Notes:          textFromPtr(req.Notes),
		CreatedAt:      now,
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	items := make([]database.OrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		m := menu[it.MenuItemID]
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:      dbOrder.ID,
			MenuItemID:   m.ID,
			Qty:          int32(it.Qty),
			PriceCents:   m.PriceCents,
			MenuItemName: m.Name,
			Notes:        textFromPtr(it.Notes),
		})
		if err != nil {
			return model.Order{}, fmt.Errorf("item[%d]: create order item: %w", i, err)
		}
		items = append(items, item)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return toModelOrder(dbOrder, items), nil
}

// ListKitchenOrders returns the branch's active orders with items, oldest first.
func (s *OrderService) ListKitchenOrders(ctx context.Context, branchID int64) ([]model.Order, error) {
	rows, err := s.store.ListActiveOrdersByBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	out := make([]model.Order, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]int64, len(rows))
	for i, o := range rows {
		ids[i] = o.ID
	}
	itemRows, err := s.store.ListOrderItemsByOrderIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	byOrder := make(map[int64][]database.OrderItem, len(rows))
	for _, it := range itemRows {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for _, o := range rows {
		out = append(out, toModelOrder(o, byOrder[o.ID]))
	}
	return out, nil
}

// Accept moves an order from ORDERED to PREPARING.
func (s *OrderService) Accept(ctx context.Context, branchID, orderID int64) (model.Order, error) {
	return s.Advance(ctx, branchID, orderID, enum.OrderStatusPreparing)
}

// MarkReady moves an order from PREPARING to PREPARED_WAITING.
func (s *OrderService) MarkReady(ctx context.Context, branchID, orderID int64) (model.Order, error) {
	return s.Advance(ctx, branchID, orderID, enum.OrderStatusPreparedWaiting)
}

// Advance moves an order forward to target. Repeating a transition that
// already happened returns the current order unchanged. The update only
// applies while the order still has the status it was read with; when a
// concurrent change wins, the order is re-read and judged again.
func (s *OrderService) Advance(ctx context.Context, branchID, orderID int64, target enum.OrderStatus) (model.Order, error) {
	const maxAttempts = 2
	for attempt := 0; ; attempt++ {
		current, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, BranchID: branchID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.Order{}, ErrOrderNotFound
			}
			return model.Order{}, fmt.Errorf("get order: %w", err)
		}

		from := enum.OrderStatus(current.Status)
		if from == target {
			return s.withItems(ctx, current)
		}
		if !enum.CanAdvance(from, target) {
			return model.Order{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, target)
		}

		now := s.Now()
		updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:        orderID,
			BranchID:  branchID,
			From:      string(from),
			To:        string(target),
			UpdatedAt: now,
		})
		if errors.Is(err, pgx.ErrNoRows) && attempt+1 < maxAttempts {
			continue
		}
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.Order{}, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
			}
			return model.Order{}, fmt.Errorf("update order status: %w", err)
		}

		order, err := s.withItems(ctx, updated)
		if err != nil {
			return model.Order{}, err
		}
		s.publish(ctx, events.StatusChanged(order, from, now))
		return order, nil
	}
}

func (s *OrderService) withItems(ctx context.Context, o database.Order) (model.Order, error) {
	items, err := s.store.ListOrderItemsByOrderIDs(ctx, []int64{o.ID})
	if err != nil {
		return model.Order{}, fmt.Errorf("list order items: %w", err)
	}
	return toModelOrder(o, items), nil
}

func (s *OrderService) publish(ctx context.Context, ev events.OrderEvent) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("WARN: publish %s for order %d: %v", ev.Type, ev.OrderID, err)
	}
}

// --- Conversions ---

func toModelOrder(o database.Order, items []database.OrderItem) model.Order {
	out := model.Order{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		BranchID:     o.BranchID,
		TableID:      o.TableID,
		Status:       enum.OrderStatus(o.Status),
		Items:        make([]model.OrderItem, 0, len(items)),
		TotalCents:   model.Ptr(o.TotalCents),
		CreatedAt:    model.Ptr(o.CreatedAt),
		UpdatedAt:    model.Ptr(o.UpdatedAt),
		Notes:        ptrFromText(o.Notes),
	}
	if o.TableName != "" {
		out.TableName = model.Ptr(o.TableName)
	}
	if o.GuestSessionID.Valid {
		out.GuestSessionID = model.Ptr(uuid.UUID(o.GuestSessionID.Bytes).String())
	}
	for _, it := range items {
		out.Items = append(out.Items, model.OrderItem{
			ID:           model.Ptr(it.ID),
			MenuItemID:   it.MenuItemID,
			Qty:          int(it.Qty),
			PriceCents:   model.Ptr(it.PriceCents),
			MenuItemName: model.Ptr(it.MenuItemName),
			Notes:        ptrFromText(it.Notes),
		})
	}
	return out
}

func textFromPtr(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func ptrFromText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return model.Ptr(t.String)
}

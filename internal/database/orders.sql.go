package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// orderSelect reads o.* joined with the table name. Queries that modify an
// order wrap it around a CTE named o.
const orderSelect = `
SELECT o.id, o.restaurant_id, o.branch_id, o.table_id, t.name, o.guest_session_id,
       o.status, o.total_cents, o.notes, o.created_at, o.updated_at
`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.BranchID, &o.TableID, &o.TableName, &o.GuestSessionID,
		&o.Status, &o.TotalCents, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

const createOrder = `
WITH o AS (
    INSERT INTO orders (restaurant_id, branch_id, table_id, guest_session_id, status, total_cents, notes, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
    RETURNING *
)` + orderSelect + `
FROM o
JOIN dining_tables t ON t.id = o.table_id
`

type CreateOrderParams struct {
	RestaurantID   int64
	BranchID       int64
	TableID        int64
	GuestSessionID pgtype.UUID
	Status         string
	TotalCents     int64
	Notes          pgtype.Text
	CreatedAt      time.Time
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.RestaurantID, arg.BranchID, arg.TableID, arg.GuestSessionID,
		arg.Status, arg.TotalCents, arg.Notes, arg.CreatedAt,
	))
}

const createOrderItem = `
INSERT INTO order_items (order_id, menu_item_id, qty, price_cents, menu_item_name, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, menu_item_id, qty, price_cents, menu_item_name, notes
`

type CreateOrderItemParams struct {
	OrderID      int64
	MenuItemID   int64
	Qty          int32
	PriceCents   int64
	MenuItemName string
	Notes        pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var i OrderItem
	err := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.MenuItemID, arg.Qty, arg.PriceCents, arg.MenuItemName, arg.Notes,
	).Scan(&i.ID, &i.OrderID, &i.MenuItemID, &i.Qty, &i.PriceCents, &i.MenuItemName, &i.Notes)
	return i, err
}

const getOrder = orderSelect + `
FROM orders o
JOIN dining_tables t ON t.id = o.table_id
WHERE o.id = $1 AND o.branch_id = $2
`

type GetOrderParams struct {
	ID       int64
	BranchID int64
}

// GetOrder returns the order only when it belongs to the branch.
func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.BranchID))
}

const listActiveOrdersByBranch = orderSelect + `
FROM orders o
JOIN dining_tables t ON t.id = o.table_id
WHERE o.branch_id = $1 AND o.status IN ('ORDERED', 'PREPARING', 'PREPARED_WAITING')
ORDER BY o.created_at, o.id
`

// ListActiveOrdersByBranch returns the orders the kitchen still works on,
// oldest first.
func (q *Queries) ListActiveOrdersByBranch(ctx context.Context, branchID int64) ([]Order, error) {
	rows, err := q.db.Query(ctx, listActiveOrdersByBranch, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// updateOrderStatus only matches while the order still has the expected
// status; a concurrent change yields no rows.
const updateOrderStatus = `
WITH o AS (
    UPDATE orders
    SET status = $4, updated_at = $5
    WHERE id = $1 AND branch_id = $2 AND status = $3
    RETURNING *
)` + orderSelect + `
FROM o
JOIN dining_tables t ON t.id = o.table_id
`

type UpdateOrderStatusParams struct {
	ID        int64
	BranchID  int64
	From      string
	To        string
	UpdatedAt time.Time
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.BranchID, arg.From, arg.To, arg.UpdatedAt))
}

const listOrderItemsByOrderIDs = `
SELECT id, order_id, menu_item_id, qty, price_cents, menu_item_name, notes
FROM order_items
WHERE order_id = ANY($1::bigint[])
ORDER BY order_id, id
`

func (q *Queries) ListOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrderIDs, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.MenuItemID, &i.Qty, &i.PriceCents, &i.MenuItemName, &i.Notes); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

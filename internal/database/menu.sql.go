package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const menuItemColumns = `id, restaurant_id, name, description, price_cents, category, is_available`

func scanMenuItems(rows pgx.Rows) ([]MenuItem, error) {
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(
			&m.ID, &m.RestaurantID, &m.Name, &m.Description, &m.PriceCents, &m.Category, &m.IsAvailable,
		); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const listAvailableMenuItems = `
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE restaurant_id = $1 AND is_available
ORDER BY category NULLS LAST, name, id
`

func (q *Queries) ListAvailableMenuItems(ctx context.Context, restaurantID int64) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listAvailableMenuItems, restaurantID)
	if err != nil {
		return nil, err
	}
	return scanMenuItems(rows)
}

const getMenuItemsByIDs = `
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE restaurant_id = $1 AND id = ANY($2::bigint[])
`

type GetMenuItemsByIDsParams struct {
	RestaurantID int64
	IDs          []int64
}

// GetMenuItemsByIDs returns the restaurant's items among IDs. Items of other
// restaurants are left out.
func (q *Queries) GetMenuItemsByIDs(ctx context.Context, arg GetMenuItemsByIDsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, getMenuItemsByIDs, arg.RestaurantID, arg.IDs)
	if err != nil {
		return nil, err
	}
	return scanMenuItems(rows)
}

const createMenuItem = `
INSERT INTO menu_items (restaurant_id, name, description, price_cents, category, is_available)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	RestaurantID int64
	Name         string
	Description  *string
	PriceCents   int64
	Category     *string
	IsAvailable  bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, createMenuItem,
		arg.RestaurantID, arg.Name, arg.Description, arg.PriceCents, arg.Category, arg.IsAvailable,
	).Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Description, &m.PriceCents, &m.Category, &m.IsAvailable)
	return m, err
}

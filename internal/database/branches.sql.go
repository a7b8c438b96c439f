package database

import (
	"context"
	"time"
)

const getBranch = `
SELECT id, restaurant_id, name, kitchen_pin_hash, kitchen_pin_updated_at
FROM branches
WHERE id = $1
`

func (q *Queries) GetBranch(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := q.db.QueryRow(ctx, getBranch, id).Scan(
		&b.ID, &b.RestaurantID, &b.Name, &b.KitchenPinHash, &b.KitchenPinUpdatedAt,
	)
	return b, err
}

const setKitchenPin = `
UPDATE branches
SET kitchen_pin_hash = $2, kitchen_pin_updated_at = $3
WHERE id = $1
RETURNING id, restaurant_id, name, kitchen_pin_hash, kitchen_pin_updated_at
`

type SetKitchenPinParams struct {
	BranchID  int64
	PinHash   string
	UpdatedAt time.Time
}

func (q *Queries) SetKitchenPin(ctx context.Context, arg SetKitchenPinParams) (Branch, error) {
	var b Branch
	err := q.db.QueryRow(ctx, setKitchenPin, arg.BranchID, arg.PinHash, arg.UpdatedAt).Scan(
		&b.ID, &b.RestaurantID, &b.Name, &b.KitchenPinHash, &b.KitchenPinUpdatedAt,
	)
	return b, err
}

const getDiningTable = `
SELECT id, branch_id, name, is_active
FROM dining_tables
WHERE id = $1
`

func (q *Queries) GetDiningTable(ctx context.Context, id int64) (DiningTable, error) {
	var t DiningTable
	err := q.db.QueryRow(ctx, getDiningTable, id).Scan(&t.ID, &t.BranchID, &t.Name, &t.IsActive)
	return t, err
}

const listDiningTables = `
SELECT id, branch_id, name, is_active
FROM dining_tables
WHERE branch_id = $1
ORDER BY id
`

func (q *Queries) ListDiningTables(ctx context.Context, branchID int64) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listDiningTables, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DiningTable
	for rows.Next() {
		var t DiningTable
		if err := rows.Scan(&t.ID, &t.BranchID, &t.Name, &t.IsActive); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const guestSessionColumns = `id, restaurant_id, branch_id, table_id, created_at, expires_at, ended_at`

const createGuestSession = `
INSERT INTO guest_sessions (id, restaurant_id, branch_id, table_id, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + guestSessionColumns

type CreateGuestSessionParams struct {
	ID           uuid.UUID
	RestaurantID int64
	BranchID     int64
	TableID      int64
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (q *Queries) CreateGuestSession(ctx context.Context, arg CreateGuestSessionParams) (GuestSession, error) {
	var s GuestSession
	err := q.db.QueryRow(ctx, createGuestSession,
		arg.ID, arg.RestaurantID, arg.BranchID, arg.TableID, arg.CreatedAt, arg.ExpiresAt,
	).Scan(&s.ID, &s.RestaurantID, &s.BranchID, &s.TableID, &s.CreatedAt, &s.ExpiresAt, &s.EndedAt)
	return s, err
}

const getGuestSession = `
SELECT ` + guestSessionColumns + `
FROM guest_sessions
WHERE id = $1
`

func (q *Queries) GetGuestSession(ctx context.Context, id uuid.UUID) (GuestSession, error) {
	var s GuestSession
	err := q.db.QueryRow(ctx, getGuestSession, id).Scan(
		&s.ID, &s.RestaurantID, &s.BranchID, &s.TableID, &s.CreatedAt, &s.ExpiresAt, &s.EndedAt,
	)
	return s, err
}

// Ending an already ended session keeps the first end time.
const endGuestSession = `
UPDATE guest_sessions
SET ended_at = COALESCE(ended_at, $2)
WHERE id = $1
RETURNING ` + guestSessionColumns

type EndGuestSessionParams struct {
	ID      uuid.UUID
	EndedAt time.Time
}

func (q *Queries) EndGuestSession(ctx context.Context, arg EndGuestSessionParams) (GuestSession, error) {
	var s GuestSession
	err := q.db.QueryRow(ctx, endGuestSession, arg.ID, arg.EndedAt).Scan(
		&s.ID, &s.RestaurantID, &s.BranchID, &s.TableID, &s.CreatedAt, &s.ExpiresAt, &s.EndedAt,
	)
	return s, err
}

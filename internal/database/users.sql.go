package database

import (
	"context"
)

const userColumns = `id, restaurant_id, branch_id, email, hashed_password, full_name, role, is_active`

const getUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND is_active
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByEmail, email).Scan(
		&u.ID, &u.RestaurantID, &u.BranchID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.IsActive,
	)
	return u, err
}

const getUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND is_active
`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByID, id).Scan(
		&u.ID, &u.RestaurantID, &u.BranchID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.IsActive,
	)
	return u, err
}

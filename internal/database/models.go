package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Branch struct {
	ID                  int64
	RestaurantID        int64
	Name                string
	KitchenPinHash      pgtype.Text
	KitchenPinUpdatedAt pgtype.Timestamptz
}

type DiningTable struct {
	ID       int64
	BranchID int64
	Name     string
	IsActive bool
}

type MenuItem struct {
	ID           int64
	RestaurantID int64
	Name         string
	Description  pgtype.Text
	PriceCents   int64
	Category     pgtype.Text
	IsAvailable  bool
}

type User struct {
	ID             int64
	RestaurantID   int64
	BranchID       pgtype.Int8
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
}

type GuestSession struct {
	ID           uuid.UUID
	RestaurantID int64
	BranchID     int64
	TableID      int64
	CreatedAt    time.Time
	ExpiresAt    time.Time
	EndedAt      pgtype.Timestamptz
}

// Order carries the table name joined from dining_tables.
type Order struct {
	ID             int64
	RestaurantID   int64
	BranchID       int64
	TableID        int64
	TableName      string
	GuestSessionID pgtype.UUID
	Status         string
	TotalCents     int64
	Notes          pgtype.Text
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderItem struct {
	ID           int64
	OrderID      int64
	MenuItemID   int64
	Qty          int32
	PriceCents   int64
	MenuItemName string
	Notes        pgtype.Text
}

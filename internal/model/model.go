// Package model holds the JSON wire types exchanged between the ordering
// clients and the order backend. Field names follow the backend contract.
package model

import (
	"time"

	"github.com/tableflow/api/internal/enum"
)

type MenuItem struct {
	ID           int64   `json:"id"`
	RestaurantID int64   `json:"restaurantId"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	PriceCents   int64   `json:"priceCents"`
	Category     *string `json:"category,omitempty"`
	IsAvailable  bool    `json:"isAvailable"`
}

type OrderItem struct {
	ID           *int64  `json:"id,omitempty"`
	MenuItemID   int64   `json:"menuItemId"`
	Qty          int     `json:"qty"`
	PriceCents   *int64  `json:"priceCents,omitempty"`
	MenuItemName *string `json:"menuItemName,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

type Order struct {
	ID             int64            `json:"id"`
	RestaurantID   int64            `json:"restaurantId"`
	BranchID       int64            `json:"branchId"`
	TableID        int64            `json:"tableId"`
	TableName      *string          `json:"tableName,omitempty"`
	GuestSessionID *string          `json:"guestSessionId,omitempty"`
	Status         enum.OrderStatus `json:"status"`
	Items          []OrderItem      `json:"items"`
	TotalCents     *int64           `json:"totalCents,omitempty"`
	CreatedAt      *time.Time       `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time       `json:"updatedAt,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

// StartSessionRequest is the body of POST customer/session/start.
type StartSessionRequest struct {
	BranchID int64 `json:"branchId"`
	TableID  int64 `json:"tableId"`
}

// GuestSession identifies an anonymous diner at one table.
type GuestSession struct {
	GuestSessionID string `json:"guestSessionId"`
	RestaurantID   int64  `json:"restaurantId"`
}

type EndSessionRequest struct {
	GuestSessionID string `json:"guestSessionId"`
}

type OrderItemRequest struct {
	MenuItemID int64   `json:"menuItemId"`
	Qty        int     `json:"qty"`
	Notes      *string `json:"notes,omitempty"`
}

// CreateOrderRequest is the body of POST customer/orders.
type CreateOrderRequest struct {
	GuestSessionID string             `json:"guestSessionId"`
	BranchID       int64              `json:"branchId"`
	TableID        int64              `json:"tableId"`
	Items          []OrderItemRequest `json:"items"`
	Notes          *string            `json:"notes,omitempty"`
}

type VerifyPinRequest struct {
	Pin string `json:"pin"`
}

// KDSLogin is returned by a successful kitchen PIN verification.
type KDSLogin struct {
	BranchID  int64     `json:"branchId"`
	KDSToken  string    `json:"kdsToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// KitchenAuthRequired is the 401 body returned by kitchen endpoints when no
// usable credential was presented.
type KitchenAuthRequired struct {
	RequiresPin bool   `json:"requiresPin"`
	Message     string `json:"message"`
	BranchID    int64  `json:"branchId"`
}

// KitchenPinInfo describes a branch's kitchen PIN. Pin is only populated
// right after a PIN is generated.
type KitchenPinInfo struct {
	BranchID      int64      `json:"branchId"`
	IsSet         bool       `json:"isSet"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"`
	MaskedPin     *string    `json:"maskedPin,omitempty"`
	Pin           *string    `json:"pin,omitempty"`
}

// ErrorResponse is the generic error body written by the backend.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

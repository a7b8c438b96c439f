// Package events publishes order lifecycle events to kitchen terminals and
// downstream consumers.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
)

// OrderEvent describes one change to an order.
type OrderEvent struct {
	Type           string           `json:"type"`
	OrderID        int64            `json:"orderId"`
	RestaurantID   int64            `json:"restaurantId"`
	BranchID       int64            `json:"branchId"`
	TableID        int64            `json:"tableId"`
	Status         enum.OrderStatus `json:"status"`
	PreviousStatus enum.OrderStatus `json:"previousStatus,omitempty"`
	OccurredAt     time.Time        `json:"occurredAt"`
}

// Created builds the event for a newly placed order.
func Created(o model.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:         enum.EventOrderCreated,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		BranchID:     o.BranchID,
		TableID:      o.TableID,
		Status:       o.Status,
		OccurredAt:   at.UTC(),
	}
}

// StatusChanged builds the event for a status transition.
func StatusChanged(o model.Order, from enum.OrderStatus, at time.Time) OrderEvent {
	ev := Created(o, at)
	ev.Type = enum.EventOrderStatusChanged
	ev.PreviousStatus = from
	return ev
}

// Publisher delivers order events.
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// Multi publishes every event to each of its publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev OrderEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) error { return nil }

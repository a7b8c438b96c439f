package kds

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
)

// Action is a forward transition the kitchen can request.
type Action string

const (
	ActionAccept    Action = "accept"
	ActionMarkReady Action = "ready"
)

// Target is the status the order has after the action commits.
func (a Action) Target() enum.OrderStatus {
	if a == ActionAccept {
		return enum.OrderStatusPreparing
	}
	return enum.OrderStatusPreparedWaiting
}

func (a Action) failureMessage() string {
	if a == ActionAccept {
		return "Failed to accept order. Please try again."
	}
	return "Failed to mark order as ready. Please try again."
}

// OrderAdvancer sends kitchen transitions. Satisfied by provider.Kitchen.
type OrderAdvancer interface {
	AcceptOrder(ctx context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error)
	MarkReady(ctx context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error)
}

// Dispatcher sends accept and ready actions for one branch terminal. Only one
// action is in flight per terminal. The board is never patched locally: a
// committed action is followed by a full refetch.
type Dispatcher struct {
	Poller *Poller
	Orders OrderAdvancer

	mu         sync.Mutex
	processing int64
}

func NewDispatcher(poller *Poller, orders OrderAdvancer) *Dispatcher {
	return &Dispatcher{Poller: poller, Orders: orders}
}

// Processing returns the order id with an action in flight, if any.
func (d *Dispatcher) Processing() (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processing, d.processing != 0
}

// Accept moves an ORDERED order to PREPARING.
func (d *Dispatcher) Accept(ctx context.Context, orderID int64) (model.Order, error) {
	return d.dispatch(ctx, ActionAccept, orderID)
}

// MarkReady moves a PREPARING order to PREPARED_WAITING.
func (d *Dispatcher) MarkReady(ctx context.Context, orderID int64) (model.Order, error) {
	return d.dispatch(ctx, ActionMarkReady, orderID)
}

func (d *Dispatcher) dispatch(ctx context.Context, action Action, orderID int64) (model.Order, error) {
	p := d.Poller
	if p.BranchID <= 0 {
		return model.Order{}, ErrInvalidBranch
	}
	if orderID <= 0 {
		return model.Order{}, ErrInvalidOrder
	}

	// A board entry already past the target means another terminal moved it on.
	if o, ok := p.View().Board.Find(orderID); ok && action.Target().Before(o.Status) {
		return model.Order{}, ErrBackwardTransition
	}

	d.mu.Lock()
	if d.processing != 0 {
		d.mu.Unlock()
		return model.Order{}, ErrActionInProgress
	}
	d.processing = orderID
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.processing = 0
		d.mu.Unlock()
	}()

	token, err := p.Gate.Token(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthRequired) {
			return model.Order{}, p.loseAuth(ctx, err)
		}
		return model.Order{}, &ActionError{Action: action, OrderID: orderID, Err: err}
	}

	cred := apiclient.Credentials{KDSToken: token}
	var o model.Order
	if action == ActionAccept {
		o, err = d.Orders.AcceptOrder(ctx, p.BranchID, orderID, cred)
	} else {
		o, err = d.Orders.MarkReady(ctx, p.BranchID, orderID, cred)
	}
	if err != nil {
		if apiclient.IsAuthLoss(err) {
			return model.Order{}, p.loseAuth(ctx, authErr(err))
		}
		log.Printf("ERROR: %s order %d for branch %d: %v", action, orderID, p.BranchID, err)
		return model.Order{}, &ActionError{Action: action, OrderID: orderID, Err: err}
	}

	// The action committed; a failed refetch only shows up as the banner.
	if _, err := p.Fetch(ctx); err != nil {
		log.Printf("WARN: refresh after %s of order %d: %v", action, orderID, err)
	}
	return o, nil
}

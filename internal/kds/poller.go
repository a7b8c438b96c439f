package kds

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
)

// DefaultPollInterval is how often the board is refreshed without a push.
const DefaultPollInterval = 5 * time.Second

// OrderLister lists a branch's kitchen orders. Satisfied by provider.Kitchen.
type OrderLister interface {
	KitchenOrders(ctx context.Context, branchID int64, cred apiclient.Credentials) ([]model.Order, error)
}

// Board is the kitchen view of a branch: one bucket per active status.
// Every active order appears in exactly one bucket.
type Board struct {
	Ordered         []model.Order
	Preparing       []model.Order
	PreparedWaiting []model.Order
	FetchedAt       time.Time
}

// Partition buckets orders by status, keeping backend order within each
// bucket. Orders that are not active are dropped.
func Partition(orders []model.Order) Board {
	b := Board{
		Ordered:         []model.Order{},
		Preparing:       []model.Order{},
		PreparedWaiting: []model.Order{},
	}
	for _, o := range orders {
		switch o.Status {
		case enum.OrderStatusOrdered:
			b.Ordered = append(b.Ordered, o)
		case enum.OrderStatusPreparing:
			b.Preparing = append(b.Preparing, o)
		case enum.OrderStatusPreparedWaiting:
			b.PreparedWaiting = append(b.PreparedWaiting, o)
		}
	}
	return b
}

func (b Board) Len() int {
	return len(b.Ordered) + len(b.Preparing) + len(b.PreparedWaiting)
}

// Find returns the order with id from any bucket.
func (b Board) Find(orderID int64) (model.Order, bool) {
	for _, bucket := range [][]model.Order{b.Ordered, b.Preparing, b.PreparedWaiting} {
		for _, o := range bucket {
			if o.ID == orderID {
				return o, true
			}
		}
	}
	return model.Order{}, false
}

// View is what the kitchen screen renders.
type View struct {
	Board Board
	// Banner is the message of the last failed refresh; empty once a refresh succeeds.
	Banner   string
	NeedsPin bool
}

// Poller keeps a branch Board in sync with the backend. At most one fetch
// runs at a time. A fetch that finishes after its context is cancelled, or
// after Stop, never touches the board.
type Poller struct {
	BranchID int64
	Orders   OrderLister
	Gate     *Gate
	Interval time.Duration
	// OnChange, when set, receives the new view after every board or banner change.
	OnChange func(View)
	Now      func() time.Time

	sem     chan struct{}
	trigger chan struct{}

	life     context.Context
	stopLife context.CancelFunc

	mu   sync.Mutex
	view View
}

func NewPoller(branchID int64, orders OrderLister, gate *Gate, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	life, stop := context.WithCancel(context.Background())
	return &Poller{
		BranchID: branchID,
		Orders:   orders,
		Gate:     gate,
		Interval: interval,
		Now:      time.Now,
		sem:      make(chan struct{}, 1),
		trigger:  make(chan struct{}, 1),
		life:     life,
		stopLife: stop,
		view:     View{Board: Partition(nil)},
	}
}

// View returns the current view.
func (p *Poller) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Fetch refreshes the board, waiting for an in-flight fetch to finish first.
func (p *Poller) Fetch(ctx context.Context) (Board, error) {
	if p.BranchID <= 0 {
		return Board{}, ErrInvalidBranch
	}
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return Board{}, ctx.Err()
	case <-p.life.Done():
		return Board{}, ErrStopped
	}
	defer func() { <-p.sem }()
	return p.fetch(ctx)
}

// TryFetch refreshes the board unless a fetch is already in flight, in which
// case it returns ran=false without doing anything.
func (p *Poller) TryFetch(ctx context.Context) (b Board, ran bool, err error) {
	if p.BranchID <= 0 {
		return Board{}, false, ErrInvalidBranch
	}
	select {
	case p.sem <- struct{}{}:
	default:
		return Board{}, false, nil
	}
	defer func() { <-p.sem }()
	b, err = p.fetch(ctx)
	return b, true, err
}

// fetch runs with p.sem held.
func (p *Poller) fetch(ctx context.Context) (Board, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.life, cancel)
	defer stop()

	if err := p.stoppedErr(ctx); err != nil {
		return Board{}, err
	}

	token, err := p.Gate.Token(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthRequired) {
			return Board{}, p.loseAuth(ctx, err)
		}
		return Board{}, err
	}

	orders, err := p.Orders.KitchenOrders(ctx, p.BranchID, apiclient.Credentials{KDSToken: token})
	if serr := p.stoppedErr(ctx); serr != nil {
		return Board{}, serr
	}
	if err != nil {
		if apiclient.IsAuthLoss(err) {
			return Board{}, p.loseAuth(ctx, authErr(err))
		}
		log.Printf("ERROR: kitchen orders for branch %d: %v", p.BranchID, err)
		err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		if serr := p.commit(ctx, func(v *View) { v.Banner = Message(err) }); serr != nil {
			return Board{}, serr
		}
		return Board{}, err
	}

	b := Partition(orders)
	b.FetchedAt = p.Now()
	if err := p.commit(ctx, func(v *View) {
		v.Board = b
		v.Banner = ""
		v.NeedsPin = false
	}); err != nil {
		return Board{}, err
	}
	return b, nil
}

// stoppedErr reports why results must be discarded, if they must.
func (p *Poller) stoppedErr(ctx context.Context) error {
	if p.life.Err() != nil {
		return ErrStopped
	}
	return ctx.Err()
}

// loseAuth clears the board and the stored token. err is returned unchanged.
func (p *Poller) loseAuth(ctx context.Context, err error) error {
	if ierr := p.Gate.Invalidate(context.WithoutCancel(ctx)); ierr != nil {
		log.Printf("ERROR: clear kds token for branch %d: %v", p.BranchID, ierr)
	}
	p.update(func(v *View) {
		v.Board = Partition(nil)
		v.Banner = Message(err)
		v.NeedsPin = true
	})
	return err
}

// commit applies fn unless the poller was stopped or ctx is done, checked
// under the same lock Stop takes.
func (p *Poller) commit(ctx context.Context, fn func(*View)) error {
	p.mu.Lock()
	if err := p.stoppedErr(ctx); err != nil {
		p.mu.Unlock()
		return err
	}
	fn(&p.view)
	v := p.view
	cb := p.OnChange
	p.mu.Unlock()
	if cb != nil {
		cb(v)
	}
	return nil
}

func (p *Poller) update(fn func(*View)) {
	p.mu.Lock()
	fn(&p.view)
	v := p.view
	cb := p.OnChange
	p.mu.Unlock()
	if cb != nil {
		cb(v)
	}
}

// Trigger asks Run to refresh now. Triggers coalesce while one is pending.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run fetches once, then refreshes on every tick and every Trigger until ctx
// is done, Stop is called, or authorization is lost. Ticks that arrive while
// a fetch is in flight are skipped; triggers wait for it. Transient failures
// keep the last board and are retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	if p.BranchID <= 0 {
		return ErrInvalidBranch
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	_, err := p.Fetch(ctx)
	for {
		if done, rerr := p.runResult(ctx, err); done {
			return rerr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.life.Done():
			return nil
		case <-ticker.C:
			_, _, err = p.TryFetch(ctx)
		case <-p.trigger:
			_, err = p.Fetch(ctx)
		}
	}
}

func (p *Poller) runResult(ctx context.Context, err error) (done bool, _ error) {
	switch {
	case err == nil, errors.Is(err, ErrFetchFailed):
		return false, nil
	case errors.Is(err, ErrStopped):
		return true, nil
	case ctx.Err() != nil:
		return true, ctx.Err()
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrForbidden):
		return true, err
	}
	// Token store failures and the like: keep polling.
	log.Printf("WARN: kitchen poll for branch %d: %v", p.BranchID, err)
	return false, nil
}

// Stop cancels any in-flight fetch and discards its result. Safe to call
// more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLife()
}

func authErr(err error) error {
	if errors.Is(err, apiclient.ErrForbidden) {
		return ErrForbidden
	}
	return ErrAuthRequired
}

package kds_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/kds"
	"github.com/tableflow/api/internal/kvstore"
	"github.com/tableflow/api/internal/model"
)

// fakeKitchen is a function-field fake of the kitchen backend calls.
type fakeKitchen struct {
	listFn   func(ctx context.Context, branchID int64, cred apiclient.Credentials) ([]model.Order, error)
	acceptFn func(ctx context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error)
	readyFn  func(ctx context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error)
	verifyFn func(ctx context.Context, branchID int64, pin string) (model.KDSLogin, error)

	listCalls, acceptCalls, readyCalls, verifyCalls atomic.Int32
}

func (f *fakeKitchen) KitchenOrders(ctx context.Context, branchID int64, cred apiclient.Credentials) ([]model.Order, error) {
	f.listCalls.Add(1)
	if f.listFn == nil {
		return []model.Order{}, nil
	}
	return f.listFn(ctx, branchID, cred)
}

func (f *fakeKitchen) AcceptOrder(ctx context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error) {
	f.acceptCalls.Add(1)
	if f.acceptFn == nil {
		return model.Order{ID: orderID, BranchID: branchID, Status: enum.OrderStatusPreparing}, nil
	}
	return f.acceptFn(ctx, branchID, orderID, cred)
}

func (f *fakeKitchen) MarkReady(ctx context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error) {
	f.readyCalls.Add(1)
	if f.readyFn == nil {
		return model.Order{ID: orderID, BranchID: branchID, Status: enum.OrderStatusPreparedWaiting}, nil
	}
	return f.readyFn(ctx, branchID, orderID, cred)
}

func (f *fakeKitchen) VerifyPin(ctx context.Context, branchID int64, pin string) (model.KDSLogin, error) {
	f.verifyCalls.Add(1)
	if f.verifyFn == nil {
		return model.KDSLogin{BranchID: branchID, KDSToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return f.verifyFn(ctx, branchID, pin)
}

type terminal struct {
	store  *kvstore.Memory
	tokens *kds.TokenStore
	gate   *kds.Gate
	poller *kds.Poller
	disp   *kds.Dispatcher
}

func newTerminal(t *testing.T, branchID int64, k *fakeKitchen) *terminal {
	t.Helper()
	store := kvstore.NewMemory()
	tokens := kds.NewTokenStore(store, time.Minute)
	gate := kds.NewGate(branchID, k, tokens)
	poller := kds.NewPoller(branchID, k, gate, time.Hour)
	t.Cleanup(poller.Stop)
	return &terminal{
		store:  store,
		tokens: tokens,
		gate:   gate,
		poller: poller,
		disp:   kds.NewDispatcher(poller, k),
	}
}

// login stores a valid token for the terminal's branch.
func (tm *terminal) login(t *testing.T) {
	t.Helper()
	require.NoError(t, tm.tokens.Set(context.Background(), model.KDSLogin{
		BranchID:  tm.gate.BranchID,
		KDSToken:  "tok",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
}

func (tm *terminal) hasToken(t *testing.T) bool {
	t.Helper()
	_, ok, err := tm.tokens.Get(context.Background(), tm.gate.BranchID)
	require.NoError(t, err)
	return ok
}

func statusErr(code int, requiresPin bool) error {
	return &apiclient.StatusError{Op: "test", StatusCode: code, Message: "backend says no", RequiresPin: requiresPin}
}

func unauthorized() error { return statusErr(http.StatusUnauthorized, true) }

func order(id int64, status enum.OrderStatus) model.Order {
	return model.Order{ID: id, BranchID: 1, TableID: id, Status: status}
}

func ids(orders []model.Order) []int64 {
	out := make([]int64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

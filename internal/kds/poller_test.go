package kds_test

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/kds"
	"github.com/tableflow/api/internal/model"
)

var allStatuses = []enum.OrderStatus{
	enum.OrderStatusOrdered,
	enum.OrderStatusPreparing,
	enum.OrderStatusPreparedWaiting,
	enum.OrderStatusServed,
	enum.OrderStatusCompleted,
	enum.OrderStatusCancelled,
}

func TestPartition_ExactlyActiveOrdersOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		orders := make([]model.Order, n)
		for i := range orders {
			orders[i] = order(int64(i+1), allStatuses[rng.Intn(len(allStatuses))])
		}

		b := kds.Partition(orders)

		seen := map[int64]int{}
		for status, bucket := range map[enum.OrderStatus][]model.Order{
			enum.OrderStatusOrdered:         b.Ordered,
			enum.OrderStatusPreparing:       b.Preparing,
			enum.OrderStatusPreparedWaiting: b.PreparedWaiting,
		} {
			for _, o := range bucket {
				assert.Equal(t, status, o.Status)
				seen[o.ID]++
			}
		}
		for _, o := range orders {
			if o.Status.IsActive() {
				assert.Equal(t, 1, seen[o.ID], "order %d (%s)", o.ID, o.Status)
			} else {
				assert.Zero(t, seen[o.ID], "order %d (%s)", o.ID, o.Status)
			}
		}
	}
}

func TestPartition_KeepsBackendOrder(t *testing.T) {
	b := kds.Partition([]model.Order{
		order(3, enum.OrderStatusOrdered),
		order(1, enum.OrderStatusOrdered),
		order(2, enum.OrderStatusServed),
		order(4, enum.OrderStatusPreparing),
	})
	assert.Equal(t, []int64{3, 1}, ids(b.Ordered))
	assert.Equal(t, []int64{4}, ids(b.Preparing))
	assert.Empty(t, b.PreparedWaiting)
	assert.Equal(t, 3, b.Len())
}

func TestPoller_InvalidBranchNoNetwork(t *testing.T) {
	k := &fakeKitchen{}
	tm := newTerminal(t, -1, k)

	_, err := tm.poller.Fetch(context.Background())
	assert.ErrorIs(t, err, kds.ErrInvalidBranch)
	assert.ErrorIs(t, tm.poller.Run(context.Background()), kds.ErrInvalidBranch)
	assert.Zero(t, k.listCalls.Load())
}

func TestPoller_NoTokenNoNetwork(t *testing.T) {
	k := &fakeKitchen{}
	tm := newTerminal(t, 1, k)

	_, err := tm.poller.Fetch(context.Background())
	assert.ErrorIs(t, err, kds.ErrAuthRequired)
	assert.Zero(t, k.listCalls.Load())
	assert.True(t, tm.poller.View().NeedsPin)
}

func TestPoller_FetchReplacesBoard(t *testing.T) {
	batch := []model.Order{order(1, enum.OrderStatusOrdered), order(2, enum.OrderStatusPreparing)}
	k := &fakeKitchen{listFn: func(_ context.Context, branchID int64, cred apiclient.Credentials) ([]model.Order, error) {
		assert.Equal(t, int64(1), branchID)
		assert.Equal(t, "tok", cred.KDSToken)
		return batch, nil
	}}
	tm := newTerminal(t, 1, k)
	tm.login(t)

	var views []kds.View
	tm.poller.OnChange = func(v kds.View) { views = append(views, v) }

	b, err := tm.poller.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(b.Ordered))
	assert.False(t, b.FetchedAt.IsZero())

	batch = []model.Order{order(2, enum.OrderStatusPreparedWaiting)}
	_, err = tm.poller.Fetch(context.Background())
	require.NoError(t, err)

	v := tm.poller.View()
	assert.Empty(t, v.Board.Ordered)
	assert.Empty(t, v.Board.Preparing)
	assert.Equal(t, []int64{2}, ids(v.Board.PreparedWaiting))
	assert.Len(t, views, 2)
}

func TestPoller_AuthLossClearsBoardAndToken(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"requires pin", unauthorized(), kds.ErrAuthRequired},
		{"plain 401", statusErr(http.StatusUnauthorized, false), kds.ErrAuthRequired},
		{"forbidden", statusErr(http.StatusForbidden, false), kds.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fail atomic.Bool
			k := &fakeKitchen{listFn: func(context.Context, int64, apiclient.Credentials) ([]model.Order, error) {
				if fail.Load() {
					return nil, tt.err
				}
				return []model.Order{order(1, enum.OrderStatusOrdered)}, nil
			}}
			tm := newTerminal(t, 1, k)
			tm.login(t)

			_, err := tm.poller.Fetch(context.Background())
			require.NoError(t, err)

			fail.Store(true)
			_, err = tm.poller.Fetch(context.Background())
			assert.ErrorIs(t, err, tt.want)

			v := tm.poller.View()
			assert.Zero(t, v.Board.Len())
			assert.True(t, v.NeedsPin)
			assert.False(t, tm.hasToken(t))
			assert.Equal(t, kds.Unauthenticated, tm.gate.State())
		})
	}
}

func TestPoller_TransientErrorKeepsBoard(t *testing.T) {
	var fail atomic.Bool
	k := &fakeKitchen{listFn: func(context.Context, int64, apiclient.Credentials) ([]model.Order, error) {
		if fail.Load() {
			return nil, statusErr(http.StatusBadGateway, false)
		}
		return []model.Order{order(1, enum.OrderStatusOrdered)}, nil
	}}
	tm := newTerminal(t, 1, k)
	tm.login(t)

	_, err := tm.poller.Fetch(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	_, err = tm.poller.Fetch(context.Background())
	assert.ErrorIs(t, err, kds.ErrFetchFailed)

	v := tm.poller.View()
	assert.Equal(t, []int64{1}, ids(v.Board.Ordered))
	assert.Equal(t, "Failed to load orders. Please try again.", v.Banner)
	assert.NotContains(t, v.Banner, "backend says no")
	assert.True(t, tm.hasToken(t))

	fail.Store(false)
	_, err = tm.poller.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tm.poller.View().Banner)
}

func TestPoller_StopDiscardsLateResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	k := &fakeKitchen{listFn: func(context.Context, int64, apiclient.Credentials) ([]model.Order, error) {
		close(started)
		<-release
		return []model.Order{order(1, enum.OrderStatusOrdered)}, nil
	}}
	tm := newTerminal(t, 1, k)
	tm.login(t)

	var changes atomic.Int32
	tm.poller.OnChange = func(kds.View) { changes.Add(1) }

	errCh := make(chan error, 1)
	go func() {
		_, err := tm.poller.Fetch(context.Background())
		errCh <- err
	}()
	<-started
	tm.poller.Stop()
	close(release)

	assert.ErrorIs(t, <-errCh, kds.ErrStopped)
	assert.Zero(t, changes.Load())
	assert.Zero(t, tm.poller.View().Board.Len())

	// Nothing is fetched after Stop.
	_, err := tm.poller.Fetch(context.Background())
	assert.ErrorIs(t, err, kds.ErrStopped)
	assert.NoError(t, tm.poller.Run(context.Background()))
	assert.Equal(t, int32(1), k.listCalls.Load())
}

func TestPoller_StopBeforeBoardWriteDiscardsResult(t *testing.T) {
	k := &fakeKitchen{listFn: func(context.Context, int64, apiclient.Credentials) ([]model.Order, error) {
		return []model.Order{order(1, enum.OrderStatusOrdered)}, nil
	}}
	tm := newTerminal(t, 1, k)
	tm.login(t)

	var changes atomic.Int32
	tm.poller.OnChange = func(kds.View) { changes.Add(1) }
	// Now runs after the response arrived and before the board is written.
	tm.poller.Now = func() time.Time {
		tm.poller.Stop()
		return time.Now()
	}

	_, err := tm.poller.Fetch(context.Background())
	assert.ErrorIs(t, err, kds.ErrStopped)
	assert.Zero(t, changes.Load())
	assert.Zero(t, tm.poller.View().Board.Len())
}

func TestPoller_CancelledContextDiscardsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	k := &fakeKitchen{listFn: func(context.Context, int64, apiclient.Credentials) ([]model.Order, error) {
		cancel()
		return []model.Order{order(1, enum.OrderStatusOrdered)}, nil
	}}
	tm := newTerminal(t, 1, k)
	tm.login(t)

	_, err := tm.poller.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tm.poller.View().Board.Len())
}

func TestPoller_AtMostOneFetchInFlight(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	k := &fakeKitchen{listFn: func(context.Context, int64, apiclient.Credentials) ([]model.Order, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		started <- struct{}{}
		<-release
		return []model.Order{}, nil
	}}
	tm := newTerminal(t, 1, k)
	tm.login(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tm.poller.Fetch(ctx)
			assert.NoError(t, err)
		}()
	}
	<-started

	// A tick while busy is skipped rather than queued.
	_, ran, err := tm.poller.TryFetch(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, int32(3), k.listCalls.Load())
}

func TestPoller_RunStopsOnAuthLoss(t *testing.T) {
	k := &fakeKitchen{listFn: func(context.Context, int64, apiclient.Credentials) ([]model.Order, error) {
		return nil, unauthorized()
	}}
	tm := newTerminal(t, 1, k)
	tm.login(t)

	err := tm.poller.Run(context.Background())
	assert.ErrorIs(t, err, kds.ErrAuthRequired)
	assert.Equal(t, int32(1), k.listCalls.Load())
}

func TestPoller_RunTicksAndTriggers(t *testing.T) {
	k := &fakeKitchen{}
	tm := newTerminal(t, 1, k)
	tm.login(t)
	p := kds.NewPoller(1, k, tm.gate, 20*time.Millisecond)
	t.Cleanup(p.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return k.listCalls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPoller_TriggerRefreshes(t *testing.T) {
	k := &fakeKitchen{}
	tm := newTerminal(t, 1, k)
	tm.login(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tm.poller.Run(ctx) }()

	require.Eventually(t, func() bool { return k.listCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	tm.poller.Trigger()
	assert.Eventually(t, func() bool { return k.listCalls.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

func TestPoller_RunKeepsPollingAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	k := &fakeKitchen{listFn: func(context.Context, int64, apiclient.Credentials) ([]model.Order, error) {
		if calls.Add(1) == 1 {
			return nil, statusErr(http.StatusInternalServerError, false)
		}
		return []model.Order{order(9, enum.OrderStatusOrdered)}, nil
	}}
	tm := newTerminal(t, 1, k)
	tm.login(t)
	p := kds.NewPoller(1, k, tm.gate, 10*time.Millisecond)
	t.Cleanup(p.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		v := p.View()
		return v.Board.Len() == 1 && v.Banner == ""
	}, 2*time.Second, 5*time.Millisecond)
}

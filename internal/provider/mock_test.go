package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/config"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
	"github.com/tableflow/api/internal/provider"
)

func login(t *testing.T, m *provider.Mock, branchID int64) apiclient.Credentials {
	t.Helper()
	l, err := m.VerifyPin(context.Background(), branchID, "123456")
	require.NoError(t, err)
	return apiclient.Credentials{KDSToken: l.KDSToken}
}

func TestNew_SelectsImplementation(t *testing.T) {
	cfg := &config.Config{APIBaseURL: "http://backend/api", MockKitchenPin: "123456", KDSTokenTTL: time.Hour}

	_, isClient := provider.New(cfg).(*apiclient.Client)
	assert.True(t, isClient)

	cfg.UseMockData = true
	_, isMock := provider.New(cfg).(*provider.Mock)
	assert.True(t, isMock)
}

func TestMock_VerifyPin(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	ctx := context.Background()

	_, err := m.VerifyPin(ctx, 1, "12a456")
	assert.ErrorIs(t, err, apiclient.ErrBadRequest)

	_, err = m.VerifyPin(ctx, 99, "123456")
	assert.ErrorIs(t, err, apiclient.ErrNotFound)

	_, err = m.VerifyPin(ctx, 1, "654321")
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)

	l, err := m.VerifyPin(ctx, 1, "123456")
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.BranchID)
	assert.NotEmpty(t, l.KDSToken)
	assert.True(t, l.ExpiresAt.After(time.Now()))
}

func TestMock_KitchenOrdersRequiresToken(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	ctx := context.Background()

	_, err := m.KitchenOrders(ctx, 1, apiclient.Credentials{})
	assert.ErrorIs(t, err, apiclient.ErrAuthRequired)

	cred := login(t, m, 2)
	_, err = m.KitchenOrders(ctx, 1, cred)
	assert.ErrorIs(t, err, apiclient.ErrForbidden)
}

func TestMock_KitchenOrdersActiveOnlyOldestFirst(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	orders, err := m.KitchenOrders(context.Background(), 1, login(t, m, 1))
	require.NoError(t, err)

	require.Len(t, orders, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{orders[0].ID, orders[1].ID, orders[2].ID})
	for _, o := range orders {
		assert.True(t, o.Status.IsActive())
		assert.Equal(t, int64(1), o.BranchID)
	}
}

func TestMock_TokenExpiry(t *testing.T) {
	m := provider.NewMock("123456", time.Minute)
	cred := login(t, m, 1)

	m.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err := m.KitchenOrders(context.Background(), 1, cred)
	assert.ErrorIs(t, err, apiclient.ErrAuthRequired)
}

func TestMock_Transitions(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	ctx := context.Background()
	cred := login(t, m, 1)

	o, err := m.AcceptOrder(ctx, 1, 1, cred)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPreparing, o.Status)

	// Repeating an accept is a no-op.
	o, err = m.AcceptOrder(ctx, 1, 1, cred)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPreparing, o.Status)

	o, err = m.MarkReady(ctx, 1, 1, cred)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPreparedWaiting, o.Status)

	// Backward.
	_, err = m.AcceptOrder(ctx, 1, 1, cred)
	assert.ErrorIs(t, err, apiclient.ErrConflict)
}

func TestMock_MarkReadyFromOrderedConflicts(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	_, err := m.MarkReady(context.Background(), 2, 6, login(t, m, 2))
	assert.ErrorIs(t, err, apiclient.ErrConflict)
}

func TestMock_UnknownOrder(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	_, err := m.AcceptOrder(context.Background(), 1, 6, login(t, m, 1))
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestMock_SubmitOrder(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	ctx := context.Background()

	gs, err := m.StartSession(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gs.RestaurantID)

	o, err := m.SubmitOrder(ctx, model.CreateOrderRequest{
		GuestSessionID: gs.GuestSessionID,
		BranchID:       1,
		TableID:        2,
		Items: []model.OrderItemRequest{
			{MenuItemID: 7, Qty: 2},
			{MenuItemID: 8, Qty: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusOrdered, o.Status)
	assert.Equal(t, int64(400*2+850), *o.TotalCents)
	assert.Equal(t, "Coffee", *o.Items[0].MenuItemName)

	orders, err := m.KitchenOrders(ctx, 1, login(t, m, 1))
	require.NoError(t, err)
	assert.Equal(t, o.ID, orders[len(orders)-1].ID)
}

func TestMock_SubmitOrderRejects(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	ctx := context.Background()
	gs, err := m.StartSession(ctx, 1, 2)
	require.NoError(t, err)

	base := model.CreateOrderRequest{GuestSessionID: gs.GuestSessionID, BranchID: 1, TableID: 2}

	tests := []struct {
		name  string
		items []model.OrderItemRequest
		mod   func(*model.CreateOrderRequest)
		want  error
	}{
		{"empty", nil, nil, apiclient.ErrBadRequest},
		{"zero qty", []model.OrderItemRequest{{MenuItemID: 7, Qty: 0}}, nil, apiclient.ErrBadRequest},
		{"qty above cap", []model.OrderItemRequest{{MenuItemID: 7, Qty: model.MaxItemQty + 1}}, nil, apiclient.ErrBadRequest},
		{"unavailable", []model.OrderItemRequest{{MenuItemID: 5, Qty: 1}}, nil, apiclient.ErrBadRequest},
		{"unknown item", []model.OrderItemRequest{{MenuItemID: 404, Qty: 1}}, nil, apiclient.ErrBadRequest},
		{"other table", []model.OrderItemRequest{{MenuItemID: 7, Qty: 1}}, func(r *model.CreateOrderRequest) { r.TableID = 3 }, apiclient.ErrBadRequest},
		{"unknown session", []model.OrderItemRequest{{MenuItemID: 7, Qty: 1}}, func(r *model.CreateOrderRequest) { r.GuestSessionID = "nope" }, apiclient.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			req.Items = tt.items
			if tt.mod != nil {
				tt.mod(&req)
			}
			_, err := m.SubmitOrder(ctx, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMock_EndedSessionCannotOrder(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	ctx := context.Background()
	gs, err := m.StartSession(ctx, 1, 1)
	require.NoError(t, err)
	require.NoError(t, m.EndSession(ctx, gs.GuestSessionID))

	_, err = m.SubmitOrder(ctx, model.CreateOrderRequest{
		GuestSessionID: gs.GuestSessionID, BranchID: 1, TableID: 1,
		Items: []model.OrderItemRequest{{MenuItemID: 7, Qty: 1}},
	})
	assert.ErrorIs(t, err, apiclient.ErrBadRequest)
}

func TestMock_StartSessionTableChecks(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	ctx := context.Background()

	_, err := m.StartSession(ctx, 1, 6)
	assert.ErrorIs(t, err, apiclient.ErrBadRequest, "inactive table")

	_, err = m.StartSession(ctx, 2, 1)
	assert.ErrorIs(t, err, apiclient.ErrNotFound, "table of another branch")

	_, err = m.StartSession(ctx, 9, 1)
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestMock_MenuIncludesUnavailable(t *testing.T) {
	m := provider.NewMock("123456", time.Hour)
	menu, err := m.CustomerMenu(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Len(t, menu, 8)

	var unavailable int
	for _, mi := range menu {
		if !mi.IsAvailable {
			unavailable++
		}
	}
	assert.Equal(t, 1, unavailable)
}

// Package provider selects where terminals get their data from: the real
// order backend or an in-memory mock with fixture data.
package provider

import (
	"context"
	"log"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/config"
	"github.com/tableflow/api/internal/model"
)

// Provider is the set of backend operations the ordering clients depend on.
// Satisfied by *apiclient.Client and *Mock.
type Provider interface {
	Customer
	Kitchen
}

// Customer covers the guest ordering flow.
type Customer interface {
	StartSession(ctx context.Context, branchID, tableID int64) (model.GuestSession, error)
	EndSession(ctx context.Context, guestSessionID string) error
	CustomerMenu(ctx context.Context, branchID, tableID int64) ([]model.MenuItem, error)
	SubmitOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error)
}

// Kitchen covers the kitchen display flow.
type Kitchen interface {
	KitchenOrders(ctx context.Context, branchID int64, cred apiclient.Credentials) ([]model.Order, error)
	AcceptOrder(ctx context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error)
	MarkReady(ctx context.Context, branchID, orderID int64, cred apiclient.Credentials) (model.Order, error)
	VerifyPin(ctx context.Context, branchID int64, pin string) (model.KDSLogin, error)
}

var (
	_ Provider = (*apiclient.Client)(nil)
	_ Provider = (*Mock)(nil)
)

// New returns the mock provider when cfg.UseMockData is set, otherwise a REST
// client for cfg.APIBaseURL.
func New(cfg *config.Config) Provider {
	if cfg.UseMockData {
		log.Printf("WARN: USE_MOCK_DATA is set, terminals run against fixture data")
		return NewMock(cfg.MockKitchenPin, cfg.KDSTokenTTL)
	}
	return apiclient.New(cfg.APIBaseURL)
}

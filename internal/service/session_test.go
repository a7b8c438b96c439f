package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableflow/api/internal/database"
)

type mockSessionStore struct {
	getBranchFn              func(ctx context.Context, id int64) (database.Branch, error)
	getDiningTableFn         func(ctx context.Context, id int64) (database.DiningTable, error)
	createGuestSessionFn     func(ctx context.Context, arg database.CreateGuestSessionParams) (database.GuestSession, error)
	endGuestSessionFn        func(ctx context.Context, arg database.EndGuestSessionParams) (database.GuestSession, error)
	listAvailableMenuItemsFn func(ctx context.Context, restaurantID int64) ([]database.MenuItem, error)
}

func (m *mockSessionStore) GetBranch(ctx context.Context, id int64) (database.Branch, error) {
	return m.getBranchFn(ctx, id)
}
func (m *mockSessionStore) GetDiningTable(ctx context.Context, id int64) (database.DiningTable, error) {
	return m.getDiningTableFn(ctx, id)
}
func (m *mockSessionStore) CreateGuestSession(ctx context.Context, arg database.CreateGuestSessionParams) (database.GuestSession, error) {
	return m.createGuestSessionFn(ctx, arg)
}
func (m *mockSessionStore) EndGuestSession(ctx context.Context, arg database.EndGuestSessionParams) (database.GuestSession, error) {
	return m.endGuestSessionFn(ctx, arg)
}
func (m *mockSessionStore) ListAvailableMenuItems(ctx context.Context, restaurantID int64) ([]database.MenuItem, error) {
	return m.listAvailableMenuItemsFn(ctx, restaurantID)
}

// newSessionStore serves branch 2 of restaurant 1 with tables 5 (active),
// 6 (inactive) and 7 (branch 3).
func newSessionStore() *mockSessionStore {
	return &mockSessionStore{
		getBranchFn: func(_ context.Context, id int64) (database.Branch, error) {
			if id != 2 && id != 3 {
				return database.Branch{}, pgx.ErrNoRows
			}
			return database.Branch{ID: id, RestaurantID: 1, Name: "Main"}, nil
		},
		getDiningTableFn: func(_ context.Context, id int64) (database.DiningTable, error) {
			switch id {
			case 5:
				return database.DiningTable{ID: 5, BranchID: 2, Name: "T5", IsActive: true}, nil
			case 6:
				return database.DiningTable{ID: 6, BranchID: 2, Name: "T6", IsActive: false}, nil
			case 7:
				return database.DiningTable{ID: 7, BranchID: 3, Name: "T7", IsActive: true}, nil
			}
			return database.DiningTable{}, pgx.ErrNoRows
		},
		createGuestSessionFn: func(_ context.Context, arg database.CreateGuestSessionParams) (database.GuestSession, error) {
			return database.GuestSession{
				ID:           arg.ID,
				RestaurantID: arg.RestaurantID,
				BranchID:     arg.BranchID,
				TableID:      arg.TableID,
				CreatedAt:    arg.CreatedAt,
				ExpiresAt:    arg.ExpiresAt,
			}, nil
		},
		listAvailableMenuItemsFn: func(_ context.Context, restaurantID int64) ([]database.MenuItem, error) {
			return []database.MenuItem{
				{ID: 1, RestaurantID: restaurantID, Name: "Fries", PriceCents: 890, IsAvailable: true,
					Category: pgtype.Text{String: "Sides", Valid: true}},
			}, nil
		},
	}
}

func TestSessionStart(t *testing.T) {
	store := newSessionStore()
	var got database.CreateGuestSessionParams
	create := store.createGuestSessionFn
	store.createGuestSessionFn = func(ctx context.Context, arg database.CreateGuestSessionParams) (database.GuestSession, error) {
		got = arg
		return create(ctx, arg)
	}

	svc := NewSessionService(store, 4*time.Hour)
	svc.Now = func() time.Time { return testNow }

	session, err := svc.Start(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := uuid.Parse(session.GuestSessionID); err != nil {
		t.Errorf("guest session id %q is not a UUID", session.GuestSessionID)
	}
	if session.RestaurantID != 1 {
		t.Errorf("restaurant: got %d, want 1", session.RestaurantID)
	}
	if !got.ExpiresAt.Equal(testNow.Add(4 * time.Hour)) {
		t.Errorf("expires at: got %v", got.ExpiresAt)
	}
	if got.BranchID != 2 || got.TableID != 5 {
		t.Errorf("params: got branch %d table %d", got.BranchID, got.TableID)
	}
}

func TestSessionStart_ResolvesTable(t *testing.T) {
	tests := []struct {
		name     string
		branchID int64
		tableID  int64
		want     error
	}{
		{"unknown branch", 9, 5, ErrBranchNotFound},
		{"unknown table", 2, 99, ErrTableNotFound},
		{"table of other branch", 2, 7, ErrTableNotFound},
		{"inactive table", 2, 6, ErrTableInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newSessionStore()
			store.createGuestSessionFn = func(context.Context, database.CreateGuestSessionParams) (database.GuestSession, error) {
				t.Fatal("session should not be created")
				return database.GuestSession{}, nil
			}
			svc := NewSessionService(store, time.Hour)

			_, err := svc.Start(context.Background(), tt.branchID, tt.tableID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSessionEnd(t *testing.T) {
	id := uuid.New()
	store := newSessionStore()
	var ended uuid.UUID
	store.endGuestSessionFn = func(_ context.Context, arg database.EndGuestSessionParams) (database.GuestSession, error) {
		if arg.ID != id {
			return database.GuestSession{}, pgx.ErrNoRows
		}
		ended = arg.ID
		return database.GuestSession{ID: arg.ID}, nil
	}
	svc := NewSessionService(store, time.Hour)

	if err := svc.End(context.Background(), id.String()); err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended != id {
		t.Errorf("ended: got %v, want %v", ended, id)
	}
	if err := svc.End(context.Background(), uuid.NewString()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session: got %v, want ErrSessionNotFound", err)
	}
	if err := svc.End(context.Background(), "not-a-uuid"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("bad id: got %v, want ErrInvalidSession", err)
	}
}

func TestSessionMenu(t *testing.T) {
	svc := NewSessionService(newSessionStore(), time.Hour)

	items, err := svc.Menu(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("menu: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Fries" {
		t.Fatalf("items: got %+v", items)
	}
	if items[0].Category == nil || *items[0].Category != "Sides" {
		t.Errorf("category: got %v", items[0].Category)
	}
	if items[0].Description != nil {
		t.Errorf("description: got %v, want nil", *items[0].Description)
	}

	if _, err := svc.Menu(context.Background(), 2, 6); !errors.Is(err, ErrTableInactive) {
		t.Errorf("inactive table: got %v, want ErrTableInactive", err)
	}
}

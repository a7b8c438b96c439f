package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tableflow/api/internal/database"
	"github.com/tableflow/api/internal/model"
)

var (
	ErrBranchNotFound = errors.New("branch not found")
	ErrTableNotFound  = errors.New("table not found")
	ErrTableInactive  = errors.New("table is not active")
)

// SessionStore defines the DB methods needed for guest sessions and the
// customer menu. Satisfied by *database.Queries.
type SessionStore interface {
	GetBranch(ctx context.Context, id int64) (database.Branch, error)
	GetDiningTable(ctx context.Context, id int64) (database.DiningTable, error)
	CreateGuestSession(ctx context.Context, arg database.CreateGuestSessionParams) (database.GuestSession, error)
	EndGuestSession(ctx context.Context, arg database.EndGuestSessionParams) (database.GuestSession, error)
	ListAvailableMenuItems(ctx context.Context, restaurantID int64) ([]database.MenuItem, error)
}

// SessionService opens and closes anonymous guest sessions bound to a table.
type SessionService struct {
	store SessionStore
	ttl   time.Duration

	Now func() time.Time
}

func NewSessionService(store SessionStore, ttl time.Duration) *SessionService {
	return &SessionService{store: store, ttl: ttl, Now: time.Now}
}

// Start opens a session at an active table of the branch.
func (s *SessionService) Start(ctx context.Context, branchID, tableID int64) (model.GuestSession, error) {
	branch, err := s.resolveTable(ctx, branchID, tableID)
	if err != nil {
		return model.GuestSession{}, err
	}

	now := s.Now()
	session, err := s.store.CreateGuestSession(ctx, database.CreateGuestSessionParams{
		ID:           uuid.New(),
		RestaurantID: branch.RestaurantID,
		BranchID:     branchID,
		TableID:      tableID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	})
	if err != nil {
		return model.GuestSession{}, fmt.Errorf("create guest session: %w", err)
	}
	return model.GuestSession{
		GuestSessionID: session.ID.String(),
		RestaurantID:   session.RestaurantID,
	}, nil
}

// End closes a session. Ending it twice is not an error.
func (s *SessionService) End(ctx context.Context, guestSessionID string) error {
	id, err := uuid.Parse(guestSessionID)
	if err != nil {
		return ErrInvalidSession
	}
	_, err = s.store.EndGuestSession(ctx, database.EndGuestSessionParams{ID: id, EndedAt: s.Now()})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("end guest session: %w", err)
	}
	return nil
}

// Menu returns the available items of the restaurant owning the table.
func (s *SessionService) Menu(ctx context.Context, branchID, tableID int64) ([]model.MenuItem, error) {
	branch, err := s.resolveTable(ctx, branchID, tableID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAvailableMenuItems(ctx, branch.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	out := make([]model.MenuItem, 0, len(rows))
	for _, m := range rows {
		out = append(out, model.MenuItem{
			ID:           m.ID,
			RestaurantID: m.RestaurantID,
			Name:         m.Name,
			Description:  ptrFromText(m.Description),
			PriceCents:   m.PriceCents,
			Category:     ptrFromText(m.Category),
			IsAvailable:  m.IsAvailable,
		})
	}
	return out, nil
}

func (s *SessionService) resolveTable(ctx context.Context, branchID, tableID int64) (database.Branch, error) {
	branch, err := s.store.GetBranch(ctx, branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Branch{}, ErrBranchNotFound
		}
		return database.Branch{}, fmt.Errorf("get branch: %w", err)
	}
	table, err := s.store.GetDiningTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Branch{}, ErrTableNotFound
		}
		return database.Branch{}, fmt.Errorf("get table: %w", err)
	}
	if table.BranchID != branchID {
		return database.Branch{}, ErrTableNotFound
	}
	if !table.IsActive {
		return database.Branch{}, ErrTableInactive
	}
	return branch, nil
}

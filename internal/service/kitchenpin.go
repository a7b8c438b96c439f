package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tableflow/api/internal/auth"
	"github.com/tableflow/api/internal/database"
	"github.com/tableflow/api/internal/model"
)

var (
	ErrInvalidPinFormat = errors.New("PIN must be 6 digits")
	ErrWrongPin         = errors.New("invalid PIN")
)

// KitchenPinStore defines the DB methods needed for kitchen PINs.
// Satisfied by *database.Queries.
type KitchenPinStore interface {
	GetBranch(ctx context.Context, id int64) (database.Branch, error)
	SetKitchenPin(ctx context.Context, arg database.SetKitchenPinParams) (database.Branch, error)
}

// KitchenPinService manages the per-branch kitchen PIN and exchanges a
// correct PIN for a kitchen display token. PINs are stored bcrypt-hashed.
type KitchenPinService struct {
	store     KitchenPinStore
	jwtSecret string
	tokenTTL  time.Duration

	Now func() time.Time
}

func NewKitchenPinService(store KitchenPinStore, jwtSecret string, tokenTTL time.Duration) *KitchenPinService {
	return &KitchenPinService{store: store, jwtSecret: jwtSecret, tokenTTL: tokenTTL, Now: time.Now}
}

// Verify checks pin against the branch's PIN. A branch without a PIN
// rejects every PIN.
func (s *KitchenPinService) Verify(ctx context.Context, branchID int64, pin string) (model.KDSLogin, error) {
	if !model.ValidKitchenPin(pin) {
		return model.KDSLogin{}, ErrInvalidPinFormat
	}
	branch, err := s.getBranch(ctx, branchID)
	if err != nil {
		return model.KDSLogin{}, err
	}
	if !branch.KitchenPinHash.Valid {
		return model.KDSLogin{}, ErrWrongPin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(branch.KitchenPinHash.String), []byte(pin)); err != nil {
		return model.KDSLogin{}, ErrWrongPin
	}

	token, expiresAt, err := auth.GenerateKDSToken(s.jwtSecret, branchID, s.tokenTTL)
	if err != nil {
		return model.KDSLogin{}, fmt.Errorf("generate kds token: %w", err)
	}
	return model.KDSLogin{BranchID: branchID, KDSToken: token, ExpiresAt: expiresAt}, nil
}

// Info describes the branch's PIN without revealing it.
func (s *KitchenPinService) Info(ctx context.Context, branchID int64) (model.KitchenPinInfo, error) {
	branch, err := s.getBranch(ctx, branchID)
	if err != nil {
		return model.KitchenPinInfo{}, err
	}
	return pinInfo(branch), nil
}

// Set replaces the branch's PIN.
func (s *KitchenPinService) Set(ctx context.Context, branchID int64, pin string) (model.KitchenPinInfo, error) {
	if !model.ValidKitchenPin(pin) {
		return model.KitchenPinInfo{}, ErrInvalidPinFormat
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return model.KitchenPinInfo{}, fmt.Errorf("hash pin: %w", err)
	}
	branch, err := s.store.SetKitchenPin(ctx, database.SetKitchenPinParams{
		BranchID:  branchID,
		PinHash:   string(hash),
		UpdatedAt: s.Now(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.KitchenPinInfo{}, ErrBranchNotFound
		}
		return model.KitchenPinInfo{}, fmt.Errorf("set kitchen pin: %w", err)
	}
	return pinInfo(branch), nil
}

// Generate sets a random PIN and returns it once in the result.
func (s *KitchenPinService) Generate(ctx context.Context, branchID int64) (model.KitchenPinInfo, error) {
	pin, err := RandomPin()
	if err != nil {
		return model.KitchenPinInfo{}, err
	}
	info, err := s.Set(ctx, branchID, pin)
	if err != nil {
		return model.KitchenPinInfo{}, err
	}
	info.Pin = model.Ptr(pin)
	return info, nil
}

// RandomPin returns a uniformly random kitchen PIN.
func RandomPin() (string, error) {
	var b strings.Builder
	for i := 0; i < model.KitchenPinLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate pin: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func (s *KitchenPinService) getBranch(ctx context.Context, branchID int64) (database.Branch, error) {
	branch, err := s.store.GetBranch(ctx, branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Branch{}, ErrBranchNotFound
		}
		return database.Branch{}, fmt.Errorf("get branch: %w", err)
	}
	return branch, nil
}

func pinInfo(b database.Branch) model.KitchenPinInfo {
	info := model.KitchenPinInfo{BranchID: b.ID, IsSet: b.KitchenPinHash.Valid}
	if b.KitchenPinUpdatedAt.Valid {
		info.LastUpdatedAt = model.Ptr(b.KitchenPinUpdatedAt.Time)
	}
	if info.IsSet {
		info.MaskedPin = model.Ptr(strings.Repeat("*", model.KitchenPinLength))
	}
	return info
}

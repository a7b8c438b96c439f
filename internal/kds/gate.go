package kds

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/model"
)

// GateState is the authentication state of one branch terminal.
type GateState int

const (
	Unauthenticated GateState = iota
	Verifying
	Authenticated
)

func (s GateState) String() string {
	switch s {
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	}
	return "unauthenticated"
}

// PinVerifier exchanges a kitchen PIN for a KDS token.
// Satisfied by provider.Kitchen.
type PinVerifier interface {
	VerifyPin(ctx context.Context, branchID int64, pin string) (model.KDSLogin, error)
}

// Gate guards a branch terminal behind its kitchen PIN.
type Gate struct {
	BranchID int64
	Verifier PinVerifier
	Tokens   *TokenStore
	// OnChange, when set, is called after every state change.
	OnChange func(GateState)

	mu    sync.Mutex
	state GateState
}

func NewGate(branchID int64, verifier PinVerifier, tokens *TokenStore) *Gate {
	return &Gate{BranchID: branchID, Verifier: verifier, Tokens: tokens}
}

func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) setState(s GateState) {
	g.mu.Lock()
	changed := g.state != s
	g.state = s
	cb := g.OnChange
	g.mu.Unlock()
	if changed && cb != nil {
		cb(s)
	}
}

// Token returns the stored token for the gate's branch. A missing or expired
// token moves the gate to Unauthenticated and returns ErrAuthRequired.
func (g *Gate) Token(ctx context.Context) (string, error) {
	if g.BranchID <= 0 {
		return "", ErrInvalidBranch
	}
	tok, ok, err := g.Tokens.Get(ctx, g.BranchID)
	if err != nil {
		return "", err
	}
	if !ok {
		if g.State() != Verifying {
			g.setState(Unauthenticated)
		}
		return "", ErrAuthRequired
	}
	if g.State() == Unauthenticated {
		g.setState(Authenticated)
	}
	return tok, nil
}

// Restore reports whether a usable token is already stored, updating the
// state accordingly. Terminals call it on startup to skip PIN entry.
func (g *Gate) Restore(ctx context.Context) (bool, error) {
	_, err := g.Token(ctx)
	if errors.Is(err, ErrAuthRequired) {
		return false, nil
	}
	return err == nil, err
}

// Verify submits pin to the backend. Anything but six digits fails with
// ErrInvalidPinFormat before any network call. Only one verification runs at
// a time; a second call while one is in flight gets ErrVerifyInProgress.
func (g *Gate) Verify(ctx context.Context, pin string) error {
	if g.BranchID <= 0 {
		return ErrInvalidBranch
	}
	if !model.ValidKitchenPin(pin) {
		return ErrInvalidPinFormat
	}

	g.mu.Lock()
	if g.state == Verifying {
		g.mu.Unlock()
		return ErrVerifyInProgress
	}
	g.state = Verifying
	cb := g.OnChange
	g.mu.Unlock()
	if cb != nil {
		cb(Verifying)
	}

	login, err := g.Verifier.VerifyPin(ctx, g.BranchID, pin)
	if err != nil {
		g.setState(Unauthenticated)
		return classifyVerifyError(ctx, g.BranchID, err)
	}

	if login.BranchID == 0 {
		login.BranchID = g.BranchID
	}
	if err := g.Tokens.Set(ctx, login); err != nil {
		log.Printf("ERROR: store kds token for branch %d: %v", g.BranchID, err)
		g.setState(Unauthenticated)
		return ErrVerifyFailed
	}
	g.setState(Authenticated)
	return nil
}

func classifyVerifyError(ctx context.Context, branchID int64, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, apiclient.ErrUnauthorized):
		return ErrWrongPin
	case errors.Is(err, apiclient.ErrBadRequest):
		return ErrPinRejected
	case errors.Is(err, apiclient.ErrNotFound):
		return ErrBranchNotFound
	case errors.Is(err, apiclient.ErrTransport):
		log.Printf("ERROR: verify kitchen pin for branch %d: %v", branchID, err)
		return ErrNetwork
	}
	log.Printf("ERROR: verify kitchen pin for branch %d: %v", branchID, err)
	return ErrVerifyFailed
}

// Invalidate drops the stored token and returns the gate to Unauthenticated.
// Called whenever a kitchen call comes back 401 or 403.
func (g *Gate) Invalidate(ctx context.Context) error {
	g.setState(Unauthenticated)
	return g.Tokens.Clear(ctx, g.BranchID)
}

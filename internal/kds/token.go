// Package kds implements the kitchen display terminal: PIN gate, token
// storage, the order board poller and the order action dispatcher.
package kds

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tableflow/api/internal/kvstore"
	"github.com/tableflow/api/internal/model"
)

const (
	tokenKeyPrefix   = "kdsToken_branch_"
	expiresKeyPrefix = "kdsExpires_branch_"

	// DefaultTokenGrace is how far past expiresAt a stored token is still used.
	DefaultTokenGrace = 5 * time.Minute
)

func tokenKey(branchID int64) string   { return tokenKeyPrefix + strconv.FormatInt(branchID, 10) }
func expiresKey(branchID int64) string { return expiresKeyPrefix + strconv.FormatInt(branchID, 10) }

// TokenStore keeps one KDS token per branch in a kvstore.Store.
//
// A token is trusted until it is more than Grace past its expiry, which
// tolerates clock skew between the terminal and the backend. The backend
// stays the authority: a token it rejects is cleared regardless of Grace.
type TokenStore struct {
	Store kvstore.Store
	Grace time.Duration
	Now   func() time.Time
}

func NewTokenStore(store kvstore.Store, grace time.Duration) *TokenStore {
	if grace <= 0 {
		grace = DefaultTokenGrace
	}
	return &TokenStore{Store: store, Grace: grace, Now: time.Now}
}

// Get returns the stored token for branchID. ok is false when there is no
// token or it expired beyond the grace window; expired and unreadable entries
// are removed from the store.
func (s *TokenStore) Get(ctx context.Context, branchID int64) (token string, ok bool, err error) {
	token, found, err := s.Store.Get(ctx, tokenKey(branchID))
	if err != nil {
		return "", false, fmt.Errorf("read kds token: %w", err)
	}
	if !found || token == "" {
		return "", false, nil
	}

	raw, found, err := s.Store.Get(ctx, expiresKey(branchID))
	if err != nil {
		return "", false, fmt.Errorf("read kds token expiry: %w", err)
	}
	if !found || raw == "" {
		// No expiry recorded; let the backend decide.
		return token, true, nil
	}

	expiresAt, perr := time.Parse(time.RFC3339Nano, raw)
	if perr != nil {
		log.Printf("WARN: kds token for branch %d has unreadable expiry %q, clearing", branchID, raw)
		return "", false, s.Clear(ctx, branchID)
	}

	remaining := expiresAt.Sub(s.Now())
	switch {
	case remaining <= -s.Grace:
		log.Printf("kds token for branch %d expired at %s, clearing", branchID, expiresAt.Format(time.RFC3339))
		return "", false, s.Clear(ctx, branchID)
	case remaining <= 0:
		log.Printf("WARN: kds token for branch %d expired %s ago, still within grace", branchID, (-remaining).Truncate(time.Second))
	case remaining <= s.Grace:
		log.Printf("WARN: kds token for branch %d expires in %s", branchID, remaining.Truncate(time.Second))
	}
	return token, true, nil
}

// Set stores a verified login. ExpiresAt is stored as RFC 3339.
func (s *TokenStore) Set(ctx context.Context, login model.KDSLogin) error {
	if err := s.Store.Set(ctx, tokenKey(login.BranchID), login.KDSToken); err != nil {
		return fmt.Errorf("store kds token: %w", err)
	}
	if login.ExpiresAt.IsZero() {
		return s.Store.Delete(ctx, expiresKey(login.BranchID))
	}
	if err := s.Store.Set(ctx, expiresKey(login.BranchID), login.ExpiresAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("store kds token expiry: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context, branchID int64) error {
	if err := s.Store.Delete(ctx, tokenKey(branchID), expiresKey(branchID)); err != nil {
		return fmt.Errorf("clear kds token: %w", err)
	}
	return nil
}

// Branches lists the branch ids that currently have a stored token,
// regardless of expiry.
func (s *TokenStore) Branches(ctx context.Context) ([]int64, error) {
	keys, err := s.Store.Keys(ctx, tokenKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list kds tokens: %w", err)
	}
	var ids []int64
	for _, k := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(k, tokenKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/auth"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/model"
)

type contextKey string

const (
	claimsKey    contextKey = "claims"
	kdsClaimsKey contextKey = "kds_claims"
)

// BranchParam is the URL parameter kitchen and branch routes are keyed by.
const BranchParam = "branchId"

func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireBranch lets a staff member through only for their own branch.
// SUPERADMIN can access any branch.
func RequireBranch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}

		branchID, ok := BranchIDParam(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
			return
		}

		if !staffCanAccessBranch(claims, branchID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this branch"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
		})
	}
}

// KitchenAccess guards the kitchen routes of one branch. It accepts, in
// order: the kds_token cookie, a bearer token and a token query parameter
// (for WebSocket clients that cannot set headers). A token may be a KDS
// token or a staff access token with a kitchen-capable role.
//
// No usable credential answers 401 with requiresPin so the terminal shows
// the PIN prompt. A valid credential for another branch, or a staff role
// without kitchen rights, answers 403.
func KitchenAccess(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			branchID, ok := BranchIDParam(r)
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
				return
			}

			var forbidden bool
			for _, token := range kitchenCredentials(r) {
				if kds, err := auth.ValidateKDSToken(jwtSecret, token); err == nil {
					if kds.BranchID != branchID {
						forbidden = true
						continue
					}
					ctx := context.WithValue(r.Context(), kdsClaimsKey, kds)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				if staff, err := auth.ValidateToken(jwtSecret, token); err == nil {
					if !staffHasKitchenRole(staff) || !staffCanAccessBranch(staff, branchID) {
						forbidden = true
						continue
					}
					ctx := context.WithValue(r.Context(), claimsKey, staff)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			if forbidden {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this branch"})
				return
			}
			writeJSON(w, http.StatusUnauthorized, model.KitchenAuthRequired{
				RequiresPin: true,
				Message:     "Kitchen PIN required",
				BranchID:    branchID,
			})
		})
	}
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func KDSClaimsFromContext(ctx context.Context) *auth.KDSClaims {
	claims, _ := ctx.Value(kdsClaimsKey).(*auth.KDSClaims)
	return claims
}

// BranchIDParam parses the branch URL parameter. Only positive IDs are valid.
func BranchIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, BranchParam), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func kitchenCredentials(r *http.Request) []string {
	var tokens []string
	if ck, err := r.Cookie(apiclient.KDSCookie); err == nil && ck.Value != "" {
		tokens = append(tokens, ck.Value)
	}
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		tokens = append(tokens, token)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		tokens = append(tokens, token)
	}
	return tokens
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func staffHasKitchenRole(c *auth.Claims) bool {
	switch c.Role {
	case enum.UserRoleSuperAdmin, enum.UserRoleAdmin, enum.UserRoleKitchen:
		return true
	}
	return false
}

func staffCanAccessBranch(c *auth.Claims, branchID int64) bool {
	return c.Role == enum.UserRoleSuperAdmin || c.BranchID == branchID
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// Package auth issues and validates the two token kinds the backend accepts:
// staff access tokens and kitchen display (KDS) tokens.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audiences keep staff and kitchen tokens from being accepted in place of
// each other.
const (
	AudienceStaff = "staff"
	AudienceKDS   = "kds"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims identify a staff member. BranchID is 0 for users not tied to a branch.
type Claims struct {
	UserID       int64  `json:"user_id"`
	RestaurantID int64  `json:"restaurant_id"`
	BranchID     int64  `json:"branch_id,omitempty"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// KDSClaims grant kitchen access to exactly one branch.
type KDSClaims struct {
	BranchID int64 `json:"branch_id"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, userID, restaurantID, branchID int64, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:       userID,
		RestaurantID: restaurantID,
		BranchID:     branchID,
		Role:         role,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{AudienceStaff},
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func GenerateRefreshToken(secret string, userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Audience:  jwt.ClaimStrings{"refresh"},
		ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateRefreshToken returns the user ID a refresh token was issued for.
func ValidateRefreshToken(secret, tokenStr string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	if err := parse(secret, tokenStr, claims, "refresh"); err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(secret, tokenStr, claims, AudienceStaff); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateKDSToken issues a kitchen token for branchID valid for ttl.
func GenerateKDSToken(secret string, branchID int64, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := KDSClaims{
		BranchID: branchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "branch:" + strconv.FormatInt(branchID, 10),
			Audience:  jwt.ClaimStrings{AudienceKDS},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	// JWT expiry has second precision; report what the token actually carries.
	return token, claims.ExpiresAt.Time, nil
}

func ValidateKDSToken(secret, tokenStr string) (*KDSClaims, error) {
	claims := &KDSClaims{}
	if err := parse(secret, tokenStr, claims, AudienceKDS); err != nil {
		return nil, err
	}
	if claims.BranchID <= 0 {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func parse(secret, tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

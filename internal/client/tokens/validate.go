package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshBuffer is how long before expiry a token is already treated as
// due for refresh, so a request cannot race an expiring token mid-flight.
const DefaultRefreshBuffer = 5 * time.Minute

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the decoded payload of an access or refresh token.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type,omitempty"`
}

// TokenValidation is computed from a token on every call and never cached.
type TokenValidation struct {
	IsValid   bool
	IsExpired bool
	ExpiresAt time.Time
	Claims    *Claims
}

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// ValidateToken decodes token without verifying its signature (the issuing
// backend is trusted) and evaluates expiry against now. Any decode failure,
// or a token without exp, yields IsValid=false.
func ValidateToken(token string, now time.Time) TokenValidation {
	if token == "" {
		return TokenValidation{}
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return TokenValidation{}
	}
	if claims.ExpiresAt == nil {
		return TokenValidation{Claims: claims}
	}

	exp := claims.ExpiresAt.Time
	expired := !now.Before(exp)
	return TokenValidation{
		IsValid:   !expired,
		IsExpired: expired,
		ExpiresAt: exp,
		Claims:    claims,
	}
}

// NeedsRefresh is true when token is invalid or expires within buffer.
func NeedsRefresh(token string, now time.Time, buffer time.Duration) bool {
	v := ValidateToken(token, now)
	if !v.IsValid {
		return true
	}
	return v.ExpiresAt.Sub(now) <= buffer
}

package devauth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	ErrWrongTokenType = errors.New("wrong token type")
	ErrRevoked        = errors.New("token revoked")
)

// Claims carried by both token kinds; Type tells them apart.
type Claims struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 token pairs and keeps the refresh
// revocation list in memory.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		revoked:    make(map[string]time.Time),
	}
}

// Issue mints a fresh access/refresh pair for the user.
func (i *Issuer) Issue(userID, username string) (models.TokenPair, error) {
	access, err := i.sign(typeAccess, userID, username, i.accessTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := i.sign(typeRefresh, userID, username, i.refreshTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) sign(kind, userID, username string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		Type:     kind,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies the signature, expiry and kind of a token. Revoked refresh
// tokens are rejected with ErrRevoked.
func (i *Issuer) Parse(tokenString, kind string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Type != kind {
		return nil, ErrWrongTokenType
	}
	if kind == typeRefresh && i.isRevoked(claims.ID) {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke marks a refresh token id as used until its expiry.
func (i *Issuer) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.revokeLocked(claims)
}

// Consume revokes a refresh token and fails with ErrRevoked when it was
// already used. The check and the revocation happen under one lock, so of
// several concurrent callers holding the same token exactly one succeeds.
func (i *Issuer) Consume(claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrRevoked
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.revoked[claims.ID]; ok {
		return ErrRevoked
	}
	i.revokeLocked(claims)
	return nil
}

func (i *Issuer) revokeLocked(claims *Claims) {
	now := i.now()
	exp := now.Add(i.refreshTTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	for id, until := range i.revoked {
		if now.After(until) {
			delete(i.revoked, id)
		}
	}
	i.revoked[claims.ID] = exp
}

func (i *Issuer) isRevoked(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.revoked[id]
	return ok
}

// Package services contains application services for the mbank client.
// This file defines the auth service: login, logout and the session summary
// shown by the terminal client.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/client"
	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/dmitrijs2005/mbank/internal/client/storage"
	"github.com/dmitrijs2005/mbank/internal/client/tokens"
	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/dmitrijs2005/mbank/internal/logging"
	"github.com/google/uuid"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server and persist the token pair.
//   - Logout: revoke the refresh token (best effort) and clear local tokens.
//   - IsAuthenticated: optimistic offline check, never touches the network.
//   - Session: snapshot of the local session for display.
//   - Profile: authenticated call to the server, refreshing as needed.
//   - Ping: check server liveness.
type AuthService interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	Session(ctx context.Context) Session
	Profile(ctx context.Context) (*models.Profile, error)
	Ping(ctx context.Context) error
}

// Session is what the client knows about the current login without asking
// the server.
type Session struct {
	Authenticated   bool
	Username        string
	DeviceID        string
	LastLoginAt     time.Time
	AccessExpiresAt time.Time
	NeedsRefresh    bool
}

type authService struct {
	client client.Client
	tokens *tokens.Manager
	store  storage.Store
	log    logging.Logger
}

// NewAuthService constructs an AuthService bound to the API client, the token
// manager and the secure store.
func NewAuthService(c client.Client, tm *tokens.Manager, store storage.Store, log logging.Logger) AuthService {
	return &authService{client: c, tokens: tm, store: store, log: log.With("component", "auth")}
}

// Login exchanges credentials for a token pair and stores it. Nothing is
// persisted when the server rejects the credentials.
func (a *authService) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	pair, err := a.client.Login(ctx, username, password)
	if err != nil {
		a.log.Warn(ctx, "login failed", "username", username, "error", err)
		return err
	}

	if err := a.tokens.StoreTokens(ctx, pair); err != nil {
		return err
	}
	if _, err := a.deviceID(ctx); err != nil {
		return err
	}
	if err := a.store.Set(ctx, common.KeyUsername, username); err != nil {
		return fmt.Errorf("save username: %w", err)
	}

	a.log.Info(ctx, "logged in", "username", username)
	return nil
}

// Logout tells the server to revoke the refresh token and clears the local
// tokens regardless of the server's answer.
func (a *authService) Logout(ctx context.Context) error {
	snap := a.tokens.GetTokens(ctx)
	if snap.RefreshToken != "" {
		if err := a.client.Logout(ctx, snap.AccessToken, snap.RefreshToken); err != nil {
			a.log.Warn(ctx, "server logout failed, clearing local session anyway", "error", err)
		}
	}

	if err := a.tokens.ClearTokens(ctx); err != nil {
		return err
	}
	if err := a.store.Remove(ctx, common.KeyUsername); err != nil {
		return fmt.Errorf("clear username: %w", err)
	}
	a.log.Info(ctx, "logged out")
	return nil
}

func (a *authService) IsAuthenticated(ctx context.Context) bool {
	return a.tokens.IsAuthenticated(ctx)
}

func (a *authService) Session(ctx context.Context) Session {
	s := Session{Authenticated: a.tokens.IsAuthenticated(ctx)}

	vals, err := a.store.MultiGet(ctx, common.KeyUsername, common.KeyDeviceID, common.KeyLastLoginAt)
	if err != nil {
		a.log.Error(ctx, "failed to read session", "error", err)
		return s
	}
	s.Username = vals[common.KeyUsername]
	s.DeviceID = vals[common.KeyDeviceID]
	if sec, err := strconv.ParseInt(vals[common.KeyLastLoginAt], 10, 64); err == nil {
		s.LastLoginAt = time.Unix(sec, 0)
	}

	snap := a.tokens.GetTokens(ctx)
	if snap.AccessToken != "" {
		s.AccessExpiresAt = a.tokens.ValidateToken(snap.AccessToken).ExpiresAt
		s.NeedsRefresh = snap.NeedsRefresh
	}
	return s
}

// Profile matches common.ErrLoginRequired only when the session is gone.
// A refresh that failed for a temporary reason (rate limit, server or network
// trouble) keeps the tokens and is returned as a retryable error.
func (a *authService) Profile(ctx context.Context) (*models.Profile, error) {
	p, err := a.client.Profile(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoValidToken) && !errors.Is(err, common.ErrLoginRequired) {
			a.log.Warn(ctx, "profile request deferred, token refresh failed", "error", err)
		}
		return nil, err
	}
	return p, nil
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// deviceID returns the installation ID, creating it on first use.
func (a *authService) deviceID(ctx context.Context) (string, error) {
	id, err := a.store.Get(ctx, common.KeyDeviceID)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := a.store.Set(ctx, common.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	return id, nil
}

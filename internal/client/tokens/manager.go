// Package tokens owns the access/refresh token pair: local expiry checks,
// persistence through the secure store, and a coalesced refresh against the
// backend so that at most one refresh call is ever in flight.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/client"
	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/dmitrijs2005/mbank/internal/client/storage"
	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/dmitrijs2005/mbank/internal/eventbus"
	"github.com/dmitrijs2005/mbank/internal/logging"
)

// RefreshAPI is the slice of the backend the manager needs.
type RefreshAPI interface {
	Refresh(ctx context.Context, refreshToken string, shape client.RefreshShape) (models.TokenPair, error)
}

// Snapshot is what GetTokens reports. The zero value means "no access token".
type Snapshot struct {
	AccessToken        string
	RefreshToken       string
	IsAccessTokenValid bool
	NeedsRefresh       bool
}

// RefreshResult is shared by every caller coalesced onto the same refresh.
type RefreshResult struct {
	Success       bool
	Tokens        *models.TokenPair
	RequiresLogin bool
	RetryAfter    time.Duration
	Err           error
}

type inflight struct {
	done   chan struct{}
	result *RefreshResult
}

// Manager is safe for concurrent use.
type Manager struct {
	store  storage.Store
	api    RefreshAPI
	log    logging.Logger
	events *eventbus.Bus[EventKind, Event]
	buffer time.Duration
	now    func() time.Time

	mu      sync.Mutex
	pending *inflight

	// onWait, when set, runs as a caller starts waiting on a refresh.
	onWait func()
}

// NewManager wires a manager. A non-positive buffer selects
// DefaultRefreshBuffer.
func NewManager(store storage.Store, api RefreshAPI, log logging.Logger, buffer time.Duration) *Manager {
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	log = log.With("component", "tokens")
	return &Manager{
		store:  store,
		api:    api,
		log:    log,
		events: eventbus.New[EventKind, Event](log),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscribe registers fn for kind; call the returned func to unsubscribe.
func (m *Manager) Subscribe(kind EventKind, fn func(ctx context.Context, e Event)) func() {
	return m.events.Subscribe(kind, fn)
}

func (m *Manager) ValidateToken(token string) TokenValidation {
	return ValidateToken(token, m.now())
}

func (m *Manager) NeedsRefresh(token string) bool {
	return NeedsRefresh(token, m.now(), m.buffer)
}

// GetTokens reads both tokens and evaluates the access token. It never
// fails: a read error is logged and reported as "no tokens".
func (m *Manager) GetTokens(ctx context.Context) Snapshot {
	vals, err := m.store.MultiGet(ctx, common.KeyAccessToken, common.KeyRefreshToken)
	if err != nil {
		m.log.Error(ctx, "failed to read tokens", "error", err)
		return Snapshot{}
	}

	access := vals[common.KeyAccessToken]
	if access == "" {
		return Snapshot{}
	}
	return Snapshot{
		AccessToken:        access,
		RefreshToken:       vals[common.KeyRefreshToken],
		IsAccessTokenValid: m.ValidateToken(access).IsValid,
		NeedsRefresh:       m.NeedsRefresh(access),
	}
}

// StoreTokens persists both tokens and the last-login timestamp in one
// transaction.
func (m *Manager) StoreTokens(ctx context.Context, pair models.TokenPair) error {
	if pair.Empty() {
		return fmt.Errorf("store tokens: %w", common.ErrInvalidToken)
	}
	err := m.store.MultiSet(ctx, map[string]string{
		common.KeyAccessToken:  pair.AccessToken,
		common.KeyRefreshToken: pair.RefreshToken,
		common.KeyLastLoginAt:  strconv.FormatInt(m.now().Unix(), 10),
	})
	if err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	return nil
}

// ClearTokens removes both tokens and the CSRF artifacts.
func (m *Manager) ClearTokens(ctx context.Context) error {
	err := m.store.MultiRemove(ctx,
		common.KeyAccessToken,
		common.KeyRefreshToken,
		common.KeyCSRFToken,
		common.KeyCSRFSecret,
	)
	if err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// IsAuthenticated is an optimistic, offline check: a locally valid access
// token, or a locally valid refresh token that could be exchanged later.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	vals, err := m.store.MultiGet(ctx, common.KeyAccessToken, common.KeyRefreshToken)
	if err != nil {
		m.log.Error(ctx, "failed to read tokens", "error", err)
		return false
	}
	if m.ValidateToken(vals[common.KeyAccessToken]).IsValid {
		return true
	}
	return m.ValidateToken(vals[common.KeyRefreshToken]).IsValid
}

// GetValidAccessToken returns the stored access token while it is valid and
// outside the refresh buffer; otherwise it refreshes. On failure it returns
// common.ErrNoValidToken and leaves token cleanup to the refresh flow.
func (m *Manager) GetValidAccessToken(ctx context.Context) (string, error) {
	snap := m.GetTokens(ctx)
	if snap.AccessToken != "" && snap.IsAccessTokenValid && !snap.NeedsRefresh {
		return snap.AccessToken, nil
	}

	if snap.AccessToken != "" && m.ValidateToken(snap.AccessToken).IsExpired {
		m.events.Publish(ctx, EventTokenExpired, Event{Kind: EventTokenExpired, Err: common.ErrTokenExpired})
	}
	return m.RefreshAccessToken(ctx)
}

// RefreshAccessToken forces a (coalesced) refresh and returns the new access
// token. Failures wrap common.ErrNoValidToken; only those that ended the
// session also match common.ErrLoginRequired; the rest are retryable.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	res := m.RefreshTokens(ctx)
	if res.Success {
		return res.Tokens.AccessToken, nil
	}

	cause := res.Err
	if res.RequiresLogin && !errors.Is(cause, common.ErrLoginRequired) {
		if cause == nil {
			cause = common.ErrLoginRequired
		} else {
			cause = fmt.Errorf("%w: %w", common.ErrLoginRequired, cause)
		}
	}
	if cause == nil {
		return "", common.ErrNoValidToken
	}
	return "", fmt.Errorf("%w: %w", common.ErrNoValidToken, cause)
}

// RefreshTokens exchanges the refresh token for a new pair. Concurrent
// callers share one in-flight call and receive the same *RefreshResult. The
// call itself is detached from ctx and cannot be cancelled once started; a
// waiter whose ctx ends stops waiting and gets a result carrying ctx.Err().
func (m *Manager) RefreshTokens(ctx context.Context) *RefreshResult {
	m.mu.Lock()
	if f := m.pending; f != nil {
		m.mu.Unlock()
		return m.wait(ctx, f)
	}
	f := &inflight{done: make(chan struct{})}
	m.pending = f
	m.mu.Unlock()

	go func() {
		f.result = m.refresh(context.WithoutCancel(ctx))

		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		close(f.done)
	}()

	return m.wait(ctx, f)
}

func (m *Manager) wait(ctx context.Context, f *inflight) *RefreshResult {
	if m.onWait != nil {
		m.onWait()
	}

	select {
	case <-f.done:
		return f.result
	case <-ctx.Done():
		return &RefreshResult{Err: ctx.Err()}
	}
}

func (m *Manager) refresh(ctx context.Context) *RefreshResult {
	refreshToken, err := m.store.Get(ctx, common.KeyRefreshToken)
	if err != nil {
		m.log.Error(ctx, "failed to read refresh token", "error", err)
		return m.failed(ctx, err, 0)
	}
	if !m.ValidateToken(refreshToken).IsValid {
		m.log.Info(ctx, "refresh token missing or expired")
		return m.loginRequired(ctx, common.ErrLoginRequired)
	}

	pair, err := m.api.Refresh(ctx, refreshToken, client.ShapeSnakeCase)
	if err != nil && client.StatusCode(err) != http.StatusUnauthorized {
		m.log.Debug(ctx, "refresh failed, retrying with alternate body shape", "error", err)
		pair, err = m.api.Refresh(ctx, refreshToken, client.ShapeCamelCase)
	}

	if err == nil {
		if serr := m.StoreTokens(ctx, pair); serr != nil {
			m.log.Error(ctx, "failed to persist refreshed tokens", "error", serr)
			return m.failed(ctx, serr, 0)
		}
		m.log.Info(ctx, "tokens refreshed")
		m.events.Publish(ctx, EventTokenRefreshed, Event{Kind: EventTokenRefreshed, Tokens: &pair})
		return &RefreshResult{Success: true, Tokens: &pair}
	}

	switch {
	case errors.Is(err, client.ErrUnauthorized):
		m.log.Warn(ctx, "refresh token rejected", "status", client.StatusCode(err))
		return m.loginRequired(ctx, err)
	case errors.Is(err, client.ErrRateLimited):
		retry := client.RetryAfter(err)
		m.log.Warn(ctx, "refresh rate limited", "retry_after", retry)
		return m.failed(ctx, err, retry)
	default:
		m.log.Warn(ctx, "refresh failed", "error", err)
		return m.failed(ctx, err, 0)
	}
}

func (m *Manager) loginRequired(ctx context.Context, cause error) *RefreshResult {
	if err := m.ClearTokens(ctx); err != nil {
		m.log.Error(ctx, "failed to clear tokens", "error", err)
	}
	m.events.Publish(ctx, EventLoginRequired, Event{Kind: EventLoginRequired, Err: cause})
	return &RefreshResult{RequiresLogin: true, Err: cause}
}

func (m *Manager) failed(ctx context.Context, cause error, retry time.Duration) *RefreshResult {
	m.events.Publish(ctx, EventRefreshFailed, Event{Kind: EventRefreshFailed, Err: cause, RetryAfter: retry})
	return &RefreshResult{Err: cause, RetryAfter: retry}
}

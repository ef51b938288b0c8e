package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/activity"
	"github.com/dmitrijs2005/mbank/internal/client/client"
	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/dmitrijs2005/mbank/internal/client/storage"
	"github.com/dmitrijs2005/mbank/internal/client/tokens"
	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/dmitrijs2005/mbank/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	s, err := storage.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mint(t *testing.T, typ string, ttl time.Duration) string {
	t.Helper()
	claims := tokens.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Type: typ,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

// ---- fake client ----

type fakeClient struct {
	LoginRet  models.TokenPair
	LoginErr  error
	LogoutErr error
	PingErr   error

	ProfileRet *models.Profile
	ProfileErr error

	LastLoginUser     string
	LastLogoutAccess  string
	LastLogoutRefresh string
	LogoutCalls       int
}

func (f *fakeClient) Login(ctx context.Context, username, password string) (models.TokenPair, error) {
	f.LastLoginUser = username
	return f.LoginRet, f.LoginErr
}

func (f *fakeClient) Refresh(ctx context.Context, refreshToken string, shape client.RefreshShape) (models.TokenPair, error) {
	return models.TokenPair{}, client.ErrUnavailable
}

func (f *fakeClient) Logout(ctx context.Context, accessToken, refreshToken string) error {
	f.LogoutCalls++
	f.LastLogoutAccess = accessToken
	f.LastLogoutRefresh = refreshToken
	return f.LogoutErr
}

func (f *fakeClient) Profile(ctx context.Context) (*models.Profile, error) {
	return f.ProfileRet, f.ProfileErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }

func newService(t *testing.T, fc *fakeClient) (AuthService, *storage.SQLStore) {
	t.Helper()
	store := setupStore(t)
	tm := tokens.NewManager(store, fc, logging.NewNop(), 0)
	return NewAuthService(fc, tm, store, logging.NewNop()), store
}

// ---- TESTS ----

func TestAuthService_Login_Success(t *testing.T) {
	pair := models.TokenPair{
		AccessToken:  mint(t, tokens.TypeAccess, time.Hour),
		RefreshToken: mint(t, tokens.TypeRefresh, 24*time.Hour),
	}
	fc := &fakeClient{LoginRet: pair}
	svc, store := newService(t, fc)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "  alice ", "secret"))
	assert.Equal(t, "alice", fc.LastLoginUser)
	assert.True(t, svc.IsAuthenticated(ctx))

	got, err := store.Get(ctx, common.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.AccessToken, got)

	s := svc.Session(ctx)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "alice", s.Username)
	assert.NotEmpty(t, s.DeviceID)
	assert.WithinDuration(t, time.Now(), s.LastLoginAt, 5*time.Second)
	assert.False(t, s.NeedsRefresh)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.AccessExpiresAt, 5*time.Second)
}

func TestAuthService_Login_DeviceIDStable(t *testing.T) {
	pair := models.TokenPair{
		AccessToken:  mint(t, tokens.TypeAccess, time.Hour),
		RefreshToken: mint(t, tokens.TypeRefresh, 24*time.Hour),
	}
	svc, _ := newService(t, &fakeClient{LoginRet: pair})
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "alice", "pw"))
	first := svc.Session(ctx).DeviceID
	require.NoError(t, svc.Logout(ctx))
	require.NoError(t, svc.Login(ctx, "alice", "pw"))
	assert.Equal(t, first, svc.Session(ctx).DeviceID)
}

func TestAuthService_Login_Validation(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newService(t, fc)

	err := svc.Login(context.Background(), " ", "pw")
	require.ErrorIs(t, err, common.ErrorValidation)
	err = svc.Login(context.Background(), "bob", "")
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Empty(t, fc.LastLoginUser)
}

func TestAuthService_Login_Rejected(t *testing.T) {
	fc := &fakeClient{LoginErr: &client.StatusError{StatusCode: http.StatusUnauthorized}}
	svc, store := newService(t, fc)
	ctx := context.Background()

	err := svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, svc.IsAuthenticated(ctx))

	got, err := store.Get(ctx, common.KeyUsername)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAuthService_Logout_ClearsEvenWhenServerFails(t *testing.T) {
	pair := models.TokenPair{
		AccessToken:  mint(t, tokens.TypeAccess, time.Hour),
		RefreshToken: mint(t, tokens.TypeRefresh, 24*time.Hour),
	}
	fc := &fakeClient{LoginRet: pair, LogoutErr: client.ErrUnavailable}
	svc, store := newService(t, fc)
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, "alice", "pw"))
	require.NoError(t, svc.Logout(ctx))

	assert.Equal(t, 1, fc.LogoutCalls)
	assert.Equal(t, pair.RefreshToken, fc.LastLogoutRefresh)
	assert.False(t, svc.IsAuthenticated(ctx))

	vals, err := store.MultiGet(ctx, common.KeyAccessToken, common.KeyRefreshToken, common.KeyUsername)
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestAuthService_Logout_NoSession(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newService(t, fc)

	require.NoError(t, svc.Logout(context.Background()))
	assert.Zero(t, fc.LogoutCalls)
}

func TestAuthService_Session_Empty(t *testing.T) {
	svc, _ := newService(t, &fakeClient{})

	s := svc.Session(context.Background())
	assert.False(t, s.Authenticated)
	assert.Empty(t, s.Username)
	assert.True(t, s.LastLoginAt.IsZero())
	assert.True(t, s.AccessExpiresAt.IsZero())
}

func TestAuthService_Profile(t *testing.T) {
	fc := &fakeClient{ProfileRet: &models.Profile{UserID: "u1", Username: "alice"}}
	svc, _ := newService(t, fc)

	p, err := svc.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	fc.ProfileErr = client.ErrUnavailable
	_, err = svc.Profile(context.Background())
	require.ErrorIs(t, err, client.ErrUnavailable)
}

// newHTTPService wires the real HTTP client and auth transport against srv,
// with an expired access token and a valid refresh token in the store.
func newHTTPService(t *testing.T, refresh http.HandlerFunc) (AuthService, *storage.SQLStore) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(client.PathRefresh, refresh)
	mux.HandleFunc(client.PathProfile, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"u1","username":"alice"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := setupStore(t)
	api := client.NewHTTPClient(srv.URL, 5*time.Second, logging.NewNop())
	tm := tokens.NewManager(store, api, logging.NewNop(), tokens.DefaultRefreshBuffer)
	api.UseAuth(tm, activity.NewMonitor(time.Minute))

	require.NoError(t, tm.StoreTokens(context.Background(), models.TokenPair{
		AccessToken:  mint(t, tokens.TypeAccess, -time.Minute),
		RefreshToken: mint(t, tokens.TypeRefresh, time.Hour),
	}))
	return NewAuthService(api, tm, store, logging.NewNop()), store
}

func TestAuthService_Profile_TemporaryRefreshFailureKeepsSession(t *testing.T) {
	svc, store := newHTTPService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	_, err := svc.Profile(ctx)
	require.ErrorIs(t, err, common.ErrNoValidToken)
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.NotErrorIs(t, err, common.ErrLoginRequired)

	assert.True(t, svc.IsAuthenticated(ctx))
	refresh, err := store.Get(ctx, common.KeyRefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refresh)
}

func TestAuthService_Profile_RejectedRefreshRequiresLogin(t *testing.T) {
	svc, store := newHTTPService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	ctx := context.Background()

	_, err := svc.Profile(ctx)
	require.ErrorIs(t, err, common.ErrLoginRequired)
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	assert.False(t, svc.IsAuthenticated(ctx))
	refresh, err := store.Get(ctx, common.KeyRefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refresh)
}

func TestAuthService_Profile_NoSessionRequiresLogin(t *testing.T) {
	store := setupStore(t)
	api := client.NewHTTPClient("http://127.0.0.1:1", time.Second, logging.NewNop())
	tm := tokens.NewManager(store, api, logging.NewNop(), 0)
	api.UseAuth(tm, activity.NewMonitor(time.Minute))
	svc := NewAuthService(api, tm, store, logging.NewNop())

	_, err := svc.Profile(context.Background())
	require.ErrorIs(t, err, common.ErrLoginRequired)
}

func TestAuthService_Ping(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newService(t, fc)
	require.NoError(t, svc.Ping(context.Background()))

	fc.PingErr = client.ErrUnavailable
	require.ErrorIs(t, svc.Ping(context.Background()), client.ErrUnavailable)
}

package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/client"
	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func mint(t *testing.T, typ string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type: typ,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func mintNoExp(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Type: TypeAccess}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

// ---- fake store ----

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	failSet error
	failGet error
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (s *memStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return "", s.failGet
	}
	return s.data[key], nil
}

func (s *memStore) Set(ctx context.Context, key, value string) error {
	return s.MultiSet(ctx, map[string]string{key: value})
}

func (s *memStore) Remove(ctx context.Context, key string) error {
	return s.MultiRemove(ctx, key)
}

func (s *memStore) MultiGet(ctx context.Context, keys ...string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *memStore) MultiSet(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	for k, v := range values {
		s.data[k] = v
	}
	return nil
}

func (s *memStore) MultiRemove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *memStore) value(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// ---- fake api ----

type refreshCall struct {
	token string
	shape client.RefreshShape
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []refreshCall

	// results are consumed in order; the last one repeats.
	results []refreshResult

	started chan struct{}
	release chan struct{}
}

type refreshResult struct {
	pair models.TokenPair
	err  error
}

func (f *fakeAPI) Refresh(ctx context.Context, refreshToken string, shape client.RefreshShape) (models.TokenPair, error) {
	f.mu.Lock()
	f.calls = append(f.calls, refreshCall{token: refreshToken, shape: shape})
	var r refreshResult
	if len(f.results) > 0 {
		r = f.results[0]
		if len(f.results) > 1 {
			f.results = f.results[1:]
		}
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return r.pair, r.err
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errBoom = errors.New("boom")

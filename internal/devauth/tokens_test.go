package devauth

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_IssueAndParse(t *testing.T) {
	is := NewIssuer(testSecret, time.Minute, time.Hour)

	pair, err := is.Issue("u-1", "alice")
	require.NoError(t, err)
	require.False(t, pair.Empty())

	access, err := is.Parse(pair.AccessToken, typeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u-1", access.Subject)
	assert.Equal(t, "alice", access.Username)
	assert.NotEmpty(t, access.ID)

	refresh, err := is.Parse(pair.RefreshToken, typeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, access.ID, refresh.ID)
	assert.True(t, refresh.ExpiresAt.After(access.ExpiresAt.Time))
}

func TestIssuer_Parse_WrongType(t *testing.T) {
	is := NewIssuer(testSecret, time.Minute, time.Hour)
	pair, err := is.Issue("u-1", "alice")
	require.NoError(t, err)

	_, err = is.Parse(pair.RefreshToken, typeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = is.Parse(pair.AccessToken, typeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestIssuer_Parse_Expired(t *testing.T) {
	is := NewIssuer(testSecret, time.Minute, time.Hour)
	pair, err := is.Issue("u-1", "alice")
	require.NoError(t, err)

	is.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = is.Parse(pair.AccessToken, typeAccess)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssuer_Parse_ForeignSecret(t *testing.T) {
	pair, err := NewIssuer("ffffffffffffffffffffffffffffffff", time.Minute, time.Hour).Issue("u-1", "alice")
	require.NoError(t, err)

	_, err = NewIssuer(testSecret, time.Minute, time.Hour).Parse(pair.AccessToken, typeAccess)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestIssuer_Parse_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{Type: typeAccess, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewIssuer(testSecret, time.Minute, time.Hour).Parse(token, typeAccess)
	assert.Error(t, err)
}

func TestIssuer_Revoke(t *testing.T) {
	is := NewIssuer(testSecret, time.Minute, time.Hour)
	pair, err := is.Issue("u-1", "alice")
	require.NoError(t, err)

	claims, err := is.Parse(pair.RefreshToken, typeRefresh)
	require.NoError(t, err)
	is.Revoke(claims)

	_, err = is.Parse(pair.RefreshToken, typeRefresh)
	assert.ErrorIs(t, err, ErrRevoked)

	// revocation only applies to refresh tokens
	_, err = is.Parse(pair.AccessToken, typeAccess)
	assert.NoError(t, err)
}

func TestIssuer_Revoke_PrunesExpired(t *testing.T) {
	is := NewIssuer(testSecret, time.Minute, time.Hour)
	is.Revoke(&Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "old",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Second)),
	}})
	is.Revoke(&Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "new"}})

	assert.False(t, is.isRevoked("old"))
	assert.True(t, is.isRevoked("new"))

	is.Revoke(nil)
	is.Revoke(&Claims{})
	assert.Len(t, is.revoked, 1)
}

func TestUsers_Authenticate(t *testing.T) {
	users, err := NewUsers(map[string]string{"alice": "wonderland"}, 4)
	require.NoError(t, err)

	u, err := users.Authenticate("alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	again, ok := users.ByID(u.ID)
	require.True(t, ok)
	assert.Same(t, u, again)

	_, err = users.Authenticate("alice", "looking-glass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Authenticate("bob", "wonderland")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUsers_StableIDs(t *testing.T) {
	a, err := NewUsers(map[string]string{"alice": "x"}, 4)
	require.NoError(t, err)
	b, err := NewUsers(map[string]string{"alice": "y"}, 4)
	require.NoError(t, err)

	assert.Equal(t, a.byName["alice"].ID, b.byName["alice"].ID)
}

func TestIssuer_Consume(t *testing.T) {
	is := NewIssuer(testSecret, time.Minute, time.Hour)
	pair, err := is.Issue("u-1", "alice")
	require.NoError(t, err)
	claims, err := is.Parse(pair.RefreshToken, typeRefresh)
	require.NoError(t, err)

	require.NoError(t, is.Consume(claims))
	assert.ErrorIs(t, is.Consume(claims), ErrRevoked)
	assert.ErrorIs(t, is.Consume(&Claims{}), ErrRevoked)
}

func TestIssuer_Consume_ConcurrentSingleWinner(t *testing.T) {
	is := NewIssuer(testSecret, time.Minute, time.Hour)
	pair, err := is.Issue("u-1", "alice")
	require.NoError(t, err)

	const n = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims, err := is.Parse(pair.RefreshToken, typeRefresh)
			if err != nil {
				return
			}
			if is.Consume(claims) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

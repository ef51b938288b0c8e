package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		token       string
		wantValid   bool
		wantExpired bool
	}{
		{"empty", "", false, false},
		{"garbage", "not-a-jwt", false, false},
		{"two segments", "abc.def", false, false},
		{"no exp", mintNoExp(t), false, false},
		{"valid", mint(t, TypeAccess, now.Add(time.Hour)), true, false},
		{"expires exactly now", mint(t, TypeAccess, now), false, true},
		{"expired", mint(t, TypeAccess, now.Add(-time.Second)), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateToken(tt.token, now)
			assert.Equal(t, tt.wantValid, v.IsValid)
			assert.Equal(t, tt.wantExpired, v.IsExpired)
		})
	}
}

func TestValidateToken_Claims(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour).Truncate(time.Second)

	v := ValidateToken(mint(t, TypeRefresh, exp), now)
	require.True(t, v.IsValid)
	require.NotNil(t, v.Claims)
	assert.Equal(t, "user-1", v.Claims.Subject)
	assert.Equal(t, TypeRefresh, v.Claims.Type)
	assert.True(t, exp.Equal(v.ExpiresAt))
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	buf := DefaultRefreshBuffer

	assert.True(t, NeedsRefresh("", now, buf))
	assert.True(t, NeedsRefresh("junk", now, buf))
	assert.True(t, NeedsRefresh(mint(t, TypeAccess, now.Add(-time.Minute)), now, buf))
	assert.True(t, NeedsRefresh(mint(t, TypeAccess, now.Add(time.Minute)), now, buf))
	assert.True(t, NeedsRefresh(mint(t, TypeAccess, now.Add(buf)), now, buf), "boundary is inclusive")
	assert.False(t, NeedsRefresh(mint(t, TypeAccess, now.Add(buf+time.Second)), now, buf))
	assert.False(t, NeedsRefresh(mint(t, TypeAccess, now.Add(time.Hour)), now, buf))
}

package client

import (
	"context"

	"github.com/dmitrijs2005/mbank/internal/client/models"
)

// RefreshShape selects the JSON body used for /auth/refresh. The backend has
// shipped both spellings, so the token manager may try one and then the other.
type RefreshShape int

const (
	// ShapeSnakeCase sends {"refresh_token": "..."}.
	ShapeSnakeCase RefreshShape = iota
	// ShapeCamelCase sends {"refreshToken": "..."}.
	ShapeCamelCase
)

func (s RefreshShape) String() string {
	if s == ShapeCamelCase {
		return "refreshToken"
	}
	return "refresh_token"
}

// Client is the backend contract used by the client core.
type Client interface {
	Login(ctx context.Context, username, password string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, shape RefreshShape) (models.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Profile(ctx context.Context) (*models.Profile, error)
	Ping(ctx context.Context) error
}

// Package secrets persists sealed (AES-GCM) values of sensitive keys. It never
// sees plaintext; sealing happens in the storage layer.
package secrets

import (
	"context"

	"github.com/dmitrijs2005/mbank/internal/client/models"
)

// Repository stores sealed values. Get returns (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) (*models.SealedValue, error)
	Set(ctx context.Context, key string, v *models.SealedValue) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

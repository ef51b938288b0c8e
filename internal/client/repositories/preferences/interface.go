// Package preferences persists non-sensitive client settings (last login
// time, username, device id) as plain text rows.
package preferences

import "context"

// Repository is a plain key/value store. Get returns ("", nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}

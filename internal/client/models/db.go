// Package models defines the client-side data types shared by the token
// manager, the storage layer and the API client.
package models

import "time"

// SealedValue is an encrypted row of the secrets table.
type SealedValue struct {
	Ciphertext []byte
	Nonce      []byte
	UpdatedAt  time.Time
}

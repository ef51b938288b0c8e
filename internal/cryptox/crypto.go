// Package cryptox holds the client's primitives: argon2id PIN hashing with a
// constant-time check, and AES-GCM sealing of sensitive stored values under a
// per-device key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/mbank/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize      = 16
	DeviceKeySize = 32

	pinTime    = 1
	pinMemory  = 64 * 1024
	pinThreads = 4
	pinKeyLen  = 32
)

var ErrInvalidDeviceKey = errors.New("invalid device key")

// HashPIN derives the stored verifier for pin with argon2id.
func HashPIN(pin []byte, salt []byte) []byte {
	return argon2.IDKey(pin, salt, pinTime, pinMemory, pinThreads, pinKeyLen)
}

// VerifyPIN hashes the candidate and compares hashes in constant time.
func VerifyPIN(candidate []byte, salt []byte, stored []byte) bool {
	hash := HashPIN(candidate, salt)
	defer common.WipeByteArray(hash)
	return subtle.ConstantTimeCompare(hash, stored) == 1
}

// NewSalt returns a fresh random salt for HashPIN.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// LoadOrCreateDeviceKey reads the device key at path, creating the file (0600)
// with a random key when it does not exist yet.
func LoadOrCreateDeviceKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != DeviceKeySize {
			return nil, fmt.Errorf("%w: %s has %d bytes", ErrInvalidDeviceKey, path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read device key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	key = common.GenerateRandByteArray(DeviceKeySize)
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write device key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with AES-GCM. The additional data binds the
// ciphertext to its storage key so rows cannot be swapped.
func Seal(key, plaintext, additionalData []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nil, nonce, plaintext, additionalData), nonce, nil
}

// Open reverses Seal.
func Open(key, ciphertext, nonce, additionalData []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, additionalData)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

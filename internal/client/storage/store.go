// Package storage implements the secure key-value store used by the token and
// PIN managers. Sensitive keys (see common.Sensitive) are sealed with AES-GCM
// under the device key and kept in the secrets table; everything else is kept
// as plain text in the preferences table.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/dmitrijs2005/mbank/internal/client/repositories/preferences"
	"github.com/dmitrijs2005/mbank/internal/client/repositories/secrets"
	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/dmitrijs2005/mbank/internal/cryptox"
	"github.com/dmitrijs2005/mbank/internal/dbx"
	"github.com/dmitrijs2005/mbank/internal/filex"
)

const (
	DatabaseFile  = "mbank.db"
	DeviceKeyFile = "device.key"
)

var ErrCorruptSecret = errors.New("secret cannot be decrypted")

// Store is the secure key-value contract. Get returns "" for a missing key;
// MultiGet omits missing keys from the result. Multi* writes are atomic.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	MultiGet(ctx context.Context, keys ...string) (map[string]string, error)
	MultiSet(ctx context.Context, values map[string]string) error
	MultiRemove(ctx context.Context, keys ...string) error
}

// SQLStore is the SQLite-backed Store.
type SQLStore struct {
	db  *sql.DB
	key []byte
}

func NewSQLStore(db *sql.DB, deviceKey []byte) *SQLStore {
	return &SQLStore{db: db, key: deviceKey}
}

// Open prepares dataDir, loads or creates the device key and opens the
// migrated database inside it.
func Open(ctx context.Context, dataDir string) (*SQLStore, error) {
	dataDir, err := filex.EnsurePrivateDir(dataDir)
	if err != nil {
		return nil, err
	}

	key, err := cryptox.LoadOrCreateDeviceKey(filepath.Join(dataDir, DeviceKeyFile))
	if err != nil {
		return nil, err
	}

	db, err := InitDatabase(ctx, filepath.Join(dataDir, DatabaseFile))
	if err != nil {
		return nil, err
	}
	return NewSQLStore(db, key), nil
}

func (s *SQLStore) Close() error {
	common.WipeByteArray(s.key)
	return s.db.Close()
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	return s.get(ctx, s.db, key)
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	return s.set(ctx, s.db, key, value)
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	return s.remove(ctx, s.db, key)
}

// MultiGet reads all keys in one transaction, so a concurrent MultiSet is
// seen either entirely or not at all.
func (s *SQLStore) MultiGet(ctx context.Context, keys ...string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, k := range keys {
			v, err := s.get(ctx, tx, k)
			if err != nil {
				return err
			}
			if v != "" {
				result[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLStore) MultiSet(ctx context.Context, values map[string]string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for k, v := range values {
			if err := s.set(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) MultiRemove(ctx context.Context, keys ...string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, k := range keys {
			if err := s.remove(ctx, tx, k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) get(ctx context.Context, db dbx.DBTX, key string) (string, error) {
	if !common.Sensitive(key) {
		return preferences.NewSQLiteRepository(db).Get(ctx, key)
	}

	sealed, err := secrets.NewSQLiteRepository(db).Get(ctx, key)
	if err != nil || sealed == nil {
		return "", err
	}
	plain, err := cryptox.Open(s.key, sealed.Ciphertext, sealed.Nonce, []byte(key))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCorruptSecret, key)
	}
	return string(plain), nil
}

func (s *SQLStore) set(ctx context.Context, db dbx.DBTX, key, value string) error {
	if !common.Sensitive(key) {
		return preferences.NewSQLiteRepository(db).Set(ctx, key, value)
	}

	ct, nonce, err := cryptox.Seal(s.key, []byte(value), []byte(key))
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return secrets.NewSQLiteRepository(db).Set(ctx, key, &models.SealedValue{Ciphertext: ct, Nonce: nonce})
}

func (s *SQLStore) remove(ctx context.Context, db dbx.DBTX, key string) error {
	if !common.Sensitive(key) {
		return preferences.NewSQLiteRepository(db).Delete(ctx, key)
	}
	return secrets.NewSQLiteRepository(db).Delete(ctx, key)
}

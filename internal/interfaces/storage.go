// Package interfaces defines service contracts for LanFund
package interfaces

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KeyValueStorage.Get for absent keys.
var ErrNotFound = errors.New("key not found")

// KeyValueStorage is a flat string key-value store. It holds the pending
// settlement ledgers and user preferences.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StorageManager owns the local stores and their lifecycle.
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	DataPath() string
	Close() error
}

// Package badger persists the lanfund key-value state (pending settlement
// ledgers and preferences) in a BadgerHold database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// entry is one persisted key. Values are the same JSON strings the web
// dashboard keeps in localStorage.
type entry struct {
	Key   string `badgerhold:"key"`
	Value string
}

// KV implements interfaces.KeyValueStorage on a BadgerHold database.
type KV struct {
	db     *badgerhold.Store
	logger *common.Logger
}

var _ interfaces.KeyValueStorage = (*KV)(nil)

// Open opens (creating if needed) the database directory at path.
func Open(logger *common.Logger, path string) (*KV, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("State database opened")
	return &KV{db: db, logger: logger}, nil
}

func (s *KV) Get(_ context.Context, key string) (string, error) {
	var e entry
	if err := s.db.Get(key, &e); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return "", fmt.Errorf("key '%s': %w", key, interfaces.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return e.Value, nil
}

func (s *KV) Set(_ context.Context, key, value string) error {
	if err := s.db.Upsert(key, &entry{Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to set key '%s': %w", key, err)
	}
	s.logger.Trace().Str("key", key).Int("bytes", len(value)).Msg("State key written")
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *KV) Delete(_ context.Context, key string) error {
	err := s.db.Delete(key, entry{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	s.logger.Trace().Str("key", key).Msg("State key deleted")
	return nil
}

// Close is safe to call on an unopened or already closed KV.
func (s *KV) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

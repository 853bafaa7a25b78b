// Package storage provides the StorageManager that owns the local key-value store.
package storage

import (
	"fmt"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/bobmcallan/lanfund/internal/storage/badger"
)

// Manager implements interfaces.StorageManager over a BadgerHold store.
type Manager struct {
	store  *badger.KV
	kv     interfaces.KeyValueStorage
	path   string
	logger *common.Logger
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager opens the store at config.Storage.Path.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.Open(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create kv store: %w", err)
	}

	logger.Info().Str("path", config.Storage.Path).Msg("Storage manager initialized")

	return &Manager{
		store:  store,
		kv:     store,
		path:   config.Storage.Path,
		logger: logger,
	}, nil
}

// NewMemoryManager returns a Manager with no on-disk state.
func NewMemoryManager(logger *common.Logger) *Manager {
	return &Manager{
		kv:     NewMemoryKV(),
		path:   ":memory:",
		logger: logger,
	}
}

func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

func (m *Manager) DataPath() string {
	return m.path
}

func (m *Manager) Close() error {
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close kv store: %w", err)
		}
		m.store = nil
	}
	return nil
}

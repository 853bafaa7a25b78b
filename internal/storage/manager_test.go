package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
)

func TestManager_BadgerRoundTrip(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "kv")

	m, err := NewManager(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	ctx := context.Background()
	kv := m.KeyValueStorage()
	require.NoError(t, kv.Set(ctx, "lan_fund_cumulative_correction", "12.5"))

	got, err := kv.Get(ctx, "lan_fund_cumulative_correction")
	require.NoError(t, err)
	assert.Equal(t, "12.5", got)
	assert.Equal(t, cfg.Storage.Path, m.DataPath())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "second close is a no-op")
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))

	require.NoError(t, kv.Set(ctx, "k", "v"))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.Error(t, err)
}

func TestNewMemoryManager(t *testing.T) {
	m := NewMemoryManager(common.NewSilentLogger())
	assert.Equal(t, ":memory:", m.DataPath())
	assert.NotNil(t, m.KeyValueStorage())
	assert.NoError(t, m.Close())
}

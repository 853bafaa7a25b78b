package ledger

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/models"
	"github.com/bobmcallan/lanfund/internal/storage"
)

// countingKV records writes so tests can assert that unchanged ledgers are not rewritten.
type countingKV struct {
	*storage.MemoryKV
	sets map[string]int
}

func newCountingKV() *countingKV {
	return &countingKV{MemoryKV: storage.NewMemoryKV(), sets: make(map[string]int)}
}

func (c *countingKV) Set(ctx context.Context, key, value string) error {
	c.sets[key]++
	return c.MemoryKV.Set(ctx, key, value)
}

func newTestService() (*Service, *countingKV) {
	kv := newCountingKV()
	return NewService(kv, common.NewSilentLogger()), kv
}

func TestAppendAndPending(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Append(ctx, models.OpAdd, models.PendingSettlement{FundCode: "000001", Amount: 300, SettlementDate: "2024-01-11"}))
	require.NoError(t, svc.Append(ctx, models.OpReduce, models.PendingSettlement{FundCode: "000002", Amount: 50, SettlementDate: "2024-01-12"}))

	adds, reduces, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, adds, 1)
	require.Len(t, reduces, 1)
	assert.Equal(t, "000001", adds[0].FundCode)
	assert.Equal(t, 50.0, reduces[0].Amount)
}

func TestAppend_UnknownOp(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Append(context.Background(), models.PositionOp("transfer"), models.PendingSettlement{})
	assert.Error(t, err)
}

func TestStoredFormatMatchesDashboard(t *testing.T) {
	svc, kv := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Append(ctx, models.OpAdd, models.PendingSettlement{FundCode: "000001", Amount: 300, SettlementDate: "2024-01-11"}))

	raw, err := kv.Get(ctx, KeyPendingAdds)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"fundCode":"000001","amount":300,"settlementDate":"2024-01-11"}]`, raw)
}

func TestPrune_DropsSettledAndPersistsOnlyOnChange(t *testing.T) {
	svc, kv := newTestService()
	ctx := context.Background()

	require.NoError(t, kv.MemoryKV.Set(ctx, KeyPendingAdds,
		`[{"fundCode":"A","amount":100,"settlementDate":"2024-01-10"},{"fundCode":"A","amount":200,"settlementDate":"2024-01-11"}]`))
	require.NoError(t, kv.MemoryKV.Set(ctx, KeyPendingReduces,
		`[{"fundCode":"B","amount":40,"settlementDate":"2024-01-12"}]`))

	adds, reduces, err := svc.Prune(ctx, "2024-01-10")
	require.NoError(t, err)
	require.Len(t, adds, 1)
	assert.Equal(t, 200.0, adds[0].Amount)
	require.Len(t, reduces, 1)

	assert.Equal(t, 1, kv.sets[KeyPendingAdds], "changed ledger rewritten once")
	assert.Equal(t, 0, kv.sets[KeyPendingReduces], "unchanged ledger not rewritten")

	// Idempotent: a second prune changes nothing and writes nothing.
	adds2, reduces2, err := svc.Prune(ctx, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, adds, adds2)
	assert.Equal(t, reduces, reduces2)
	assert.Equal(t, 1, kv.sets[KeyPendingAdds])
}

func TestPrune_CorruptLedgerReadsEmpty(t *testing.T) {
	svc, kv := newTestService()
	ctx := context.Background()
	require.NoError(t, kv.MemoryKV.Set(ctx, KeyPendingAdds, "{not json"))

	adds, reduces, err := svc.Prune(ctx, "2024-01-10")
	require.NoError(t, err)
	assert.Empty(t, adds)
	assert.Empty(t, reduces)
}

func TestRemove(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	entry := models.PendingSettlement{FundCode: "A", Amount: 100, SettlementDate: "2024-01-11"}

	require.NoError(t, svc.Append(ctx, models.OpAdd, entry))
	require.NoError(t, svc.Append(ctx, models.OpAdd, entry))

	found, err := svc.Remove(ctx, models.OpAdd, entry)
	require.NoError(t, err)
	assert.True(t, found)

	adds, _, _ := svc.Pending(ctx)
	assert.Len(t, adds, 1, "only one matching entry removed")

	found, err = svc.Remove(ctx, models.OpAdd, models.PendingSettlement{FundCode: "B", Amount: 100, SettlementDate: "2024-01-11"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClear(t *testing.T) {
	svc, kv := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Append(ctx, models.OpAdd, models.PendingSettlement{FundCode: "000001", Amount: 300, SettlementDate: "2024-01-11"}))
	require.NoError(t, svc.Append(ctx, models.OpReduce, models.PendingSettlement{FundCode: "000002", Amount: 80, SettlementDate: "2024-01-12"}))
	require.NoError(t, svc.SetCorrection(ctx, 25))

	require.NoError(t, svc.Clear(ctx))

	adds, reduces, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, adds)
	assert.Empty(t, reduces)
	_, err = kv.Get(ctx, KeyPendingAdds)
	assert.Error(t, err, "ledger key removed")
	assert.Equal(t, 25.0, svc.Correction(ctx), "preferences survive")

	require.NoError(t, svc.Clear(ctx), "clearing empty ledgers")
}

func TestCorrection(t *testing.T) {
	svc, kv := newTestService()
	ctx := context.Background()

	assert.Zero(t, svc.Correction(ctx), "default is 0")

	require.NoError(t, svc.SetCorrection(ctx, 123.45))
	assert.Equal(t, 123.45, svc.Correction(ctx))

	require.NoError(t, kv.MemoryKV.Set(ctx, KeyCumulativeCorrection, "abc"))
	assert.Zero(t, svc.Correction(ctx), "unparsable reads as 0")
}

func TestCorrection_NonFinite(t *testing.T) {
	svc, kv := newTestService()
	ctx := context.Background()
	require.NoError(t, svc.SetCorrection(ctx, 50))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, svc.SetCorrection(ctx, v), ErrInvalidCorrection)
	}
	assert.Equal(t, 50.0, svc.Correction(ctx), "rejected values leave the stored one")

	for _, raw := range []string{"NaN", "Inf", "-Inf", "+Infinity"} {
		require.NoError(t, kv.MemoryKV.Set(ctx, KeyCumulativeCorrection, raw))
		assert.Zero(t, svc.Correction(ctx), raw)
	}
}

func TestHideSensitive(t *testing.T) {
	svc, kv := newTestService()
	ctx := context.Background()

	assert.False(t, svc.HideSensitive(ctx))
	require.NoError(t, svc.SetHideSensitive(ctx, true))
	assert.True(t, svc.HideSensitive(ctx))

	raw, _ := kv.Get(ctx, KeyHideSensitiveValues)
	assert.Equal(t, "true", raw)

	prefs := svc.Preferences(ctx)
	assert.True(t, prefs.HideSensitiveValues)
}

func TestSumByFund(t *testing.T) {
	sums := SumByFund([]models.PendingSettlement{
		{FundCode: "A", Amount: 100},
		{FundCode: "A", Amount: 50},
		{FundCode: "B", Amount: 10},
	})
	assert.Equal(t, 150.0, sums["A"])
	assert.Equal(t, 10.0, sums["B"])
	assert.Zero(t, sums["C"])
}

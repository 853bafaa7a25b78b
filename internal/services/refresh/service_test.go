package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/bobmcallan/lanfund/internal/models"
)

// mockPortfolio only answers Refresh
type mockPortfolio struct {
	interfaces.PortfolioService
	calls     atomic.Int32
	refreshFn func(ctx context.Context) (*models.PositionSummary, error)
}

func (m *mockPortfolio) Refresh(ctx context.Context) (*models.PositionSummary, error) {
	m.calls.Add(1)
	if m.refreshFn != nil {
		return m.refreshFn(ctx)
	}
	return &models.PositionSummary{Date: "2024-01-10", TotalValue: 100}, nil
}

// mockBackend only answers GetMarketData
type mockBackend struct {
	interfaces.FundBackend
	mu     sync.Mutex
	paths  []string
	failOn map[string]bool
}

func (m *mockBackend) GetMarketData(ctx context.Context, path string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	if m.failOn[path] {
		return nil, errors.New("upstream down")
	}
	return json.RawMessage(`{"path":"` + path + `"}`), nil
}

func (m *mockBackend) requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

func TestRefreshNow_LoadsPagesAndPublishes(t *testing.T) {
	portfolio := &mockPortfolio{}
	backend := &mockBackend{}
	svc := NewService(portfolio, backend, common.NewSilentLogger(),
		WithPages(common.PagePortfolio, common.PageMarketIndices, "bogus"))

	var got []*models.PositionSummary
	unsubscribe := svc.Subscribe(func(s *models.PositionSummary) { got = append(got, s) })

	require.NoError(t, svc.RefreshNow(context.Background()))

	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].TotalValue)
	assert.ElementsMatch(t, []string{"/api/timing", "/api/indices/global", "/api/indices/volume"}, backend.requested())

	pd, ok := svc.Page(common.PageMarketIndices)
	require.True(t, ok)
	assert.JSONEq(t, `{"path":"/api/indices/global"}`, string(pd.Sources["global"]))
	assert.Empty(t, pd.Errors)

	_, ok = svc.Page("bogus")
	assert.False(t, ok)

	unsubscribe()
	require.NoError(t, svc.RefreshNow(context.Background()))
	assert.Len(t, got, 1, "unsubscribed callback must not fire")
}

func TestRefreshNow_PartialFailure(t *testing.T) {
	portfolio := &mockPortfolio{refreshFn: func(ctx context.Context) (*models.PositionSummary, error) {
		return nil, errors.New("rows unavailable")
	}}
	backend := &mockBackend{failOn: map[string]bool{"/api/gold/history": true}}
	svc := NewService(portfolio, backend, common.NewSilentLogger(),
		WithPages(common.PagePortfolio, common.PagePreciousMetals, common.PageSectors))

	published := false
	svc.Subscribe(func(*models.PositionSummary) { published = true })

	err := svc.RefreshNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows unavailable")
	assert.Contains(t, err.Error(), "/api/gold/history")
	assert.False(t, published)

	pd, ok := svc.Page(common.PagePreciousMetals)
	require.True(t, ok)
	assert.Contains(t, pd.Sources, "realtime")
	assert.NotContains(t, pd.Sources, "history")
	assert.Equal(t, "upstream down", pd.Errors["history"])

	pd, ok = svc.Page(common.PageSectors)
	require.True(t, ok)
	assert.Contains(t, pd.Sources, "sectors", "other pages still load")
}

func TestTickerFires(t *testing.T) {
	portfolio := &mockPortfolio{}
	svc := NewService(portfolio, &mockBackend{}, common.NewSilentLogger(), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	assert.Eventually(t, func() bool { return portfolio.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	svc.Stop()
	after := portfolio.calls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, after, portfolio.calls.Load(), "no ticks after Stop")
}

func TestPauseResume(t *testing.T) {
	portfolio := &mockPortfolio{}
	svc := NewService(portfolio, &mockBackend{}, common.NewSilentLogger(), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Pause()
	assert.True(t, svc.Paused())
	svc.Pause()

	paused := portfolio.calls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, paused, portfolio.calls.Load(), "no ticks while paused")

	svc.Resume(ctx)
	assert.False(t, svc.Paused())
	assert.GreaterOrEqual(t, portfolio.calls.Load(), paused+1, "resume refreshes immediately")

	assert.Eventually(t, func() bool { return portfolio.calls.Load() >= paused+3 }, time.Second, 5*time.Millisecond)
}

func TestResumeBeforeStart(t *testing.T) {
	portfolio := &mockPortfolio{}
	svc := NewService(portfolio, &mockBackend{}, common.NewSilentLogger(), WithInterval(10*time.Millisecond))

	svc.Resume(context.Background())
	assert.Equal(t, int32(0), portfolio.calls.Load(), "resume without pause is a no-op")

	svc.Pause()
	svc.Resume(context.Background())
	assert.Equal(t, int32(1), portfolio.calls.Load())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), portfolio.calls.Load(), "ticker only runs after Start")
}

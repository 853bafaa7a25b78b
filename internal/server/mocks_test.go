package server

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bobmcallan/lanfund/internal/app"
	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/bobmcallan/lanfund/internal/models"
	"github.com/bobmcallan/lanfund/internal/services/ledger"
	"github.com/bobmcallan/lanfund/internal/services/refresh"
	"github.com/bobmcallan/lanfund/internal/services/report"
	"github.com/bobmcallan/lanfund/internal/storage"
)

// mockPortfolioService implements interfaces.PortfolioService with func fields.
type mockPortfolioService struct {
	summary        *models.PositionSummary
	refresh        func(ctx context.Context) (*models.PositionSummary, error)
	addPosition    func(ctx context.Context, change models.PositionChange) (*models.PositionResult, error)
	reducePosition func(ctx context.Context, change models.PositionChange) (*models.PositionResult, error)
	setHolding     func(ctx context.Context, code string, units, cost float64) (*models.HoldingResult, error)
	showoffCard    func(ctx context.Context) (*models.ShowoffCard, error)
	records        func(ctx context.Context) ([]models.PositionRecord, error)
	undoRecord     func(ctx context.Context, id int64) (string, error)
	roster         func(op string, codes, sectors []string) (string, error)
	refreshCalls   int
}

func (m *mockPortfolioService) Hydrate(ctx context.Context) error { return nil }

func (m *mockPortfolioService) Aggregate(ctx context.Context, rows []models.FundRow) (*models.PositionSummary, error) {
	return m.summary, nil
}

func (m *mockPortfolioService) Refresh(ctx context.Context) (*models.PositionSummary, error) {
	m.refreshCalls++
	if m.refresh != nil {
		s, err := m.refresh(ctx)
		if err == nil {
			m.summary = s
		}
		return s, err
	}
	return m.summary, nil
}

func (m *mockPortfolioService) Summary() *models.PositionSummary { return m.summary }

func (m *mockPortfolioService) Holdings() map[string]models.FundHolding {
	return map[string]models.FundHolding{"000001": {HoldingUnits: 100, CostPerUnit: 2}}
}

func (m *mockPortfolioService) AddPosition(ctx context.Context, change models.PositionChange) (*models.PositionResult, error) {
	return m.addPosition(ctx, change)
}

func (m *mockPortfolioService) ReducePosition(ctx context.Context, change models.PositionChange) (*models.PositionResult, error) {
	return m.reducePosition(ctx, change)
}

func (m *mockPortfolioService) SetHolding(ctx context.Context, code string, units, cost float64) (*models.HoldingResult, error) {
	return m.setHolding(ctx, code, units, cost)
}

func (m *mockPortfolioService) ShowoffCard(ctx context.Context) (*models.ShowoffCard, error) {
	return m.showoffCard(ctx)
}

func (m *mockPortfolioService) PositionRecords(ctx context.Context) ([]models.PositionRecord, error) {
	if m.records == nil {
		return nil, nil
	}
	return m.records(ctx)
}

func (m *mockPortfolioService) UndoRecord(ctx context.Context, id int64) (string, error) {
	return m.undoRecord(ctx, id)
}

func (m *mockPortfolioService) AddFunds(ctx context.Context, codes []string) (string, error) {
	return m.roster("add", codes, nil)
}

func (m *mockPortfolioService) DeleteFunds(ctx context.Context, codes []string) (string, error) {
	return m.roster("delete", codes, nil)
}

func (m *mockPortfolioService) MarkSectors(ctx context.Context, codes, sectors []string) (string, error) {
	return m.roster("sector", codes, sectors)
}

func (m *mockPortfolioService) UnmarkSectors(ctx context.Context, codes []string) (string, error) {
	return m.roster("unsector", codes, nil)
}

// mockBackend answers the reads the server and refresher make directly.
type mockBackend struct {
	interfaces.FundBackend
	beijingTime func(ctx context.Context) (*models.ServerTime, error)
}

func (m *mockBackend) BeijingTime(ctx context.Context) (*models.ServerTime, error) {
	return m.beijingTime(ctx)
}

func (m *mockBackend) GetMarketData(ctx context.Context, path string) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

var testNow = time.Date(2024, 1, 10, 10, 0, 0, 0, time.FixedZone("CST", 8*3600))

func sampleSummary() *models.PositionSummary {
	return &models.PositionSummary{
		Date: "2024-01-10",
		Funds: []models.FundDetail{{
			Code: "000001", Name: "Alpha", NetValue: 2.5, NetValueDate: "2024-01-10",
			HoldingUnits: 100, CostPerUnit: 2, PositionValue: 250, PositionAmount: 250,
			CumulativeReturn: 50, EstimatedGain: 2.5, EstimatedGainPct: 1,
		}},
		TotalValue:    250,
		EstimatedGain: 2.5,
		HeldCount:     1,
	}
}

// newTestServer builds a server over mocks, an in-memory ledger and the real
// report and refresh services.
func newTestServer(t *testing.T, svc *mockPortfolioService, backend *mockBackend) *Server {
	t.Helper()
	logger := common.NewSilentLogger()
	cfg := common.NewDefaultConfig()
	if backend == nil {
		backend = &mockBackend{}
	}
	mgr := storage.NewMemoryManager(logger)

	a := &app.App{
		Config:           cfg,
		Logger:           logger,
		Clock:            common.NewFixedClock(testNow),
		Storage:          mgr,
		Backend:          backend,
		LedgerService:    ledger.NewService(mgr.KeyValueStorage(), logger),
		PortfolioService: svc,
		RefreshService: refresh.NewService(svc, backend, logger,
			refresh.WithPages(common.PagePortfolio, common.PageSectors)),
		ReportService: report.NewService(logger, report.WithStyle("notty")),
		StartupTime:   testNow,
	}

	srv := NewServer(a)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return bytes.NewBuffer(data)
}

package interfaces

import (
	"context"
	"io"

	"github.com/bobmcallan/lanfund/internal/models"
)

// LedgerService keeps pending settlements and preferences in a KeyValueStorage
type LedgerService interface {
	// Pending returns both ledgers as stored, without pruning
	Pending(ctx context.Context) (adds, reduces []models.PendingSettlement, err error)

	// Prune drops entries settled on or before today from both ledgers,
	// writing a ledger back only when it changed
	Prune(ctx context.Context, today string) (adds, reduces []models.PendingSettlement, err error)

	// Append records a new pending entry for op
	Append(ctx context.Context, op models.PositionOp, entry models.PendingSettlement) error

	// Remove deletes the first entry equal to entry, reporting whether one was found
	Remove(ctx context.Context, op models.PositionOp, entry models.PendingSettlement) (bool, error)

	// Clear drops both ledgers
	Clear(ctx context.Context) error

	// Preferences
	Correction(ctx context.Context) float64
	SetCorrection(ctx context.Context, value float64) error
	HideSensitive(ctx context.Context) bool
	SetHideSensitive(ctx context.Context, hidden bool) error
	Preferences(ctx context.Context) models.Preferences
}

// PortfolioService owns the holdings store and position bookkeeping
type PortfolioService interface {
	// Hydrate reloads holdings, shares and sectors from the backend
	Hydrate(ctx context.Context) error

	// Aggregate computes the summary for rows against current state
	Aggregate(ctx context.Context, rows []models.FundRow) (*models.PositionSummary, error)

	// Refresh fetches rows, hydrates and aggregates
	Refresh(ctx context.Context) (*models.PositionSummary, error)

	// Summary returns the most recent aggregation, or nil
	Summary() *models.PositionSummary

	// Holdings returns a copy of the holdings store
	Holdings() map[string]models.FundHolding

	AddPosition(ctx context.Context, change models.PositionChange) (*models.PositionResult, error)
	ReducePosition(ctx context.Context, change models.PositionChange) (*models.PositionResult, error)

	// SetHolding overwrites units and cost without recording a trade
	SetHolding(ctx context.Context, code string, units, cost float64) (*models.HoldingResult, error)

	ShowoffCard(ctx context.Context) (*models.ShowoffCard, error)

	PositionRecords(ctx context.Context) ([]models.PositionRecord, error)
	UndoRecord(ctx context.Context, id int64) (string, error)

	// Roster
	AddFunds(ctx context.Context, codes []string) (string, error)
	DeleteFunds(ctx context.Context, codes []string) (string, error)
	MarkSectors(ctx context.Context, codes, sectors []string) (string, error)
	UnmarkSectors(ctx context.Context, codes []string) (string, error)
}

// RefreshService drives periodic page refreshes
type RefreshService interface {
	Start(ctx context.Context)
	Stop()
	Pause()
	Resume(ctx context.Context)
	Paused() bool
	RefreshNow(ctx context.Context) error
	Page(name string) (*models.PageData, bool)
	Subscribe(fn func(*models.PositionSummary)) (unsubscribe func())
}

// ReportService renders summaries and cards for people
type ReportService interface {
	SummaryMarkdown(summary *models.PositionSummary, prefs models.Preferences) string
	CardMarkdown(card *models.ShowoffCard, hidden bool) string
	RenderTerminal(markdown string) (string, error)
	CardChart(card *models.ShowoffCard) ([]byte, error)
	ExportCSV(summary *models.PositionSummary, w io.Writer) error
}

package interfaces

import (
	"context"
	"encoding/json"

	"github.com/bobmcallan/lanfund/internal/models"
)

// FundBackend is the fund dashboard backend.
type FundBackend interface {
	// Login establishes a session. Other calls log in lazily when needed.
	Login(ctx context.Context) error

	// GetFundData returns the roster keyed by fund code
	GetFundData(ctx context.Context) (map[string]models.FundRecord, error)

	// GetPortfolioRows returns the watchlist table rows for a group
	GetPortfolioRows(ctx context.Context, group string) ([]models.FundRow, error)

	// UpdateShares persists a holding change. A result with Success=false is
	// returned as a *lanfund.RejectedError.
	UpdateShares(ctx context.Context, update models.SharesUpdate) (*models.SharesResult, error)

	// Position records
	GetPositionRecords(ctx context.Context) ([]models.PositionRecord, error)
	DeletePositionRecord(ctx context.Context, id int64) (string, error)

	// Roster management
	AddFunds(ctx context.Context, codes []string) (string, error)
	DeleteFunds(ctx context.Context, codes []string) (string, error)
	MarkSectors(ctx context.Context, codes []string, sectors []string) (string, error)
	UnmarkSectors(ctx context.Context, codes []string) (string, error)
	UploadRoster(ctx context.Context, filename string, data []byte) (string, error)
	DownloadRoster(ctx context.Context) ([]byte, error)

	// BeijingTime returns the backend clock
	BeijingTime(ctx context.Context) (*models.ServerTime, error)

	// GetMarketData reads one {success, data} market endpoint and returns data
	GetMarketData(ctx context.Context, path string) (json.RawMessage, error)
}

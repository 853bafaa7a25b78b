// Package portfolio provides position aggregation and bookkeeping services
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/bobmcallan/lanfund/internal/models"
	"github.com/bobmcallan/lanfund/internal/services/ledger"
)

var (
	ErrMissingCode      = errors.New("fund code is required")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrMissingTradeTime = errors.New("trade time is required")
	ErrInvalidTradeTime = errors.New("trade time must have a YYYY-MM-DD date and a before15 or after15 period")
	ErrInvalidNetValue  = errors.New("net value must be a finite number")
	ErrInvalidHolding   = errors.New("holding units and cost must be finite and not negative")
	ErrNoHoldings       = errors.New("no holdings to show")
	ErrRecordNotFound   = errors.New("position record not found")
	ErrUndoExpired      = errors.New("undo deadline has passed")
)

// Service implements PortfolioService
type Service struct {
	backend interfaces.FundBackend
	ledger  interfaces.LedgerService
	state   *State
	clock   *common.Clock
	group   string
	logger  *common.Logger
	locks   *keyedMutex

	rowsMu sync.RWMutex
	rows   []models.FundRow
}

var _ interfaces.PortfolioService = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithGroup selects the backend watchlist group to aggregate
func WithGroup(group string) Option {
	return func(s *Service) {
		s.group = group
	}
}

// WithClock sets the clock used for "today"
func WithClock(clock *common.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService creates a new portfolio service
func NewService(
	backend interfaces.FundBackend,
	pending interfaces.LedgerService,
	logger *common.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		backend: backend,
		ledger:  pending,
		state:   NewState(),
		clock:   common.NewClock(nil),
		logger:  logger,
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate reloads holdings, shares, names and sectors from the backend
func (s *Service) Hydrate(ctx context.Context) error {
	funds, err := s.backend.GetFundData(ctx)
	if err != nil {
		return fmt.Errorf("failed to load fund data: %w", err)
	}
	s.state.Load(funds)
	s.logger.Debug().Int("funds", len(funds)).Msg("Holdings hydrated")
	return nil
}

// Aggregate prunes settled ledger entries and computes the summary for rows
func (s *Service) Aggregate(ctx context.Context, rows []models.FundRow) (*models.PositionSummary, error) {
	now := s.clock.Now()

	adds, reduces, err := s.ledger.Prune(ctx, now.Format(common.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to read pending ledger: %w", err)
	}
	pending := pendingSums{
		adds:    ledger.SumByFund(adds),
		reduces: ledger.SumByFund(reduces),
	}

	summary := aggregate(rows, s.state, pending, now, s.ledger.Correction(ctx), s.logger)

	s.rowsMu.Lock()
	s.rows = rows
	s.rowsMu.Unlock()
	s.state.SetSummary(summary)

	s.logger.Debug().
		Int("funds", len(summary.Funds)).
		Int("skipped", summary.SkippedRows).
		Float64("total_value", summary.TotalValue).
		Msg("Positions aggregated")

	return summary, nil
}

// Refresh fetches the watchlist rows, rehydrates holdings and aggregates
func (s *Service) Refresh(ctx context.Context) (*models.PositionSummary, error) {
	rows, err := s.backend.GetPortfolioRows(ctx, s.group)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio rows: %w", err)
	}
	if err := s.Hydrate(ctx); err != nil {
		return nil, err
	}
	return s.Aggregate(ctx, rows)
}

// Summary returns the most recent aggregation, or nil
func (s *Service) Summary() *models.PositionSummary {
	return s.state.Summary()
}

// Holdings returns a copy of the holdings store
func (s *Service) Holdings() map[string]models.FundHolding {
	return s.state.Holdings()
}

// AddPosition records a buy and moves the cost basis to the weighted average
func (s *Service) AddPosition(ctx context.Context, change models.PositionChange) (*models.PositionResult, error) {
	return s.changePosition(ctx, models.OpAdd, change)
}

// ReducePosition records a sale. Cost basis is kept until the position closes.
func (s *Service) ReducePosition(ctx context.Context, change models.PositionChange) (*models.PositionResult, error) {
	return s.changePosition(ctx, models.OpReduce, change)
}

func validateChange(change models.PositionChange) error {
	if change.Code == "" {
		return ErrMissingCode
	}
	if !(change.Amount > 0) || math.IsInf(change.Amount, 0) {
		return ErrInvalidAmount
	}
	if !finite(change.NetValue) || change.NetValue < 0 {
		return ErrInvalidNetValue
	}
	if change.TradeTime == nil || change.TradeTime.Date == "" {
		return ErrMissingTradeTime
	}
	if !change.TradeTime.Period.Valid() || !common.ValidDate(change.TradeTime.Date) {
		return ErrInvalidTradeTime
	}
	return nil
}

func (s *Service) changePosition(ctx context.Context, op models.PositionOp, change models.PositionChange) (*models.PositionResult, error) {
	if err := validateChange(change); err != nil {
		return nil, err
	}
	tt := *change.TradeTime
	settles, err := settlementDate(tt)
	if err != nil {
		return nil, ErrInvalidTradeTime
	}

	unlock := s.locks.Lock(change.Code)
	defer unlock()

	prev := s.state.Resolve(change.Code)
	nv := s.netValue(change)

	var next models.FundHolding
	if op == models.OpAdd {
		next = addPosition(prev, change.Amount, nv)
	} else {
		next = reducePosition(prev, change.Amount, nv)
	}

	units, cost, amount := next.HoldingUnits, next.CostPerUnit, change.Amount
	res, err := s.backend.UpdateShares(ctx, models.SharesUpdate{
		Code:         change.Code,
		HoldingUnits: &units,
		CostPerUnit:  &cost,
		RecordOp:     op,
		Amount:       &amount,
		TradeDate:    tt.Date,
		Period:       tt.Period,
		FundName:     s.fundName(change.Code),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("code", change.Code).Str("op", string(op)).Msg("Position change failed")
		return nil, fmt.Errorf("failed to %s position for %s: %w", op, change.Code, err)
	}

	s.state.Apply(change.Code, next, units*cost)

	entry := models.PendingSettlement{FundCode: change.Code, Amount: change.Amount, SettlementDate: settles}
	if err := s.ledger.Append(ctx, op, entry); err != nil {
		// The backend already holds the change; only the display adjustment is lost.
		s.logger.Error().Err(err).Str("code", change.Code).Msg("Failed to record pending settlement")
	}

	s.logger.Info().
		Str("code", change.Code).
		Str("op", string(op)).
		Float64("amount", change.Amount).
		Float64("net_value", nv).
		Float64("units", units).
		Float64("cost", cost).
		Str("settles", settles).
		Msg("Position changed")

	result := &models.PositionResult{
		Code:           change.Code,
		Op:             op,
		Previous:       prev,
		Holding:        next,
		NetValue:       nv,
		Units:          change.Amount / nv,
		Pending:        entry,
		BackendMessage: res.Message,
	}
	result.Summary = s.reaggregate(ctx)
	return result, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SetHolding overwrites the units and cost held in a fund without recording
// a trade. A cost of 0 means 1. Values echoed by the backend win over the
// requested ones.
func (s *Service) SetHolding(ctx context.Context, code string, units, cost float64) (*models.HoldingResult, error) {
	if code == "" {
		return nil, ErrMissingCode
	}
	if !finite(units) || !finite(cost) || units < 0 || cost < 0 {
		return nil, ErrInvalidHolding
	}
	if cost == 0 {
		cost = 1
	}

	unlock := s.locks.Lock(code)
	defer unlock()

	res, err := s.backend.UpdateShares(ctx, models.SharesUpdate{
		Code:         code,
		HoldingUnits: &units,
		CostPerUnit:  &cost,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("code", code).Msg("Set holding failed")
		return nil, fmt.Errorf("failed to set holding for %s: %w", code, err)
	}

	holding := models.FundHolding{HoldingUnits: units, CostPerUnit: cost}
	if res.HoldingUnits != nil {
		holding.HoldingUnits = *res.HoldingUnits
	}
	if res.CostPerUnit != nil {
		holding.CostPerUnit = *res.CostPerUnit
	}
	shares := units * cost
	if res.Shares != nil {
		shares = *res.Shares
	}
	s.state.Apply(code, holding, shares)

	s.logger.Info().
		Str("code", code).
		Float64("units", holding.HoldingUnits).
		Float64("cost", holding.CostPerUnit).
		Float64("shares", shares).
		Msg("Holding set")

	result := &models.HoldingResult{
		Code:           code,
		Holding:        holding,
		Shares:         shares,
		BackendMessage: res.Message,
	}
	result.Summary = s.reaggregate(ctx)
	return result, nil
}

// netValue picks the price for a position change: the request override, the
// last row seen for the fund, or 1.
func (s *Service) netValue(change models.PositionChange) float64 {
	if change.NetValue > 0 {
		return change.NetValue
	}
	s.rowsMu.RLock()
	defer s.rowsMu.RUnlock()
	for _, row := range s.rows {
		if row.Code != change.Code {
			continue
		}
		if q, err := row.Quote(); err == nil && q.NetValue > 0 {
			return q.NetValue
		}
		break
	}
	s.logger.Warn().Str("code", change.Code).Msg("No net value known, using 1")
	return 1
}

func (s *Service) fundName(code string) string {
	if name := s.state.Name(code); name != "" {
		return name
	}
	s.rowsMu.RLock()
	defer s.rowsMu.RUnlock()
	for _, row := range s.rows {
		if row.Code == code {
			return row.Name
		}
	}
	return ""
}

// reaggregate recomputes the summary from the last rows, fetching rows when
// none have been seen yet. Failures are logged and yield nil.
func (s *Service) reaggregate(ctx context.Context) *models.PositionSummary {
	s.rowsMu.RLock()
	rows := s.rows
	s.rowsMu.RUnlock()

	var (
		summary *models.PositionSummary
		err     error
	)
	if rows == nil {
		rows, err = s.backend.GetPortfolioRows(ctx, s.group)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to load rows for re-aggregation")
			return nil
		}
	}
	summary, err = s.Aggregate(ctx, rows)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Re-aggregation failed")
		return nil
	}
	return summary
}

// ShowoffCard builds the shareable daily card from the latest summary,
// aggregating first if nothing has been computed yet
func (s *Service) ShowoffCard(ctx context.Context) (*models.ShowoffCard, error) {
	summary := s.state.Summary()
	if summary == nil {
		var err error
		if summary, err = s.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return BuildCard(summary)
}

// AddFunds adds codes to the backend roster and rehydrates
func (s *Service) AddFunds(ctx context.Context, codes []string) (string, error) {
	return s.roster(ctx, "add funds", func() (string, error) { return s.backend.AddFunds(ctx, codes) })
}

// DeleteFunds removes codes from the backend roster and rehydrates
func (s *Service) DeleteFunds(ctx context.Context, codes []string) (string, error) {
	return s.roster(ctx, "delete funds", func() (string, error) { return s.backend.DeleteFunds(ctx, codes) })
}

// MarkSectors tags codes with sectors
func (s *Service) MarkSectors(ctx context.Context, codes, sectors []string) (string, error) {
	return s.roster(ctx, "mark sectors", func() (string, error) { return s.backend.MarkSectors(ctx, codes, sectors) })
}

// UnmarkSectors clears sector tags from codes
func (s *Service) UnmarkSectors(ctx context.Context, codes []string) (string, error) {
	return s.roster(ctx, "unmark sectors", func() (string, error) { return s.backend.UnmarkSectors(ctx, codes) })
}

func (s *Service) roster(ctx context.Context, action string, call func() (string, error)) (string, error) {
	msg, err := call()
	if err != nil {
		return "", fmt.Errorf("failed to %s: %w", action, err)
	}
	if err := s.Hydrate(ctx); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("Rehydrate after roster change failed")
	}
	return msg, nil
}

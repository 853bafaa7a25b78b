// Package ledger keeps pending settlements and display preferences in the
// local key-value store.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/bobmcallan/lanfund/internal/models"
)

// Storage keys. These match the keys the web dashboard uses in localStorage
// so exported state can be moved between the two.
const (
	KeyPendingAdds          = "lan_fund_pending_adds"
	KeyPendingReduces       = "lan_fund_pending_reduces"
	KeyCumulativeCorrection = "lan_fund_cumulative_correction"
	KeyHideSensitiveValues  = "hideSensitiveValues"
)

// ErrInvalidCorrection is returned for a correction that is NaN or infinite.
var ErrInvalidCorrection = errors.New("cumulative correction must be a finite number")

// Service implements interfaces.LedgerService
type Service struct {
	kv     interfaces.KeyValueStorage
	logger *common.Logger
	mu     sync.Mutex
}

var _ interfaces.LedgerService = (*Service)(nil)

// NewService creates a ledger over kv
func NewService(kv interfaces.KeyValueStorage, logger *common.Logger) *Service {
	return &Service{kv: kv, logger: logger}
}

func ledgerKey(op models.PositionOp) (string, error) {
	switch op {
	case models.OpAdd:
		return KeyPendingAdds, nil
	case models.OpReduce:
		return KeyPendingReduces, nil
	default:
		return "", fmt.Errorf("unknown position op %q", op)
	}
}

// load reads a ledger. A missing or corrupt value reads as empty.
func (s *Service) load(ctx context.Context, key string) ([]models.PendingSettlement, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var entries []models.PendingSettlement
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding unreadable pending ledger")
		return nil, nil
	}
	return entries, nil
}

func (s *Service) save(ctx context.Context, key string, entries []models.PendingSettlement) error {
	if entries == nil {
		entries = []models.PendingSettlement{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(data))
}

func (s *Service) Pending(ctx context.Context) ([]models.PendingSettlement, []models.PendingSettlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adds, err := s.load(ctx, KeyPendingAdds)
	if err != nil {
		return nil, nil, err
	}
	reduces, err := s.load(ctx, KeyPendingReduces)
	if err != nil {
		return nil, nil, err
	}
	return adds, reduces, nil
}

func (s *Service) Prune(ctx context.Context, today string) ([]models.PendingSettlement, []models.PendingSettlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adds, err := s.pruneKey(ctx, KeyPendingAdds, today)
	if err != nil {
		return nil, nil, err
	}
	reduces, err := s.pruneKey(ctx, KeyPendingReduces, today)
	if err != nil {
		return nil, nil, err
	}
	return adds, reduces, nil
}

// Clear drops both pending ledgers.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{KeyPendingAdds, KeyPendingReduces} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	s.logger.Info().Msg("Pending ledgers cleared")
	return nil
}

func (s *Service) pruneKey(ctx context.Context, key, today string) ([]models.PendingSettlement, error) {
	entries, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	kept := StillPending(entries, today)
	if len(kept) != len(entries) {
		if err := s.save(ctx, key, kept); err != nil {
			return nil, err
		}
		s.logger.Debug().
			Str("key", key).
			Int("settled", len(entries)-len(kept)).
			Int("pending", len(kept)).
			Msg("Pruned settled entries")
	}
	return kept, nil
}

func (s *Service) Append(ctx context.Context, op models.PositionOp, entry models.PendingSettlement) error {
	key, err := ledgerKey(op)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	return s.save(ctx, key, append(entries, entry))
}

func (s *Service) Remove(ctx context.Context, op models.PositionOp, entry models.PendingSettlement) (bool, error) {
	key, err := ledgerKey(op)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, key)
	if err != nil {
		return false, err
	}
	for i, e := range entries {
		if e.FundCode == entry.FundCode && e.SettlementDate == entry.SettlementDate && common.Round2(e.Amount) == common.Round2(entry.Amount) {
			entries = append(entries[:i], entries[i+1:]...)
			return true, s.save(ctx, key, entries)
		}
	}
	return false, nil
}

func (s *Service) Correction(ctx context.Context) float64 {
	raw, err := s.kv.Get(ctx, KeyCumulativeCorrection)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (s *Service) SetCorrection(ctx context.Context, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ErrInvalidCorrection
	}
	return s.kv.Set(ctx, KeyCumulativeCorrection, strconv.FormatFloat(value, 'f', -1, 64))
}

func (s *Service) HideSensitive(ctx context.Context) bool {
	raw, err := s.kv.Get(ctx, KeyHideSensitiveValues)
	if err != nil {
		return false
	}
	return raw == "true"
}

func (s *Service) SetHideSensitive(ctx context.Context, hidden bool) error {
	return s.kv.Set(ctx, KeyHideSensitiveValues, strconv.FormatBool(hidden))
}

func (s *Service) Preferences(ctx context.Context) models.Preferences {
	return models.Preferences{
		HideSensitiveValues:  s.HideSensitive(ctx),
		CumulativeCorrection: s.Correction(ctx),
	}
}

// StillPending returns the entries whose settlement date is after today.
func StillPending(entries []models.PendingSettlement, today string) []models.PendingSettlement {
	kept := make([]models.PendingSettlement, 0, len(entries))
	for _, e := range entries {
		if e.SettlementDate > today {
			kept = append(kept, e)
		}
	}
	return kept
}

// SumByFund totals pending amounts per fund code.
func SumByFund(entries []models.PendingSettlement) map[string]float64 {
	sums := make(map[string]float64)
	for _, e := range entries {
		sums[e.FundCode] += e.Amount
	}
	return sums
}

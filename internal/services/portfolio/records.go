package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/lanfund/internal/models"
)

// undoable reports whether rec can still be undone at now.
func undoable(rec models.PositionRecord, now time.Time) bool {
	deadline, err := rec.UndoDeadline(now.Location())
	if err != nil {
		return false
	}
	return deadline.IsZero() || now.Before(deadline)
}

// PositionRecords lists the backend's add/reduce records with CanUndo set
// from the local deadline rule
func (s *Service) PositionRecords(ctx context.Context) ([]models.PositionRecord, error) {
	records, err := s.backend.GetPositionRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load position records: %w", err)
	}
	now := s.clock.Now()
	for i := range records {
		records[i].CanUndo = undoable(records[i], now)
	}
	return records, nil
}

// UndoRecord deletes a position record on the backend, which restores the
// previous holding, then drops the matching pending settlement locally
func (s *Service) UndoRecord(ctx context.Context, id int64) (string, error) {
	records, err := s.backend.GetPositionRecords(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load position records: %w", err)
	}

	var rec *models.PositionRecord
	for i := range records {
		if records[i].ID == id {
			rec = &records[i]
			break
		}
	}
	if rec == nil {
		return "", fmt.Errorf("record %d: %w", id, ErrRecordNotFound)
	}
	if !undoable(*rec, s.clock.Now()) {
		return "", fmt.Errorf("record %d: %w", id, ErrUndoExpired)
	}

	unlock := s.locks.Lock(rec.FundCode)
	defer unlock()

	msg, err := s.backend.DeletePositionRecord(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to undo record %d: %w", id, err)
	}

	if rec.TradeDate != "" {
		period := rec.Period
		if !period.Valid() {
			period = models.PeriodBefore15
		}
		settles, err := settlementDate(models.TradeTime{Date: rec.TradeDate, Period: period})
		if err == nil {
			entry := models.PendingSettlement{FundCode: rec.FundCode, Amount: rec.Amount, SettlementDate: settles}
			removed, err := s.ledger.Remove(ctx, rec.Op, entry)
			if err != nil {
				s.logger.Warn().Err(err).Int64("id", id).Msg("Failed to drop pending settlement for undone record")
			} else if !removed {
				s.logger.Debug().Int64("id", id).Msg("No pending settlement matched undone record")
			}
		}
	}

	if err := s.Hydrate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Rehydrate after undo failed")
	} else {
		s.reaggregate(ctx)
	}

	s.logger.Info().Int64("id", id).Str("code", rec.FundCode).Str("op", string(rec.Op)).Msg("Position record undone")
	return msg, nil
}

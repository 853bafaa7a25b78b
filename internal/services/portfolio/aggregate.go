package portfolio

import (
	"math"
	"time"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/models"
)

// pendingSums are per-fund totals of unsettled trades.
type pendingSums struct {
	adds    map[string]float64
	reduces map[string]float64
}

// aggregate computes the position summary for rows. Rows whose fund holds no
// units are left out; rows with an unreadable net value are logged and
// counted in SkippedRows. Row order is preserved.
func aggregate(rows []models.FundRow, state *State, pending pendingSums, now time.Time, correction float64, logger *common.Logger) *models.PositionSummary {
	today := now.Format(common.DateLayout)
	summary := &models.PositionSummary{
		Date:                 today,
		Funds:                []models.FundDetail{},
		CumulativeCorrection: correction,
	}

	var cumulative float64
	for _, row := range rows {
		h := state.Resolve(row.Code)
		if h.HoldingUnits <= 0 {
			continue
		}

		q, err := row.Quote()
		if err != nil {
			logger.Warn().Err(err).Str("code", row.Code).Msg("Skipping fund row")
			summary.SkippedRows++
			continue
		}

		units := h.HoldingUnits
		cost := h.EffectiveCost()
		nvDate := common.NormalizeNetValueDate(q.NetValueDate, now)

		detail := models.FundDetail{
			Code:             row.Code,
			Name:             row.Name,
			Shares:           state.Shares(row.Code),
			NetValue:         q.NetValue,
			NetValueDate:     nvDate,
			DayGrowth:        q.DayGrowthPct,
			HoldingUnits:     units,
			CostPerUnit:      cost,
			CumulativeReturn: (q.NetValue - cost) * units,
			EstimatedGainPct: q.EstimatedGrowthPct,
			PendingAdd:       pending.adds[row.Code],
			PendingReduce:    pending.reduces[row.Code],
			Sectors:          state.Sectors(row.Code),
		}
		if detail.Name == "" {
			detail.Name = state.Name(row.Code)
		}

		detail.PositionValue = detail.CumulativeReturn + cost*units
		detail.EstimatedGain = detail.PositionValue * q.EstimatedGrowthPct / 100
		summary.EstimatedGain += detail.EstimatedGain

		if nvDate == today {
			detail.ActualGain = detail.PositionValue * q.DayGrowthPct / 100
			detail.ActualGainPct = q.DayGrowthPct
			summary.ActualGain += detail.ActualGain
			summary.SettledValue += detail.PositionValue
		}

		detail.PositionAmount = math.Max(0, detail.PositionValue-detail.PendingAdd+detail.PendingReduce)
		summary.TotalValue += detail.PositionAmount
		cumulative += detail.CumulativeReturn

		summary.Funds = append(summary.Funds, detail)
	}

	summary.TotalCumulativeReturn = cumulative - correction
	if summary.TotalValue > 0 {
		summary.EstimatedGainPct = summary.EstimatedGain / summary.TotalValue * 100
	}
	if summary.SettledValue > 0 {
		summary.ActualGainPct = summary.ActualGain / summary.SettledValue * 100
	}
	summary.HeldCount = state.HeldCount()

	return summary
}

// addPosition applies a buy of amount at nv to h using a weighted average cost.
func addPosition(h models.FundHolding, amount, nv float64) models.FundHolding {
	oldUnits := h.HoldingUnits
	oldCost := h.EffectiveCost()
	newUnits := oldUnits + amount/nv
	newCost := oldCost
	if newUnits > 0 {
		newCost = (oldUnits*oldCost + amount) / newUnits
	}
	return models.FundHolding{HoldingUnits: newUnits, CostPerUnit: newCost}
}

// unitEpsilon is the unit count below which a position counts as closed.
const unitEpsilon = 1e-6

// reducePosition applies a sale of amount at nv to h. Cost is kept while
// units remain and resets to 1 once the position is closed.
func reducePosition(h models.FundHolding, amount, nv float64) models.FundHolding {
	newUnits := math.Max(0, h.HoldingUnits-amount/nv)
	if newUnits < unitEpsilon {
		return models.FundHolding{HoldingUnits: 0, CostPerUnit: 1}
	}
	return models.FundHolding{HoldingUnits: newUnits, CostPerUnit: h.EffectiveCost()}
}

// settlementDate is the date a trade placed at tt settles.
func settlementDate(tt models.TradeTime) (string, error) {
	return common.AddDays(tt.Date, tt.Period.SettlementLag())
}

package portfolio

import (
	"sort"

	"github.com/bobmcallan/lanfund/internal/models"
)

// BuildCard makes the showoff card from a summary. The top funds are the
// three largest headline gains, actual where published, else estimated.
func BuildCard(summary *models.PositionSummary) (*models.ShowoffCard, error) {
	if summary == nil || summary.TotalValue <= 0 {
		return nil, ErrNoHoldings
	}

	funds := append([]models.FundDetail(nil), summary.Funds...)
	sort.SliceStable(funds, func(i, j int) bool {
		return funds[i].HeadlineGain() > funds[j].HeadlineGain()
	})
	if len(funds) > 3 {
		funds = funds[:3]
	}

	card := &models.ShowoffCard{
		Date:            summary.Date,
		TotalValue:      summary.TotalValue,
		EstimatedGain:   summary.EstimatedGain,
		ActualGain:      summary.ActualGain,
		NetValueUpdated: summary.NetValueUpdated(),
		TopFunds:        make([]models.CardFund, 0, len(funds)),
	}
	for _, f := range funds {
		cf := models.CardFund{Code: f.Code, Name: f.Name, Gain: f.EstimatedGain, GainPct: f.EstimatedGainPct}
		if f.ActualGain != 0 {
			cf.Gain, cf.GainPct, cf.Actual = f.ActualGain, f.ActualGainPct, true
		}
		card.TopFunds = append(card.TopFunds, cf)
	}
	return card, nil
}

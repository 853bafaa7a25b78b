package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/models"
)

// exportRow is one fund in the CSV export
type exportRow struct {
	Date             string  `csv:"date"`
	Code             string  `csv:"code"`
	Name             string  `csv:"name"`
	NetValue         float64 `csv:"net_value"`
	NetValueDate     string  `csv:"net_value_date"`
	HoldingUnits     float64 `csv:"holding_units"`
	CostPerUnit      float64 `csv:"cost_per_unit"`
	PositionValue    float64 `csv:"position_value"`
	PositionAmount   float64 `csv:"position_amount"`
	PendingAdd       float64 `csv:"pending_add"`
	PendingReduce    float64 `csv:"pending_reduce"`
	CumulativeReturn float64 `csv:"cumulative_return"`
	EstimatedGainPct float64 `csv:"estimated_gain_pct"`
	EstimatedGain    float64 `csv:"estimated_gain"`
	DayGrowth        float64 `csv:"day_growth"`
	ActualGain       float64 `csv:"actual_gain"`
	Sectors          string  `csv:"sectors"`
}

// ExportCSV writes one row per fund. Money columns are rounded to cents.
func (s *Service) ExportCSV(summary *models.PositionSummary, w io.Writer) error {
	if summary == nil {
		return fmt.Errorf("no summary to export")
	}
	rows := make([]exportRow, 0, len(summary.Funds))
	for _, f := range summary.Funds {
		rows = append(rows, exportRow{
			Date:             summary.Date,
			Code:             f.Code,
			Name:             f.Name,
			NetValue:         f.NetValue,
			NetValueDate:     f.NetValueDate,
			HoldingUnits:     f.HoldingUnits,
			CostPerUnit:      f.CostPerUnit,
			PositionValue:    common.Round2(f.PositionValue),
			PositionAmount:   common.Round2(f.PositionAmount),
			PendingAdd:       common.Round2(f.PendingAdd),
			PendingReduce:    common.Round2(f.PendingReduce),
			CumulativeReturn: common.Round2(f.CumulativeReturn),
			EstimatedGainPct: f.EstimatedGainPct,
			EstimatedGain:    common.Round2(f.EstimatedGain),
			DayGrowth:        f.DayGrowth,
			ActualGain:       common.Round2(f.ActualGain),
			Sectors:          strings.Join(f.Sectors, ";"),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	s.logger.Debug().Int("rows", len(rows)).Msg("Exported summary CSV")
	return nil
}

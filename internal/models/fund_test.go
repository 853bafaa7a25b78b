package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundRow_Quote(t *testing.T) {
	row := FundRow{
		Code:                "161725",
		NetValueText:        "1.2345(03-04)",
		EstimatedGrowthText: "+1.20%",
		DayGrowthText:       "-0.35%",
	}
	q, err := row.Quote()
	require.NoError(t, err)
	assert.Equal(t, 1.2345, q.NetValue)
	assert.Equal(t, "03-04", q.NetValueDate)
	assert.Equal(t, 1.2, q.EstimatedGrowthPct)
	assert.Equal(t, -0.35, q.DayGrowthPct)
}

func TestFundRow_QuoteFullDateAndNA(t *testing.T) {
	row := FundRow{
		Code:                "000001",
		NetValueText:        " 2.5000 (2024-01-10) ",
		EstimatedGrowthText: "N/A",
		DayGrowthText:       "",
	}
	q, err := row.Quote()
	require.NoError(t, err)
	assert.Equal(t, 2.5, q.NetValue)
	assert.Equal(t, "2024-01-10", q.NetValueDate)
	assert.Zero(t, q.EstimatedGrowthPct)
	assert.Zero(t, q.DayGrowthPct)
}

func TestFundRow_QuoteMalformed(t *testing.T) {
	for _, text := range []string{"", "N/A", "1.234", "abc(2024-01-10)", "1.2.3(2024-01-10)"} {
		_, err := FundRow{Code: "x", NetValueText: text}.Quote()
		assert.Error(t, err, "net value %q", text)
	}
}

func TestFundRow_Cells(t *testing.T) {
	row := FundRow{Code: "1", Name: "n", Time: "t", NetValueText: "nv", EstimatedGrowthText: "e", DayGrowthText: "d", StreakText: "s", Month30Text: "m"}
	assert.Equal(t, []string{"1", "n", "t", "nv", "e", "d", "s", "m"}, row.Cells())
}

func TestFundRecord_Holding(t *testing.T) {
	_, ok := FundRecord{Shares: 100}.Holding()
	assert.False(t, ok)

	units, zero := 50.0, 0.0
	h, ok := FundRecord{HoldingUnits: &units, CostPerUnit: &zero}.Holding()
	require.True(t, ok)
	assert.Equal(t, FundHolding{HoldingUnits: 50, CostPerUnit: 1}, h)

	cost := 1.8
	h, ok = FundRecord{HoldingUnits: &units, CostPerUnit: &cost}.Holding()
	require.True(t, ok)
	assert.Equal(t, 1.8, h.CostPerUnit)
}

func TestFundHolding_EffectiveCost(t *testing.T) {
	assert.Equal(t, 1.0, FundHolding{CostPerUnit: 0}.EffectiveCost())
	assert.Equal(t, 1.0, FundHolding{CostPerUnit: -2}.EffectiveCost())
	assert.Equal(t, 2.5, FundHolding{CostPerUnit: 2.5}.EffectiveCost())
}

func TestPeriod(t *testing.T) {
	assert.True(t, PeriodBefore15.Valid())
	assert.True(t, PeriodAfter15.Valid())
	assert.False(t, Period("noon").Valid())
	assert.Equal(t, 1, PeriodBefore15.SettlementLag())
	assert.Equal(t, 2, PeriodAfter15.SettlementLag())
}

func TestPositionRecord_UndoDeadline(t *testing.T) {
	loc := time.UTC

	d, err := PositionRecord{TradeDate: "2024-01-10", Period: PeriodBefore15}.UndoDeadline(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 15, 0, 0, 0, loc), d)

	d, err = PositionRecord{TradeDate: "2024-01-10", Period: PeriodAfter15}.UndoDeadline(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 11, 15, 0, 0, 0, loc), d)

	d, err = PositionRecord{}.UndoDeadline(loc)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = PositionRecord{TradeDate: "10/01/2024"}.UndoDeadline(loc)
	assert.Error(t, err)
}

func TestFundDetail_HeadlineGain(t *testing.T) {
	assert.Equal(t, 5.0, FundDetail{ActualGain: 5, EstimatedGain: 9}.HeadlineGain())
	assert.Equal(t, 9.0, FundDetail{ActualGain: 0, EstimatedGain: 9}.HeadlineGain())
}

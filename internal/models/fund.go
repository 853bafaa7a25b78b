// Package models defines data structures for LanFund
package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FundHolding is the unit/cost position held in one fund.
type FundHolding struct {
	HoldingUnits float64 `json:"holding_units"`
	CostPerUnit  float64 `json:"cost_per_unit"`
}

// EffectiveCost returns the cost basis, treating non-positive values as 1.
func (h FundHolding) EffectiveCost() float64 {
	if h.CostPerUnit <= 0 {
		return 1
	}
	return h.CostPerUnit
}

// FundRecord is one entry of the backend roster returned by /api/fund/data.
// HoldingUnits and CostPerUnit are absent for funds set only via legacy shares.
type FundRecord struct {
	FundKey      string   `json:"fund_key,omitempty"`
	FundName     string   `json:"fund_name"`
	Shares       float64  `json:"shares"`
	Sectors      []string `json:"sectors,omitempty"`
	HoldingUnits *float64 `json:"holding_units,omitempty"`
	CostPerUnit  *float64 `json:"cost_per_unit,omitempty"`
}

// Holding returns the unit/cost pair for the record, or false when the
// backend has never stored one.
func (r FundRecord) Holding() (FundHolding, bool) {
	if r.HoldingUnits == nil {
		return FundHolding{}, false
	}
	h := FundHolding{HoldingUnits: *r.HoldingUnits, CostPerUnit: 1}
	if r.CostPerUnit != nil && *r.CostPerUnit > 0 {
		h.CostPerUnit = *r.CostPerUnit
	}
	return h, true
}

// FundRow is one line of the watchlist table as shown to the user. Cell texts
// are kept verbatim so display code can colorize and sort them.
type FundRow struct {
	Code                string `json:"code"`
	Name                string `json:"name"`
	Time                string `json:"time,omitempty"`
	NetValueText        string `json:"net_value_text"`
	EstimatedGrowthText string `json:"estimated_growth_text"`
	DayGrowthText       string `json:"day_growth_text"`
	StreakText          string `json:"streak_text,omitempty"`
	Month30Text         string `json:"month30_text,omitempty"`
}

// Cells returns the row in table column order.
func (r FundRow) Cells() []string {
	return []string{r.Code, r.Name, r.Time, r.NetValueText, r.EstimatedGrowthText, r.DayGrowthText, r.StreakText, r.Month30Text}
}

// FundQuote is the numeric content of a FundRow.
type FundQuote struct {
	NetValue           float64
	NetValueDate       string // as published, may be MM-DD
	EstimatedGrowthPct float64
	DayGrowthPct       float64
}

var netValuePattern = regexp.MustCompile(`([0-9.]+)\s*\(([0-9-]+)\)`)

// Quote parses the net value and growth cells. A net value that does not
// match "1.234(2025-02-02)" is an error; unparsable growth reads as 0.
func (r FundRow) Quote() (FundQuote, error) {
	m := netValuePattern.FindStringSubmatch(strings.TrimSpace(r.NetValueText))
	if m == nil {
		return FundQuote{}, fmt.Errorf("fund %s: unparsable net value %q", r.Code, r.NetValueText)
	}
	nv, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return FundQuote{}, fmt.Errorf("fund %s: unparsable net value %q: %w", r.Code, r.NetValueText, err)
	}
	return FundQuote{
		NetValue:           nv,
		NetValueDate:       m[2],
		EstimatedGrowthPct: parseGrowth(r.EstimatedGrowthText),
		DayGrowthPct:       parseGrowth(r.DayGrowthText),
	}, nil
}

func parseGrowth(text string) float64 {
	s := strings.TrimSpace(text)
	if s == "" || s == "N/A" {
		return 0
	}
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

package models

// FundDetail is the per-fund breakdown computed on each aggregation pass.
// PositionValue is the true amount (netValue × units); PositionAmount is
// what is displayed after pending settlements are applied.
type FundDetail struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Shares           float64  `json:"shares"`
	PositionValue    float64  `json:"position_value"`
	PositionAmount   float64  `json:"position_amount"`
	NetValue         float64  `json:"net_value"`
	NetValueDate     string   `json:"net_value_date"`
	DayGrowth        float64  `json:"day_growth"`
	HoldingUnits     float64  `json:"holding_units"`
	CostPerUnit      float64  `json:"cost_per_unit"`
	CumulativeReturn float64  `json:"cumulative_return"`
	EstimatedGain    float64  `json:"estimated_gain"`
	EstimatedGainPct float64  `json:"estimated_gain_pct"`
	ActualGain       float64  `json:"actual_gain"`
	ActualGainPct    float64  `json:"actual_gain_pct"`
	PendingAdd       float64  `json:"pending_add,omitempty"`
	PendingReduce    float64  `json:"pending_reduce,omitempty"`
	Sectors          []string `json:"sectors,omitempty"`
}

// NetValueUpdated reports whether today's net value has been published.
func (d FundDetail) NetValueUpdated(today string) bool {
	return d.NetValueDate == today
}

// HeadlineGain is the actual gain once published, otherwise the estimate.
func (d FundDetail) HeadlineGain() float64 {
	if d.ActualGain != 0 {
		return d.ActualGain
	}
	return d.EstimatedGain
}

// PositionSummary is the portfolio-wide result of an aggregation pass.
type PositionSummary struct {
	Date                  string       `json:"date"`
	Funds                 []FundDetail `json:"funds"`
	TotalValue            float64      `json:"total_value"`
	EstimatedGain         float64      `json:"estimated_gain"`
	EstimatedGainPct      float64      `json:"estimated_gain_pct"`
	ActualGain            float64      `json:"actual_gain"`
	ActualGainPct         float64      `json:"actual_gain_pct"`
	SettledValue          float64      `json:"settled_value"`
	TotalCumulativeReturn float64      `json:"total_cumulative_return"`
	CumulativeCorrection  float64      `json:"cumulative_correction"`
	HeldCount             int          `json:"held_count"`
	SkippedRows           int          `json:"skipped_rows,omitempty"`
}

// NetValueUpdated reports whether any holding has today's net value.
func (s *PositionSummary) NetValueUpdated() bool {
	return s.SettledValue > 0
}

// Fund returns the detail for code, if present.
func (s *PositionSummary) Fund(code string) (FundDetail, bool) {
	for _, f := range s.Funds {
		if f.Code == code {
			return f, true
		}
	}
	return FundDetail{}, false
}

// ShowoffCard is the shareable daily summary.
type ShowoffCard struct {
	Date            string     `json:"date"`
	TotalValue      float64    `json:"total_value"`
	EstimatedGain   float64    `json:"estimated_gain"`
	ActualGain      float64    `json:"actual_gain"`
	NetValueUpdated bool       `json:"net_value_updated"`
	TopFunds        []CardFund `json:"top_funds"`
}

// CardFund is one of the top movers on the card.
type CardFund struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Gain    float64 `json:"gain"`
	GainPct float64 `json:"gain_pct"`
	Actual  bool    `json:"actual"`
}

// Preferences are user display settings kept in the local store.
type Preferences struct {
	HideSensitiveValues  bool    `json:"hide_sensitive_values"`
	CumulativeCorrection float64 `json:"cumulative_correction"`
}

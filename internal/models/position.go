package models

import (
	"encoding/json"
	"time"
)

// Period says whether a trade was placed before or after the 15:00 cutoff.
type Period string

const (
	PeriodBefore15 Period = "before15"
	PeriodAfter15  Period = "after15"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == PeriodBefore15 || p == PeriodAfter15
}

// SettlementLag is the number of calendar days until funds settle.
func (p Period) SettlementLag() int {
	if p == PeriodAfter15 {
		return 2
	}
	return 1
}

// TradeTime identifies when a trade was placed.
type TradeTime struct {
	Date   string `json:"date"`
	Period Period `json:"period"`
}

// PositionOp is the kind of position change.
type PositionOp string

const (
	OpAdd    PositionOp = "add"
	OpReduce PositionOp = "reduce"
)

// PendingSettlement is a trade whose money has not settled yet.
type PendingSettlement struct {
	FundCode       string  `json:"fundCode"`
	Amount         float64 `json:"amount"`
	SettlementDate string  `json:"settlementDate"`
}

// PositionChange is a request to add to or reduce a position.
// NetValue overrides the last aggregated net value when positive.
type PositionChange struct {
	Code      string     `json:"code"`
	Amount    float64    `json:"amount"`
	TradeTime *TradeTime `json:"trade_time,omitempty"`
	NetValue  float64    `json:"net_value,omitempty"`
}

// PositionResult is the outcome of a successful add or reduce.
type PositionResult struct {
	Code           string            `json:"code"`
	Op             PositionOp        `json:"op"`
	Previous       FundHolding       `json:"previous"`
	Holding        FundHolding       `json:"holding"`
	NetValue       float64           `json:"net_value"`
	Units          float64           `json:"units"`
	Pending        PendingSettlement `json:"pending"`
	BackendMessage string            `json:"backend_message,omitempty"`
	Summary        *PositionSummary  `json:"summary,omitempty"`
}

// HoldingResult is the outcome of overwriting a fund's holding.
type HoldingResult struct {
	Code           string           `json:"code"`
	Holding        FundHolding      `json:"holding"`
	Shares         float64          `json:"shares"`
	BackendMessage string           `json:"backend_message,omitempty"`
	Summary        *PositionSummary `json:"summary,omitempty"`
}

// SharesUpdate is the body of POST /api/fund/shares.
type SharesUpdate struct {
	Code         string     `json:"code"`
	HoldingUnits *float64   `json:"holding_units,omitempty"`
	CostPerUnit  *float64   `json:"cost_per_unit,omitempty"`
	Shares       *float64   `json:"shares,omitempty"`
	RecordOp     PositionOp `json:"record_op,omitempty"`
	Amount       *float64   `json:"amount,omitempty"`
	TradeDate    string     `json:"trade_date,omitempty"`
	Period       Period     `json:"period,omitempty"`
	FundName     string     `json:"fund_name,omitempty"`
}

// SharesResult is the backend response to a SharesUpdate. The holding
// fields are nil when the backend did not echo them.
type SharesResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	Shares       *float64 `json:"shares,omitempty"`
	HoldingUnits *float64 `json:"holding_units,omitempty"`
	CostPerUnit  *float64 `json:"cost_per_unit,omitempty"`
}

// PositionRecord is a backend audit entry for an add or reduce.
type PositionRecord struct {
	ID               int64      `json:"id"`
	FundCode         string     `json:"fund_code"`
	FundName         string     `json:"fund_name"`
	Op               PositionOp `json:"op"`
	Amount           float64    `json:"amount"`
	TradeDate        string     `json:"trade_date"`
	Period           Period     `json:"period"`
	PrevHoldingUnits float64    `json:"prev_holding_units"`
	PrevCostPerUnit  float64    `json:"prev_cost_per_unit"`
	NewHoldingUnits  float64    `json:"new_holding_units"`
	NewCostPerUnit   float64    `json:"new_cost_per_unit"`
	CreatedAt        string     `json:"created_at"`
	CanUndo          bool       `json:"can_undo"`
}

// UndoDeadline returns the time after which the record can no longer be
// undone, in loc. The zero time means there is no deadline.
func (r PositionRecord) UndoDeadline(loc *time.Location) (time.Time, error) {
	if r.TradeDate == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation("2006-01-02", r.TradeDate, loc)
	if err != nil {
		return time.Time{}, err
	}
	if r.Period == PeriodAfter15 {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 15, 0, 0, 0, loc), nil
}

// PageData is the raw payload of one backend read for a refreshed page.
type PageData struct {
	Page      string                     `json:"page"`
	Sources   map[string]json.RawMessage `json:"sources"`
	Errors    map[string]string          `json:"errors,omitempty"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

// ServerTime is the backend's view of the current Beijing time.
type ServerTime struct {
	DateTime    string `json:"datetime"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Hour        int    `json:"hour"`
	Minute      int    `json:"minute"`
	IsBefore930 bool   `json:"is_before_930"`
}

// DefaultPeriod picks the trade period implied by the server clock.
func (t ServerTime) DefaultPeriod() Period {
	if t.Hour >= 15 {
		return PeriodAfter15
	}
	return PeriodBefore15
}

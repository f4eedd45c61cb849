package types

import "time"

// BacktestType distinguishes a single-instrument run from an index-universe
// run, mirrored into the persisted report row (spec.md §6).
type BacktestType string

const (
	BacktestTypeStock BacktestType = "STOCK"
	BacktestTypeIndex BacktestType = "INDEX"
)

// JobStatus is one of the three monotone-forward states of spec.md §6.
type JobStatus string

const (
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ReportRow is the persisted row described in spec.md §6. Sharpe/win-rate/
// profit-loss-ratio are nullable (*float64) since they are undefined in
// some inputs (constant returns, no losing trades).
type ReportRow struct {
	ReportID         string       `json:"report_id"`
	CreatorName      string       `json:"creator_name"`
	StrategyName     string       `json:"strategy_name"`
	UserName         string       `json:"user_name"`
	BacktestType     BacktestType `json:"backtest_type"`
	StockCode        string       `json:"stock_code,omitempty"`
	ComponentCount   *int         `json:"component_count,omitempty"`
	StartDate        time.Time    `json:"start_date"`
	EndDate          time.Time    `json:"end_date"`
	InitialFund      float64      `json:"initial_fund"`
	FinalFund        float64      `json:"final_fund"`
	TotalReturn      float64      `json:"total_return"`
	AnnualReturn     float64      `json:"annual_return"`
	MaxDrawdown      float64      `json:"max_drawdown"`
	SharpeRatio      *float64     `json:"sharpe_ratio,omitempty"`
	WinRate          *float64     `json:"win_rate,omitempty"`
	ProfitLossRatio  *float64     `json:"profit_loss_ratio,omitempty"`
	TradeCount       int          `json:"trade_count"`
	ReportGenerateAt time.Time    `json:"report_generate_time"`
	ReportStatus     JobStatus    `json:"report_status"`
}

// EquityPoint is one day's mark-to-market sample (spec.md §8 invariant 1:
// exactly one equity sample per trading day).
type EquityPoint struct {
	Day    time.Time
	Equity float64
}

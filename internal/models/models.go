package models

import "time"

// TradeType distinguishes entries from exits in the trade ledger
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// TradeStatus is the status stamped on a ledger record
type TradeStatus string

const (
	StatusOpenPosition TradeStatus = "open_position"
	StatusStopLoss     TradeStatus = "STOP-LOSS"
	StatusTakeProfit   TradeStatus = "TAKE-PROFIT"
	StatusManualStop   TradeStatus = "MANUAL-STOP"
)

// Position represents an open spot holding. At most one exists per symbol.
type Position struct {
	Symbol          string    `json:"symbol"`
	BaseAsset       string    `json:"base_asset"`
	EntryPrice      float64   `json:"entry_price"`
	Amount          float64   `json:"amount"` // base units
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
	EntryTime       time.Time `json:"entry_time"`
	Score           float64   `json:"score"` // analysis score at entry
}

// TradeRecord is one immutable entry of the trade history
type TradeRecord struct {
	Timestamp  time.Time   `json:"timestamp"`
	Symbol     string      `json:"symbol"`
	Type       TradeType   `json:"type"`
	Price      float64     `json:"price"`
	Amount     float64     `json:"amount"`
	TotalQuote float64     `json:"total_quote"`
	Profit     float64     `json:"profit,omitempty"`     // sell only
	ProfitPct  float64     `json:"profit_pct,omitempty"` // sell only
	Status     TradeStatus `json:"status"`
}

// ScanResult is produced once per symbol per scan cycle for reporting
type ScanResult struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Change24h  float64   `json:"change_24h"`
	RSI        float64   `json:"rsi"`
	USDTVolume float64   `json:"usdt_volume"`
	Score      float64   `json:"score"`
	Signal     string    `json:"signal"`
	Timestamp  time.Time `json:"timestamp"`
}

// StatsAggregate is derived from sell records only
type StatsAggregate struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	TotalProfit    float64 `json:"total_profit"`
	TotalProfitPct float64 `json:"total_profit_pct"` // sum of per trade percentages
	BestTrade      float64 `json:"best_trade"`
	WorstTrade     float64 `json:"worst_trade"`
	AvgProfit      float64 `json:"avg_profit"`
	WinRate        float64 `json:"win_rate"`
	MaxDrawdown    float64 `json:"max_drawdown"` // deepest fall of cumulative profit from its peak
}

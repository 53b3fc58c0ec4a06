package analysis

import (
	"math"

	"spotbot/internal/exchange"

	"github.com/markcheno/go-talib"
)

const divergenceWindow = 10

// DivergenceKind names the direction of a price/RSI divergence
type DivergenceKind string

const (
	DivergenceBullish DivergenceKind = "bullish"
	DivergenceBearish DivergenceKind = "bearish"
)

// Divergence is reported when price and RSI moved in opposite directions
type Divergence struct {
	Kind     DivergenceKind `json:"kind"`
	Strength float64        `json:"strength"` // absolute RSI change over the window
}

// CheckDivergence compares the price move over the last 10 candles with the
// RSI move over the same candles. It returns nil when both agree or when
// the window cannot be evaluated.
func CheckDivergence(klines []exchange.Kline) *Divergence {
	if len(klines) < rsiPeriod+divergenceWindow+1 {
		return nil
	}

	closes := splitSeries(klines).close
	rsi := talib.Rsi(closes, rsiPeriod)

	end := len(closes) - 1
	start := len(closes) - divergenceWindow
	if anyInvalid(closes[end], closes[start], rsi[end], rsi[start]) {
		return nil
	}

	priceDir := direction(closes[end], closes[start])
	rsiDir := direction(rsi[end], rsi[start])
	if priceDir == rsiDir {
		return nil
	}

	kind := DivergenceBearish
	if rsiDir > priceDir {
		kind = DivergenceBullish
	}
	return &Divergence{Kind: kind, Strength: math.Abs(rsi[end] - rsi[start])}
}

func direction(now, before float64) int {
	if now > before {
		return 1
	}
	return -1
}

func anyInvalid(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

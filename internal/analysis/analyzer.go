package analysis

import (
	"errors"

	"spotbot/internal/exchange"
)

// MinCandles is the shortest candle window Analyze accepts
const MinCandles = 100

var (
	// ErrInsufficientData means the window is too short yet. It is a normal
	// outcome for young listings, not a failure.
	ErrInsufficientData = errors.New("not enough candle history")
	// ErrIndicatorUnavailable means an indicator came out NaN or infinite
	ErrIndicatorUnavailable = errors.New("indicator value unavailable")
)

// Signal is a textual class derived from a score
type Signal string

const (
	SignalStrongBuy Signal = "strong_buy"
	SignalBuy       Signal = "buy"
	SignalWeakBuy   Signal = "weak_buy"
	SignalNeutral   Signal = "neutral"
	SignalSell      Signal = "sell"
	SignalWait      Signal = "wait"
)

const (
	TrendBullish = "BULLISH"
	TrendBearish = "BEARISH"
)

// Result is the outcome of one analysis call. It is never mutated after Analyze returns.
type Result struct {
	Score          float64    `json:"score"`
	Indicators     Indicators `json:"indicators"`
	TrendUp        bool       `json:"trend_up"`
	Trend          string     `json:"trend"`
	Signal         Signal     `json:"signal"`
	PriceChange24h float64    `json:"price_change_24h"`
}

// Inputs are the values the score is computed from
type Inputs struct {
	RSI         float64
	MACD        float64
	MACDSignal  float64
	ADX         float64
	TrendUp     bool
	VolumeRatio float64
	BBPosition  float64
}

// Analyze scores the most recent candle of the window. timeframe is the
// candle interval and only drives the 24h change lookback.
func Analyze(klines []exchange.Kline, timeframe string) (*Result, error) {
	if len(klines) < MinCandles {
		return nil, ErrInsufficientData
	}

	ind := CalculateIndicators(klines)
	if !ind.finite() {
		return nil, ErrIndicatorUnavailable
	}

	trendUp := ind.EMAFast > ind.EMASlow
	trend := TrendBearish
	if trendUp {
		trend = TrendBullish
	}

	score := Score(Inputs{
		RSI:         ind.RSI,
		MACD:        ind.MACD,
		MACDSignal:  ind.MACDSignal,
		ADX:         ind.ADX,
		TrendUp:     trendUp,
		VolumeRatio: ind.VolumeRatio,
		BBPosition:  ind.BBPosition,
	})

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}

	return &Result{
		Score:          score,
		Indicators:     *ind,
		TrendUp:        trendUp,
		Trend:          trend,
		Signal:         ClassifySignal(score),
		PriceChange24h: PriceChange24h(closes, timeframe),
	}, nil
}

// Score starts at 50, applies independent additive adjustments and clamps
// the total to [0, 100]. Higher means a stronger buy opportunity.
func Score(in Inputs) float64 {
	score := 50.0

	// RSI
	switch {
	case in.RSI < 30:
		score += 20
	case in.RSI > 70:
		score -= 20
	default:
		score += 10 * (1 - abs(50-in.RSI)/50)
	}

	// MACD crossover
	if in.MACD > in.MACDSignal {
		score += 15
	} else {
		score -= 15
	}

	// trend strength only counts when the trend is strong
	if in.ADX > 25 {
		if in.TrendUp {
			score += 10
		} else {
			score -= 10
		}
	}

	// volume
	if in.VolumeRatio > 1.5 {
		score += 10
	} else if in.VolumeRatio < 0.5 {
		score -= 10
	}

	// Bollinger position
	if in.BBPosition < 0.2 {
		score += 15
	} else if in.BBPosition > 0.8 {
		score -= 15
	}

	return clamp(score, 0, 100)
}

// ClassifySignal maps a score to strong_buy, buy, neutral or sell
func ClassifySignal(score float64) Signal {
	switch {
	case score >= 80:
		return SignalStrongBuy
	case score >= 65:
		return SignalBuy
	case score <= 35:
		return SignalSell
	default:
		return SignalNeutral
	}
}

// ClassifySignalTiered is the five band variant used for scan reporting
func ClassifySignalTiered(score float64) Signal {
	switch {
	case score >= 85:
		return SignalStrongBuy
	case score >= 70:
		return SignalBuy
	case score >= 65:
		return SignalWeakBuy
	case score <= 35:
		return SignalWait
	default:
		return SignalNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

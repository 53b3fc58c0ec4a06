package analysis

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"spotbot/internal/exchange"
)

func klinesFromCloses(closes []float64) []exchange.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	klines := make([]exchange.Kline, len(closes))
	for i, c := range closes {
		klines[i] = exchange.Kline{
			OpenTime: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:     c,
			High:     c * 1.01,
			Low:      c * 0.99,
			Close:    c,
			Volume:   1000,
		}
	}
	return klines
}

func randomWalk(n int, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= 1 + (r.Float64()-0.5)*0.04
		closes[i] = price
	}
	return closes
}

func TestAnalyzeInsufficientData(t *testing.T) {
	for _, n := range []int{0, 1, 50, MinCandles - 1} {
		_, err := Analyze(klinesFromCloses(randomWalk(n, 1)), "15m")
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("n=%d: got %v, want ErrInsufficientData", n, err)
		}
	}
}

func TestAnalyzeScoreWithinBounds(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		klines := klinesFromCloses(randomWalk(150, seed))
		r := rand.New(rand.NewSource(seed))
		for i := range klines {
			klines[i].Volume = r.Float64() * 5000
		}

		res, err := Analyze(klines, "15m")
		if err != nil {
			t.Fatalf("seed %d: unexpected error %v", seed, err)
		}
		if res.Score < 0 || res.Score > 100 {
			t.Errorf("seed %d: score %.2f out of range", seed, res.Score)
		}
		if res.Signal != ClassifySignal(res.Score) {
			t.Errorf("seed %d: signal %s does not match score %.2f", seed, res.Signal, res.Score)
		}
		if res.TrendUp != (res.Indicators.EMAFast > res.Indicators.EMASlow) {
			t.Errorf("seed %d: trend flag inconsistent with EMAs", seed)
		}
	}
}

func TestAnalyzeRejectsNaN(t *testing.T) {
	closes := randomWalk(120, 7)
	closes[len(closes)-1] = math.NaN()

	_, err := Analyze(klinesFromCloses(closes), "15m")
	if !errors.Is(err, ErrIndicatorUnavailable) {
		t.Fatalf("got %v, want ErrIndicatorUnavailable", err)
	}
}

func TestAnalyzeFlatMarketBandPosition(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 10
	}

	res, err := Analyze(klinesFromCloses(closes), "15m")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if res.Indicators.BBPosition != 0.5 {
		t.Errorf("bb position = %v, want 0.5 on a collapsed band", res.Indicators.BBPosition)
	}
	if res.Indicators.VolumeRatio != 1 {
		t.Errorf("volume ratio = %v, want 1", res.Indicators.VolumeRatio)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		in     Inputs
		score  float64
		signal Signal
	}{
		{
			name:   "everything bullish clamps at 100",
			in:     Inputs{RSI: 25, MACD: 1, MACDSignal: 0.5, ADX: 30, TrendUp: true, VolumeRatio: 2.0, BBPosition: 0.1},
			score:  100,
			signal: SignalStrongBuy,
		},
		{
			name:   "everything bearish clamps at 0",
			in:     Inputs{RSI: 75, MACD: 0.5, MACDSignal: 1, ADX: 10, VolumeRatio: 0.3, BBPosition: 0.9},
			score:  0,
			signal: SignalSell,
		},
		{
			name:   "neutral rsi adds full mid bonus",
			in:     Inputs{RSI: 50, MACD: 1, MACDSignal: 0, ADX: 20, VolumeRatio: 1, BBPosition: 0.5},
			score:  75,
			signal: SignalBuy,
		},
		{
			name:   "strong downtrend",
			in:     Inputs{RSI: 40, MACD: 0, MACDSignal: 1, ADX: 40, TrendUp: false, VolumeRatio: 1, BBPosition: 0.5},
			score:  33,
			signal: SignalSell,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.in)
			if math.Abs(got-tt.score) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.score)
			}
			if s := ClassifySignal(got); s != tt.signal {
				t.Errorf("ClassifySignal(%v) = %s, want %s", got, s, tt.signal)
			}
		})
	}
}

func TestClassifySignal(t *testing.T) {
	tests := []struct {
		score  float64
		plain  Signal
		tiered Signal
	}{
		{100, SignalStrongBuy, SignalStrongBuy},
		{85, SignalStrongBuy, SignalStrongBuy},
		{80, SignalStrongBuy, SignalBuy},
		{70, SignalBuy, SignalBuy},
		{67, SignalBuy, SignalWeakBuy},
		{65, SignalBuy, SignalWeakBuy},
		{50, SignalNeutral, SignalNeutral},
		{35.1, SignalNeutral, SignalNeutral},
		{35, SignalSell, SignalWait},
		{0, SignalSell, SignalWait},
	}
	for _, tt := range tests {
		if got := ClassifySignal(tt.score); got != tt.plain {
			t.Errorf("ClassifySignal(%v) = %s, want %s", tt.score, got, tt.plain)
		}
		if got := ClassifySignalTiered(tt.score); got != tt.tiered {
			t.Errorf("ClassifySignalTiered(%v) = %s, want %s", tt.score, got, tt.tiered)
		}
	}
}

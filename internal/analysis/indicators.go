package analysis

import (
	"math"

	"spotbot/internal/exchange"

	"github.com/markcheno/go-talib"
)

const (
	rsiPeriod       = 14
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	bbPeriod        = 20
	bbDeviation     = 2.0
	adxPeriod       = 14
	volumeSMAPeriod = 20
	emaFastPeriod   = 8
	emaSlowPeriod   = 21
)

// Indicators holds the latest value of every indicator that feeds the score
type Indicators struct {
	RSI         float64 `json:"rsi"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macd_signal"`
	MACDHist    float64 `json:"macd_hist"`
	ADX         float64 `json:"adx"`
	BBUpper     float64 `json:"bb_upper"`
	BBMiddle    float64 `json:"bb_middle"`
	BBLower     float64 `json:"bb_lower"`
	BBPosition  float64 `json:"bb_position"`
	VolumeRatio float64 `json:"volume_ratio"`
	EMAFast     float64 `json:"ema_fast"` // EMA(8)
	EMASlow     float64 `json:"ema_slow"` // EMA(21)
}

// series is a column view of a candle window, the shape talib expects
type series struct {
	high   []float64
	low    []float64
	close  []float64
	volume []float64
}

func splitSeries(klines []exchange.Kline) series {
	s := series{
		high:   make([]float64, len(klines)),
		low:    make([]float64, len(klines)),
		close:  make([]float64, len(klines)),
		volume: make([]float64, len(klines)),
	}
	for i, k := range klines {
		s.high[i] = k.High
		s.low[i] = k.Low
		s.close[i] = k.Close
		s.volume[i] = k.Volume
	}
	return s
}

// CalculateIndicators computes the indicator snapshot for the last candle.
// The caller guarantees the window is long enough for every lookback.
func CalculateIndicators(klines []exchange.Kline) *Indicators {
	s := splitSeries(klines)
	ind := &Indicators{}

	ind.RSI = last(talib.Rsi(s.close, rsiPeriod))

	macd, signal, hist := talib.Macd(s.close, macdFast, macdSlow, macdSignal)
	ind.MACD, ind.MACDSignal, ind.MACDHist = last(macd), last(signal), last(hist)

	upper, middle, lower := talib.BBands(s.close, bbPeriod, bbDeviation, bbDeviation, talib.SMA)
	ind.BBUpper, ind.BBMiddle, ind.BBLower = last(upper), last(middle), last(lower)
	ind.BBPosition = bandPosition(last(s.close), ind.BBUpper, ind.BBLower)

	ind.ADX = last(talib.Adx(s.high, s.low, s.close, adxPeriod))

	volumeSMA := last(talib.Sma(s.volume, volumeSMAPeriod))
	if volumeSMA > 0 && !math.IsNaN(volumeSMA) {
		ind.VolumeRatio = last(s.volume) / volumeSMA
	}

	ind.EMAFast = last(talib.Ema(s.close, emaFastPeriod))
	ind.EMASlow = last(talib.Ema(s.close, emaSlowPeriod))

	return ind
}

// bandPosition places price inside the Bollinger band: 0 at the lower band,
// 1 at the upper band, 0.5 when the band has collapsed.
func bandPosition(price, upper, lower float64) float64 {
	if upper == lower {
		return 0.5
	}
	return (price - lower) / (upper - lower)
}

// finite reports whether every value in the snapshot is usable
func (ind *Indicators) finite() bool {
	for _, v := range []float64{
		ind.RSI, ind.MACD, ind.MACDSignal, ind.MACDHist, ind.ADX,
		ind.BBUpper, ind.BBMiddle, ind.BBLower, ind.BBPosition,
		ind.VolumeRatio, ind.EMAFast, ind.EMASlow,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

package analysis

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const maxCandleLimit = 1000

// TimeframeDuration parses an exchange interval such as "15m", "4h" or "1d"
func TimeframeDuration(timeframe string) (time.Duration, error) {
	if len(timeframe) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", timeframe)
	}
	n, err := strconv.Atoi(timeframe[:len(timeframe)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", timeframe)
	}

	var unit time.Duration
	switch timeframe[len(timeframe)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'M':
		unit = 30 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe %q", timeframe)
	}
	return time.Duration(n) * unit, nil
}

// CandlesPerDay returns how many candles of the timeframe span 24 hours,
// or 0 when the timeframe does not divide a day evenly.
func CandlesPerDay(timeframe string) int {
	d, err := TimeframeDuration(timeframe)
	if err != nil || d > 24*time.Hour || (24*time.Hour)%d != 0 {
		return 0
	}
	return int(24 * time.Hour / d)
}

// CandleLimit is the window size to request so both the analysis minimum
// and the 24h change lookback are covered.
func CandleLimit(timeframe string) int {
	limit := MinCandles
	if n := CandlesPerDay(timeframe); n > limit {
		limit = n
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	return limit
}

// PriceChange24h compares the last close with the first close of the
// trailing day window (close[-96] on 15m), in percent rounded to 2 decimals.
// Returns 0 when the history is shorter than one day of candles.
func PriceChange24h(closes []float64, timeframe string) float64 {
	n := CandlesPerDay(timeframe)
	if n == 0 || len(closes) < n {
		return 0
	}

	current := closes[len(closes)-1]
	past := closes[len(closes)-n]
	if past == 0 {
		return 0
	}

	change := (current - past) / past * 100
	return math.Round(change*100) / 100
}

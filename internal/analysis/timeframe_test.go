package analysis

import (
	"testing"
	"time"
)

func TestTimeframeDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1m", time.Minute, true},
		{"15m", 15 * time.Minute, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"", 0, false},
		{"m", 0, false},
		{"0h", 0, false},
		{"15x", 0, false},
	}
	for _, tt := range tests {
		got, err := TimeframeDuration(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("%q: err = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCandlesPerDay(t *testing.T) {
	tests := map[string]int{
		"15m": 96,
		"5m":  288,
		"1h":  24,
		"4h":  6,
		"1d":  1,
		"7m":  0,
		"3d":  0,
		"bad": 0,
	}
	for tf, want := range tests {
		if got := CandlesPerDay(tf); got != want {
			t.Errorf("CandlesPerDay(%q) = %d, want %d", tf, got, want)
		}
	}
}

func TestCandleLimit(t *testing.T) {
	tests := map[string]int{
		"15m": 100,
		"1h":  100,
		"5m":  288,
		"1m":  1000,
	}
	for tf, want := range tests {
		if got := CandleLimit(tf); got != want {
			t.Errorf("CandleLimit(%q) = %d, want %d", tf, got, want)
		}
	}
}

func TestPriceChange24h(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100
	}
	closes[len(closes)-96] = 50

	if got := PriceChange24h(closes, "15m"); got != 100 {
		t.Errorf("15m change = %v, want 100", got)
	}
	if got := PriceChange24h(closes[len(closes)-96:], "15m"); got != 100 {
		t.Errorf("exactly one day of closes = %v, want 100", got)
	}
	if got := PriceChange24h(closes[len(closes)-95:], "15m"); got != 0 {
		t.Errorf("short history change = %v, want 0", got)
	}

	hourly := make([]float64, 30)
	for i := range hourly {
		hourly[i] = 200
	}
	hourly[len(hourly)-24] = 300
	hourly[len(hourly)-1] = 100
	if got := PriceChange24h(hourly, "1h"); got != -66.67 {
		t.Errorf("1h change = %v, want -66.67", got)
	}

	if got := PriceChange24h(closes, "3d"); got != 0 {
		t.Errorf("undividable timeframe change = %v, want 0", got)
	}
}

package telegram

import (
	"sort"
	"strings"
	"sync"
	"time"

	"spotbot/internal/models"

	"golang.org/x/time/rate"
)

const (
	summaryTop      = 5
	summaryInterval = 15 * time.Minute
)

// summaryGate lets a scan summary through at most once per interval and
// only when the top symbols differ from the last one sent.
type summaryGate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	lastTop string
}

func newSummaryGate(every time.Duration) *summaryGate {
	return &summaryGate{limiter: rate.NewLimiter(rate.Every(every), 1)}
}

func (g *summaryGate) allow(now time.Time, top []models.ScanResult) bool {
	symbols := make([]string, len(top))
	for i, r := range top {
		symbols[i] = r.Symbol
	}
	key := strings.Join(symbols, ",")

	g.mu.Lock()
	defer g.mu.Unlock()

	if key == g.lastTop || !g.limiter.AllowN(now, 1) {
		return false
	}
	g.lastTop = key
	return true
}

// topResults returns the n best scores, highest first
func topResults(results []models.ScanResult, n int) []models.ScanResult {
	sorted := append([]models.ScanResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

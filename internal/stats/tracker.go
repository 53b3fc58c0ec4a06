package stats

import (
	"sync"

	"spotbot/internal/models"
)

// Tracker is the append-only trade ledger. Aggregates are updated
// incrementally from sell records only.
type Tracker struct {
	mu      sync.RWMutex
	history []models.TradeRecord
	agg     models.StatsAggregate
	peak    float64 // highest cumulative profit seen so far
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends r to the history and folds it into the aggregates when it is a sell
func (t *Tracker) Record(r models.TradeRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, r)
	if r.Type != models.TradeSell {
		return
	}

	a := &t.agg
	first := a.TotalTrades == 0

	a.TotalTrades++
	if r.Profit > 0 {
		a.WinningTrades++
	} else {
		a.LosingTrades++
	}
	a.TotalProfit += r.Profit
	a.TotalProfitPct += r.ProfitPct

	if first || r.Profit > a.BestTrade {
		a.BestTrade = r.Profit
	}
	if first || r.Profit < a.WorstTrade {
		a.WorstTrade = r.Profit
	}

	a.AvgProfit = a.TotalProfit / float64(a.TotalTrades)
	a.WinRate = float64(a.WinningTrades) / float64(a.TotalTrades) * 100

	if a.TotalProfit > t.peak {
		t.peak = a.TotalProfit
	}
	if dd := t.peak - a.TotalProfit; dd > a.MaxDrawdown {
		a.MaxDrawdown = dd
	}
}

func (t *Tracker) Aggregate() models.StatsAggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.agg
}

// History returns a copy of every record in insertion order
func (t *Tracker) History() []models.TradeRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.TradeRecord, len(t.history))
	copy(out, t.history)
	return out
}

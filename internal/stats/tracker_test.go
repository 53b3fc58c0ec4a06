package stats

import (
	"math"
	"testing"
	"time"

	"spotbot/internal/models"
)

func sell(profit float64) models.TradeRecord {
	return models.TradeRecord{
		Timestamp: time.Now(),
		Symbol:    "SOLUSDT",
		Type:      models.TradeSell,
		Profit:    profit,
		ProfitPct: profit,
		Status:    models.StatusTakeProfit,
	}
}

func TestBuyRecordsDoNotAffectAggregates(t *testing.T) {
	tr := NewTracker()
	tr.Record(models.TradeRecord{Symbol: "SOLUSDT", Type: models.TradeBuy, Status: models.StatusOpenPosition})

	if got := tr.Aggregate(); got != (models.StatsAggregate{}) {
		t.Errorf("aggregate changed by buy: %+v", got)
	}
	if len(tr.History()) != 1 {
		t.Errorf("history length = %d, want 1", len(tr.History()))
	}
}

func TestSellAggregates(t *testing.T) {
	tr := NewTracker()
	for _, p := range []float64{2, -1, 3, -4} {
		tr.Record(sell(p))
	}

	a := tr.Aggregate()
	if a.TotalTrades != 4 || a.WinningTrades != 2 || a.LosingTrades != 2 {
		t.Errorf("counts = %d/%d/%d, want 4/2/2", a.TotalTrades, a.WinningTrades, a.LosingTrades)
	}
	if a.TotalProfit != 0 {
		t.Errorf("total profit = %v, want 0", a.TotalProfit)
	}
	if a.BestTrade != 3 || a.WorstTrade != -4 {
		t.Errorf("best/worst = %v/%v, want 3/-4", a.BestTrade, a.WorstTrade)
	}
	if a.AvgProfit != 0 || a.WinRate != 50 {
		t.Errorf("avg/winrate = %v/%v, want 0/50", a.AvgProfit, a.WinRate)
	}
	// cumulative: 2, 1, 4, 0 -> peak 4, trough 0
	if a.MaxDrawdown != 4 {
		t.Errorf("max drawdown = %v, want 4", a.MaxDrawdown)
	}
}

func TestBestWorstSeededByFirstSell(t *testing.T) {
	tr := NewTracker()
	tr.Record(sell(-2))
	tr.Record(sell(-5))

	a := tr.Aggregate()
	if a.BestTrade != -2 {
		t.Errorf("best = %v, want -2 for an all-loss run", a.BestTrade)
	}
	if a.WorstTrade != -5 {
		t.Errorf("worst = %v, want -5", a.WorstTrade)
	}

	tr = NewTracker()
	tr.Record(sell(1.5))
	if a := tr.Aggregate(); a.WorstTrade != 1.5 {
		t.Errorf("worst = %v, want 1.5 for an all-win run", a.WorstTrade)
	}
}

func TestZeroProfitCountsAsLoss(t *testing.T) {
	tr := NewTracker()
	tr.Record(sell(0))
	if a := tr.Aggregate(); a.LosingTrades != 1 || a.WinningTrades != 0 {
		t.Errorf("break-even trade counted as %+v", a)
	}
}

func TestHistoryIsCopy(t *testing.T) {
	tr := NewTracker()
	tr.Record(sell(1))

	h := tr.History()
	h[0].Profit = 999

	if tr.History()[0].Profit != 1 {
		t.Error("History exposed internal slice")
	}
}

func TestAggregatesMatchHistory(t *testing.T) {
	tr := NewTracker()
	profits := []float64{0.5, -0.25, 1.75, -3, 0.1, 2}
	for _, p := range profits {
		tr.Record(models.TradeRecord{Type: models.TradeBuy})
		tr.Record(sell(p))
	}

	var total float64
	var sells int
	for _, r := range tr.History() {
		if r.Type == models.TradeSell {
			total += r.Profit
			sells++
		}
	}
	a := tr.Aggregate()
	if a.TotalTrades != sells {
		t.Errorf("total trades = %d, want %d", a.TotalTrades, sells)
	}
	if math.Abs(a.TotalProfit-total) > 1e-9 {
		t.Errorf("total profit = %v, want %v", a.TotalProfit, total)
	}
}

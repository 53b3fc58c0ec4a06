package telegram

import (
	"strings"
	"testing"
	"time"

	"spotbot/config"
	"spotbot/internal/engine"
	"spotbot/internal/models"
)

func TestFormatStats(t *testing.T) {
	snap := engine.Snapshot{
		State:     engine.StateRunning.String(),
		Positions: []models.Position{{Symbol: "SOLUSDT", EntryPrice: 20, Amount: 0.5}},
		Stats:     models.StatsAggregate{TotalTrades: 4, WinningTrades: 3, LosingTrades: 1, WinRate: 75, TotalProfit: -1.5},
	}

	msg := formatStats(snap, 123.456, true, 90*time.Minute)
	for _, want := range []string{"▶️ Running", "Paper trading", "123.46 USDT", "In positions: 10.00 USDT", "Win rate: 75.0%", "🔴 -1.5000", "1h 30min"} {
		if !strings.Contains(msg, want) {
			t.Errorf("stats message missing %q:\n%s", want, msg)
		}
	}

	if msg := formatStats(snap, -1, false, 0); !strings.Contains(msg, "n/a") || !strings.Contains(msg, "Live") {
		t.Errorf("unknown balance not rendered:\n%s", msg)
	}
}

func TestFormatTradeClose(t *testing.T) {
	loss := formatTradeClose(models.TradeRecord{Symbol: "SOLUSDT", Profit: -0.3, ProfitPct: -3, Status: models.StatusStopLoss})
	if !strings.Contains(loss, "⚠️") || !strings.Contains(loss, "STOP-LOSS") || !strings.Contains(loss, "-3.00%") {
		t.Errorf("loss message:\n%s", loss)
	}

	win := formatTradeClose(models.TradeRecord{Symbol: "SOLUSDT", Profit: 0.2, ProfitPct: 2, Status: models.StatusTakeProfit})
	if !strings.HasPrefix(win, "✅") || !strings.Contains(win, "+0.2000 USDT") {
		t.Errorf("win message:\n%s", win)
	}
}

func TestFormatScanSummaryKeepsTopScores(t *testing.T) {
	results := []models.ScanResult{
		{Symbol: "AAAUSDT", Score: 10},
		{Symbol: "BBBUSDT", Score: 90},
		{Symbol: "CCCUSDT", Score: 50},
	}
	msg := formatScanSummary(results, 2)

	if strings.Contains(msg, "AAAUSDT") {
		t.Errorf("lowest score should be cut:\n%s", msg)
	}
	if strings.Index(msg, "BBBUSDT") > strings.Index(msg, "CCCUSDT") {
		t.Errorf("results not sorted by score:\n%s", msg)
	}
	if !strings.Contains(msg, "3 symbols") {
		t.Errorf("total count missing:\n%s", msg)
	}
}

func TestFormatSettingsAndPositions(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	msg := formatSettings(cfg, true)
	if !strings.Contains(msg, "Timeframe: 15m") || !strings.Contains(msg, "Max positions: 5") {
		t.Errorf("settings:\n%s", msg)
	}

	pos := formatPositions([]models.Position{
		{Symbol: "SOLUSDT", EntryPrice: 20, Amount: 1, EntryTime: time.Now()},
		{Symbol: "ADAUSDT", EntryPrice: 0.5, Amount: 10, EntryTime: time.Now()},
	})
	if !strings.Contains(pos, "Open positions (2)") || !strings.Contains(pos, "Total invested: 25.00 USDT") {
		t.Errorf("positions:\n%s", pos)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[string]string{
		"running":  "▶️ Running",
		"stopping": "⏳ Stopping",
		"stopped":  "⏸️ Stopped",
		"idle":     "⏸️ Stopped",
	}
	for state, want := range tests {
		if got := statusLabel(state); got != want {
			t.Errorf("statusLabel(%q) = %q, want %q", state, got, want)
		}
	}
}

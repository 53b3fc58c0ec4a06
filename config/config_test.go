package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DRY_RUN", "true")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	e := cfg.Engine
	if e.Timeframe != "15m" || e.StopLossPct != 3 || e.TakeProfitPct != 2 {
		t.Errorf("unexpected defaults: %+v", e)
	}
	if e.MaxPositions != 5 || e.MaxUSDTPerTrade != 10 || e.MinScore != 75 || e.MinVolumeUSDT != 50000 {
		t.Errorf("unexpected defaults: %+v", e)
	}
	if _, ok := e.ExcludedSet()["BTCUSDT"]; !ok {
		t.Error("BTCUSDT should be excluded by default")
	}
	if !cfg.DryRun || cfg.PaperBalance != 1000 {
		t.Errorf("dry run defaults: dry=%v balance=%v", cfg.DryRun, cfg.PaperBalance)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("engine:\n  timeframe: 1h\n  max_positions: 2\n  min_score: 60\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DRY_RUN", "true")
	t.Setenv("ENGINE_MAX_POSITIONS", "3")
	t.Setenv("ENGINE_EXCLUDED_SYMBOLS", "btc/usdt, XRPUSDT")
	t.Setenv("AUTHORIZED_USER_ID", "42")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engine.Timeframe != "1h" {
		t.Errorf("timeframe = %q, want 1h from file", cfg.Engine.Timeframe)
	}
	if cfg.Engine.MaxPositions != 3 {
		t.Errorf("max positions = %d, want env override 3", cfg.Engine.MaxPositions)
	}
	if cfg.Engine.MinScore != 60 {
		t.Errorf("min score = %v, want 60", cfg.Engine.MinScore)
	}
	if cfg.AuthorizedUserID != 42 || cfg.TelegramToken != "token" {
		t.Errorf("telegram settings = %d/%q", cfg.AuthorizedUserID, cfg.TelegramToken)
	}

	set := cfg.Engine.ExcludedSet()
	if len(set) != 2 {
		t.Fatalf("excluded = %v, want 2 entries", set)
	}
	for _, s := range []string{"BTCUSDT", "XRPUSDT"} {
		if _, ok := set[s]; !ok {
			t.Errorf("%s missing from excluded set", s)
		}
	}
}

func TestLoadRequiresKeysForLiveTrading(t *testing.T) {
	t.Setenv("DRY_RUN", "false")
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_SECRET_KEY", "")

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error without API keys")
	}
}

func TestEngineConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EngineConfig)
		ok     bool
	}{
		{"defaults", func(*EngineConfig) {}, true},
		{"bad timeframe", func(c *EngineConfig) { c.Timeframe = "fortnight" }, false},
		{"zero positions", func(c *EngineConfig) { c.MaxPositions = 0 }, false},
		{"score above 100", func(c *EngineConfig) { c.MinScore = 101 }, false},
		{"negative stop", func(c *EngineConfig) { c.StopLossPct = -1 }, false},
		{"zero take profit", func(c *EngineConfig) { c.TakeProfitPct = 0 }, false},
		{"zero trade size", func(c *EngineConfig) { c.MaxUSDTPerTrade = 0 }, false},
		{"zero interval", func(c *EngineConfig) { c.UpdateInterval = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultEngineConfig()
			tt.mutate(&c)
			if err := c.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := map[string]string{
		"eth/usdt":  "ETHUSDT",
		" SOLUSDT ": "SOLUSDT",
		"":          "",
	}
	for in, want := range tests {
		if got := NormalizeSymbol(in); got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

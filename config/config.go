package config

import (
	"errors"
	"fmt"
	"strings"

	"spotbot/internal/analysis"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Engine EngineConfig

	BinanceAPIKey    string
	BinanceSecretKey string
	Testnet          bool
	DryRun           bool    // paper trade on live market data
	PaperBalance     float64 // starting USDT for the emulator

	TelegramToken    string
	AuthorizedUserID int64
	Port             string
	StoragePath      string // sqlite trade journal, disabled when empty
	LogLevel         string
}

// EngineConfig holds the trading parameters. It is immutable for one engine run.
type EngineConfig struct {
	Timeframe       string   `json:"timeframe"`
	StopLossPct     float64  `json:"stop_loss_pct"`
	TakeProfitPct   float64  `json:"take_profit_pct"`
	MaxUSDTPerTrade float64  `json:"max_usdt_per_trade"`
	MaxPositions    int      `json:"max_positions"`
	MinScore        float64  `json:"min_score"`
	MinVolumeUSDT   float64  `json:"min_volume_usdt"`
	ExcludedSymbols []string `json:"excluded_symbols"`
	LiveAnalysis    bool     `json:"live_analysis"`
	UpdateInterval  int      `json:"update_interval"`
}

var defaultExcluded = []string{
	"BTC/USDT", "ETH/USDT", "BNB/USDT", "EURI/USDT", "AEUR/USDT", "EUR/USDT",
	"FDUSD/USDT", "USDP/USDT", "PAXG/USDT", "TUSD/USDT", "USDS/USDT", "USDC/USDT",
	"BUSD/USDT", "DAI/USDT", "SUSD/USDT", "EURS/USDT", "USDK/USDT",
}

// DefaultEngineConfig returns the stock trading parameters
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Timeframe:       "15m",
		StopLossPct:     3,
		TakeProfitPct:   2,
		MaxUSDTPerTrade: 10,
		MaxPositions:    5,
		MinScore:        75,
		MinVolumeUSDT:   50000,
		ExcludedSymbols: append([]string(nil), defaultExcluded...),
		LiveAnalysis:    true,
		UpdateInterval:  10,
	}
}

// Validate rejects parameters the engine cannot run with
func (c EngineConfig) Validate() error {
	var errs []error
	if _, err := analysis.TimeframeDuration(c.Timeframe); err != nil {
		errs = append(errs, err)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 100 {
		errs = append(errs, fmt.Errorf("stop_loss_pct must be in (0, 100), got %g", c.StopLossPct))
	}
	if c.TakeProfitPct <= 0 {
		errs = append(errs, fmt.Errorf("take_profit_pct must be positive, got %g", c.TakeProfitPct))
	}
	if c.MaxUSDTPerTrade <= 0 {
		errs = append(errs, fmt.Errorf("max_usdt_per_trade must be positive, got %g", c.MaxUSDTPerTrade))
	}
	if c.MaxPositions < 1 {
		errs = append(errs, fmt.Errorf("max_positions must be at least 1, got %d", c.MaxPositions))
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		errs = append(errs, fmt.Errorf("min_score must be in [0, 100], got %g", c.MinScore))
	}
	if c.MinVolumeUSDT < 0 {
		errs = append(errs, fmt.Errorf("min_volume_usdt must not be negative, got %g", c.MinVolumeUSDT))
	}
	if c.UpdateInterval < 1 {
		errs = append(errs, fmt.Errorf("update_interval must be at least 1, got %d", c.UpdateInterval))
	}
	return errors.Join(errs...)
}

// ExcludedSet returns the excluded symbols in exchange notation ("BTCUSDT")
func (c EngineConfig) ExcludedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.ExcludedSymbols))
	for _, s := range c.ExcludedSymbols {
		if n := NormalizeSymbol(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// NormalizeSymbol turns "eth/usdt" or " ETHUSDT " into "ETHUSDT"
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", ""))
}

// Validate checks the process level settings
func (c *Config) Validate() error {
	var errs []error
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !c.DryRun && (c.BinanceAPIKey == "" || c.BinanceSecretKey == "") {
		errs = append(errs, errors.New("BINANCE_API_KEY and BINANCE_SECRET_KEY are required unless DRY_RUN is set"))
	}
	if c.DryRun && c.PaperBalance <= 0 {
		errs = append(errs, fmt.Errorf("paper_balance must be positive, got %g", c.PaperBalance))
	}
	if c.TelegramToken != "" && c.AuthorizedUserID == 0 {
		errs = append(errs, errors.New("AUTHORIZED_USER_ID is required when TELEGRAM_BOT_TOKEN is set"))
	}
	return errors.Join(errs...)
}

// Load reads .env, an optional config.yaml under configPath and the
// environment, in increasing priority.
func Load(configPath string) (*Config, error) {
	// .env is optional, real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	_ = v.BindEnv("telegram.authorized_user_id", "AUTHORIZED_USER_ID")
	_ = v.BindEnv("web.port", "WEB_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Engine: EngineConfig{
			Timeframe:       v.GetString("engine.timeframe"),
			StopLossPct:     v.GetFloat64("engine.stop_loss_pct"),
			TakeProfitPct:   v.GetFloat64("engine.take_profit_pct"),
			MaxUSDTPerTrade: v.GetFloat64("engine.max_usdt_per_trade"),
			MaxPositions:    v.GetInt("engine.max_positions"),
			MinScore:        v.GetFloat64("engine.min_score"),
			MinVolumeUSDT:   v.GetFloat64("engine.min_volume_usdt"),
			ExcludedSymbols: splitList(v.GetStringSlice("engine.excluded_symbols")),
			LiveAnalysis:    v.GetBool("engine.live_analysis"),
			UpdateInterval:  v.GetInt("engine.update_interval"),
		},
		BinanceAPIKey:    v.GetString("binance.api_key"),
		BinanceSecretKey: v.GetString("binance.secret_key"),
		Testnet:          v.GetBool("binance.testnet"),
		DryRun:           v.GetBool("dry_run"),
		PaperBalance:     v.GetFloat64("paper_balance"),
		TelegramToken:    v.GetString("telegram.bot_token"),
		AuthorizedUserID: v.GetInt64("telegram.authorized_user_id"),
		Port:             v.GetString("web.port"),
		StoragePath:      v.GetString("storage.path"),
		LogLevel:         v.GetString("log.level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultEngineConfig()
	v.SetDefault("engine.timeframe", d.Timeframe)
	v.SetDefault("engine.stop_loss_pct", d.StopLossPct)
	v.SetDefault("engine.take_profit_pct", d.TakeProfitPct)
	v.SetDefault("engine.max_usdt_per_trade", d.MaxUSDTPerTrade)
	v.SetDefault("engine.max_positions", d.MaxPositions)
	v.SetDefault("engine.min_score", d.MinScore)
	v.SetDefault("engine.min_volume_usdt", d.MinVolumeUSDT)
	v.SetDefault("engine.excluded_symbols", d.ExcludedSymbols)
	v.SetDefault("engine.live_analysis", d.LiveAnalysis)
	v.SetDefault("engine.update_interval", d.UpdateInterval)

	v.SetDefault("binance.api_key", "")
	v.SetDefault("binance.secret_key", "")
	v.SetDefault("binance.testnet", false)
	v.SetDefault("dry_run", true)
	v.SetDefault("paper_balance", 1000.0)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.authorized_user_id", 0)
	v.SetDefault("web.port", "8080")
	v.SetDefault("storage.path", "")
	v.SetDefault("log.level", "info")
}

// splitList accepts both YAML lists and comma separated env values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

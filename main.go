package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spotbot/config"
	"spotbot/internal/engine"
	"spotbot/internal/exchange"
	"spotbot/internal/logger"
	"spotbot/internal/models"
	"spotbot/internal/storage"
	"spotbot/internal/telegram"
	"spotbot/internal/web"

	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		zap.NewExample().Sugar().Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Sugar().Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()
	log := zl.Sugar()

	log.Info("🚀 Starting Spot Trading Bot...")

	var client exchange.Client = exchange.NewSpotClient(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.Testnet, log.Named("exchange"))
	if cfg.DryRun {
		log.Infof("📊 Paper trading with %.2f USDT", cfg.PaperBalance)
		client = exchange.NewEmulatorClient(cfg.PaperBalance, client, log.Named("emulator"))
	} else {
		log.Warn("💸 LIVE trading enabled, orders are real")
	}

	tradingEngine := engine.NewTradingEngine(client, cfg.Engine, log.Named("engine"))

	var journal web.Journal
	if cfg.StoragePath != "" {
		j, err := storage.NewTradeJournal(cfg.StoragePath)
		if err != nil {
			log.Fatalf("Failed to open trade journal: %v", err)
		}
		defer j.Close()
		tradingEngine.SetJournal(j)
		journal = j
		log.Infof("💾 Trade journal: %s", cfg.StoragePath)
	}

	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.AuthorizedUserID, cfg.DryRun, tradingEngine, log.Named("telegram"))
		if err != nil {
			log.Fatalf("Failed to create Telegram bot: %v", err)
		}

		// notifications leave the worker goroutine right away
		tradingEngine.SetCallbacks(
			func(p models.Position) { go bot.SendTradeOpen(p) },
			func(r models.TradeRecord) { go bot.SendTradeClose(r) },
		)
		tradingEngine.SetScanCallback(bot.SendScanSummary)

		go bot.Start()
	} else {
		log.Info("📱 Telegram bot disabled (no TELEGRAM_BOT_TOKEN)")
	}

	webServer := web.NewServer(tradingEngine, journal, cfg.DryRun, cfg.Port, log.Named("web"))
	webServer.Start()

	log.Info("✅ All systems initialized")
	log.Infof("🌐 Web dashboard: http://localhost:%s", cfg.Port)
	log.Info("⏸️ Trading engine is stopped. Start it from Telegram or the dashboard.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if tradingEngine.IsRunning() {
		// close all positions before exit
		if allClosed, err := tradingEngine.Stop(ctx, true); err != nil {
			log.Errorw("Failed to stop engine", "error", err)
		} else if !allClosed {
			log.Warn("⚠️ Some positions are still open on the exchange")
		}
	}

	if bot != nil {
		bot.Stop()
	}
	if err := webServer.Shutdown(ctx); err != nil {
		log.Warnw("Web server shutdown", "error", err)
	}

	log.Info("👋 Goodbye!")
}

package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spotbot/config"
	"spotbot/internal/engine"
	"spotbot/internal/exchange"
	"spotbot/internal/models"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Engine is the part of the trading engine the bot drives
type Engine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context, closePositions bool) (bool, error)
	CloseAllPositions(ctx context.Context) bool
	IsRunning() bool
	Snapshot() engine.Snapshot
	GetBalance(ctx context.Context) (exchange.Balances, error)
	Config() config.EngineConfig
}

const commandTimeout = 60 * time.Second

type Bot struct {
	bot          *tele.Bot
	engine       Engine
	authorizedID int64
	dryRun       bool
	startTime    time.Time
	summaries    *summaryGate
	log          *zap.SugaredLogger
}

func NewBot(token string, authorizedID int64, dryRun bool, eng Engine, log *zap.SugaredLogger) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Errorw("❌ Telegram handler error", "error", err)
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:          b,
		engine:       eng,
		authorizedID: authorizedID,
		dryRun:       dryRun,
		startTime:    time.Now(),
		summaries:    newSummaryGate(summaryInterval),
		log:          log,
	}

	bot.setupHandlers()
	return bot, nil
}

// Start polls for updates until Stop is called
func (b *Bot) Start() {
	b.log.Info("📱 Telegram bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) setupHandlers() {
	b.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != b.authorizedID {
				return c.Send("⛔ Unauthorized")
			}
			return next(c)
		}
	})

	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/stats", b.handleStats)
	b.bot.Handle("/positions", b.handlePositions)
	b.bot.Handle("/settings", b.handleSettings)

	b.bot.Handle(&btnStartTrading, b.handleStartTrading)
	b.bot.Handle(&btnStopTrading, b.handleStopTrading)
	b.bot.Handle(&btnStopAndClose, b.handleStopAndClose)
	b.bot.Handle(&btnStats, b.handleStats)
	b.bot.Handle(&btnPositions, b.handlePositions)
	b.bot.Handle(&btnSettings, b.handleSettings)
	b.bot.Handle(&btnRefresh, b.handleStats)
	b.bot.Handle(&btnCloseAll, b.handleCloseAll)
	b.bot.Handle(&btnBack, b.handleStart)
}

var (
	btnStartTrading = tele.Btn{Text: "▶️ Start trading", Unique: "start_trading"}
	btnStopTrading  = tele.Btn{Text: "⏸️ Stop", Unique: "stop_trading"}
	btnStopAndClose = tele.Btn{Text: "🛑 Stop & close all", Unique: "stop_close"}
	btnStats        = tele.Btn{Text: "📊 Stats", Unique: "stats"}
	btnPositions    = tele.Btn{Text: "📋 Positions", Unique: "positions"}
	btnSettings     = tele.Btn{Text: "⚙️ Settings", Unique: "settings"}
	btnRefresh      = tele.Btn{Text: "🔄 Refresh", Unique: "refresh"}
	btnCloseAll     = tele.Btn{Text: "❌ Close all", Unique: "close_all"}
	btnBack         = tele.Btn{Text: "🔙 Back", Unique: "back"}
)

func (b *Bot) handleStart(c tele.Context) error {
	menu := &tele.ReplyMarkup{}

	if b.engine.IsRunning() {
		menu.Inline(
			menu.Row(btnStopTrading, btnStopAndClose),
			menu.Row(btnStats, btnPositions),
			menu.Row(btnSettings),
		)
	} else {
		menu.Inline(
			menu.Row(btnStartTrading),
			menu.Row(btnStats, btnPositions),
			menu.Row(btnSettings),
		)
	}

	msg := fmt.Sprintf("🤖 *Spot trading bot*\n\n🔄 Status: %s\n\nChoose an action:",
		statusLabel(b.engine.Snapshot().State))
	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handleStartTrading(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.engine.Start(ctx); err != nil {
		b.log.Errorw("❌ Start requested from Telegram failed", "error", err)
		return c.Send(fmt.Sprintf("❌ Start failed: %v", err))
	}
	return b.handleStart(c)
}

func (b *Bot) handleStopTrading(c tele.Context) error {
	return b.stop(c, false)
}

func (b *Bot) handleStopAndClose(c tele.Context) error {
	return b.stop(c, true)
}

func (b *Bot) stop(c tele.Context, closePositions bool) error {
	_ = c.Send("⏳ Stopping...")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	allClosed, err := b.engine.Stop(ctx, closePositions)
	if err != nil {
		return c.Send(fmt.Sprintf("⚠️ %v", err))
	}
	if closePositions && !allClosed {
		_ = c.Send("⚠️ Stopped, but some positions could not be closed. Check the exchange.")
	}
	return b.handleStart(c)
}

func (b *Bot) handleStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	free := -1.0
	if balances, err := b.engine.GetBalance(ctx); err == nil {
		free = balances.Free(exchange.QuoteAsset)
	} else {
		b.log.Warnw("⚠️ Failed to fetch balance", "error", err)
	}

	msg := formatStats(b.engine.Snapshot(), free, b.dryRun, time.Since(b.startTime))

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnRefresh, btnPositions),
		menu.Row(btnSettings, btnBack),
	)
	return c.Send(msg, menu, tele.ModeMarkdown)
}

func (b *Bot) handlePositions(c tele.Context) error {
	positions := b.engine.Snapshot().Positions

	menu := &tele.ReplyMarkup{}
	if len(positions) == 0 {
		menu.Inline(menu.Row(btnBack))
		return c.Send("📋 No open positions", menu)
	}

	menu.Inline(
		menu.Row(btnRefresh, btnCloseAll),
		menu.Row(btnBack),
	)
	return c.Send(formatPositions(positions), menu, tele.ModeMarkdown)
}

func (b *Bot) handleSettings(c tele.Context) error {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnBack))
	return c.Send(formatSettings(b.engine.Config(), b.dryRun), menu, tele.ModeMarkdown)
}

func (b *Bot) handleCloseAll(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if b.engine.CloseAllPositions(ctx) {
		return c.Send("✅ All positions closed")
	}
	return c.Send("⚠️ Some positions could not be closed")
}

func (b *Bot) send(msg string) {
	if _, err := b.bot.Send(&tele.User{ID: b.authorizedID}, msg, tele.ModeMarkdown); err != nil {
		b.log.Warnw("⚠️ Failed to send Telegram message", "error", err)
	}
}

func (b *Bot) SendTradeOpen(p models.Position) {
	b.send(formatTradeOpen(p))
}

func (b *Bot) SendTradeClose(r models.TradeRecord) {
	b.send(formatTradeClose(r))
}

// SendScanSummary reports the top results of a completed scan when the
// top set changed and the summary interval has passed. It does not block.
func (b *Bot) SendScanSummary(results []models.ScanResult, scanned, total int) {
	if scanned != total || len(results) == 0 {
		return
	}
	if !b.summaries.allow(time.Now(), topResults(results, summaryTop)) {
		return
	}
	go b.send(formatScanSummary(results, summaryTop))
}

func statusLabel(state string) string {
	switch state {
	case engine.StateRunning.String():
		return "▶️ Running"
	case engine.StateStopping.String():
		return "⏳ Stopping"
	}
	return "⏸️ Stopped"
}

func modeLabel(dryRun bool) string {
	if dryRun {
		return "📊 Paper trading"
	}
	return "💸 Live"
}

func formatStats(s engine.Snapshot, freeUSDT float64, dryRun bool, uptime time.Duration) string {
	st := s.Stats

	plEmoji := "🟢"
	if st.TotalProfit < 0 {
		plEmoji = "🔴"
	} else if st.TotalProfit == 0 {
		plEmoji = "🟡"
	}

	invested := 0.0
	for _, p := range s.Positions {
		invested += p.EntryPrice * p.Amount
	}

	balance := "n/a"
	if freeUSDT >= 0 {
		balance = fmt.Sprintf("%.2f USDT", freeUSDT)
	}

	return fmt.Sprintf(`📊 *Trading stats*

🔄 Status: %s
🎯 Mode: %s
💰 Free balance: %s
📈 In positions: %.2f USDT
📋 Open positions: %d
📅 Closed trades: %d
🏆 Winning: %d
📉 Losing: %d
📊 Win rate: %.1f%%
💰 Total P&L: %s %+.4f USDT
🥇 Best: %+.4f | Worst: %+.4f

🕐 Uptime: %s
🕐 Updated: %s`,
		statusLabel(s.State),
		modeLabel(dryRun),
		balance,
		invested,
		len(s.Positions),
		st.TotalTrades,
		st.WinningTrades,
		st.LosingTrades,
		st.WinRate,
		plEmoji, st.TotalProfit,
		st.BestTrade, st.WorstTrade,
		formatDuration(uptime),
		time.Now().Format("15:04:05"),
	)
}

func formatPositions(positions []models.Position) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 *Open positions (%d)*\n\n", len(positions))

	total := 0.0
	for _, p := range positions {
		cost := p.EntryPrice * p.Amount
		total += cost
		fmt.Fprintf(&sb, "📈 *%s* | %.2f USDT\n   📊 Entry: %.8f | Amount: %.8f\n   🎯 TP: %.8f | 🛡️ SL: %.8f\n   ⏱️ Open for %s\n\n",
			p.Symbol, cost, p.EntryPrice, p.Amount, p.TakeProfitPrice, p.StopLossPrice, formatDuration(time.Since(p.EntryTime)))
	}
	fmt.Fprintf(&sb, "💼 Total invested: %.2f USDT", total)
	return sb.String()
}

func formatSettings(cfg config.EngineConfig, dryRun bool) string {
	return fmt.Sprintf(`⚙️ *Settings*

Mode: %s
Timeframe: %s
Stop loss: %.2f%%
Take profit: %.2f%%
Per trade: %.2f USDT
Max positions: %d
Min score: %.0f
Min 24h volume: %.0f USDT
Excluded: %d symbols`,
		modeLabel(dryRun),
		cfg.Timeframe,
		cfg.StopLossPct,
		cfg.TakeProfitPct,
		cfg.MaxUSDTPerTrade,
		cfg.MaxPositions,
		cfg.MinScore,
		cfg.MinVolumeUSDT,
		len(cfg.ExcludedSymbols),
	)
}

func formatTradeOpen(p models.Position) string {
	return fmt.Sprintf(`✅ *POSITION OPENED*

📈 *%s*
💰 Size: %.2f USDT
📊 Entry: %.8f
🎯 Take profit: %.8f
🛡️ Stop loss: %.8f
⭐ Score: %.1f

⏰ %s`,
		p.Symbol,
		p.EntryPrice*p.Amount,
		p.EntryPrice,
		p.TakeProfitPrice,
		p.StopLossPrice,
		p.Score,
		p.EntryTime.Format("15:04:05"),
	)
}

func formatTradeClose(r models.TradeRecord) string {
	emoji, plEmoji := "✅", "💚"
	if r.Profit < 0 {
		emoji, plEmoji = "⚠️", "❤️"
	}

	return fmt.Sprintf(`%s *POSITION CLOSED*

📉 *%s* closed (%s)
%s P&L: %+.4f USDT (%+.2f%%)
📊 Exit: %.8f | Amount: %.8f

⏰ %s`,
		emoji,
		r.Symbol,
		r.Status,
		plEmoji, r.Profit, r.ProfitPct,
		r.Price, r.Amount,
		r.Timestamp.Format("15:04:05"),
	)
}

func formatScanSummary(results []models.ScanResult, top int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 *Scan complete*: %d symbols analyzed\n\n", len(results))
	for _, r := range topResults(results, top) {
		fmt.Fprintf(&sb, "• *%s* score %.1f (%s) | RSI %.1f | 24h %+.2f%%\n",
			r.Symbol, r.Score, r.Signal, r.RSI, r.Change24h)
	}
	return sb.String()
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	}
	return fmt.Sprintf("%dmin", minutes)
}

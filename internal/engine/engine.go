package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"spotbot/config"
	"spotbot/internal/analysis"
	"spotbot/internal/cache"
	"spotbot/internal/exchange"
	"spotbot/internal/metrics"
	"spotbot/internal/models"
	"spotbot/internal/risk"
	"spotbot/internal/stats"

	"go.uber.org/zap"
)

// State is the engine lifecycle position
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var (
	ErrProbeFailed      = errors.New("exchange connectivity probe failed")
	ErrOrderNotFilled   = errors.New("order not filled")
	ErrNoBalance        = errors.New("no balance available")
	ErrAlreadyRunning   = errors.New("engine already running")
	ErrNotRunning       = errors.New("engine not running")
	ErrPositionNotFound = errors.New("position not found")
)

const (
	defaultTick     = time.Second
	universeRefresh = 900 * time.Second
	stopTimeout     = 5 * time.Second
)

// Journal persists trade records outside the process
type Journal interface {
	Append(ctx context.Context, r models.TradeRecord) error
}

// Snapshot is a read-only view of the engine for reporting surfaces
type Snapshot struct {
	State      string                `json:"state"`
	Positions  []models.Position     `json:"positions"`
	Stats      models.StatsAggregate `json:"stats"`
	LastScan   []models.ScanResult   `json:"last_scan"`
	Scanned    int                   `json:"scanned"`
	Total      int                   `json:"total"`
	LastScanAt time.Time             `json:"last_scan_at"`
}

type TradingEngine struct {
	exchange  exchange.Client
	cfg       config.EngineConfig
	validator *risk.Validator
	stats     *stats.Tracker
	journal   Journal
	log       *zap.SugaredLogger

	prices     *cache.TTL[float64]
	ohlcv      *cache.TTL[[]exchange.Kline]
	indicators *cache.TTL[*analysis.Result]

	// mu guards positions and the universe for the whole read-modify-write,
	// exchange calls included
	mu         sync.Mutex
	positions  map[string]models.Position
	markets    map[string]exchange.Market
	universe   []exchange.Market
	universeAt time.Time

	state     atomic.Int32
	lifecycle sync.Mutex // serializes Start and Stop
	stopChan  chan struct{}
	done      chan struct{}

	viewMu sync.RWMutex
	view   Snapshot

	cbMu         sync.RWMutex
	onTradeOpen  func(models.Position)
	onTradeClose func(models.TradeRecord)
	onScan       func(results []models.ScanResult, scanned, total int)

	tick time.Duration
	now  func() time.Time
}

func NewTradingEngine(ex exchange.Client, cfg config.EngineConfig, log *zap.SugaredLogger) *TradingEngine {
	e := &TradingEngine{
		exchange:   ex,
		cfg:        cfg,
		validator:  risk.NewValidator(cfg),
		stats:      stats.NewTracker(),
		log:        log,
		prices:     cache.NewPriceCache(),
		ohlcv:      cache.NewOHLCVCache[[]exchange.Kline](),
		indicators: cache.NewIndicatorCache[*analysis.Result](),
		positions:  make(map[string]models.Position),
		markets:    make(map[string]exchange.Market),
		tick:       defaultTick,
		now:        time.Now,
	}
	e.view.State = StateIdle.String()
	return e
}

// SetJournal attaches an external trade journal. Call before Start.
func (e *TradingEngine) SetJournal(j Journal) {
	e.journal = j
}

func (e *TradingEngine) SetCallbacks(
	onTradeOpen func(models.Position),
	onTradeClose func(models.TradeRecord),
) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.onTradeOpen = onTradeOpen
	e.onTradeClose = onTradeClose
}

// SetScanCallback registers the scan progress observer. It runs on the
// worker goroutine and must return quickly.
func (e *TradingEngine) SetScanCallback(fn func(results []models.ScanResult, scanned, total int)) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.onScan = fn
}

func (e *TradingEngine) State() State {
	return State(e.state.Load())
}

func (e *TradingEngine) setState(s State) {
	e.state.Store(int32(s))
	metrics.SetEngineState(int(s))
	e.viewMu.Lock()
	e.view.State = s.String()
	e.viewMu.Unlock()
}

func (e *TradingEngine) IsRunning() bool {
	return e.State() == StateRunning
}

func (e *TradingEngine) Config() config.EngineConfig {
	return e.cfg
}

// Start probes the exchange and launches the worker. On a failed probe
// the engine stays where it was and nothing is started.
func (e *TradingEngine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if st := e.State(); st == StateRunning || st == StateStopping {
		return ErrAlreadyRunning
	}
	// a worker that outlived its stop timeout must finish before a new one starts
	if e.done != nil {
		select {
		case <-e.done:
		case <-ctx.Done():
			return fmt.Errorf("previous worker still busy: %w", ctx.Err())
		}
	}

	markets, err := e.exchange.LoadMarkets(ctx)
	if err == nil {
		_, err = e.exchange.FetchBalance(ctx)
	}
	if err != nil {
		e.log.Errorw("❌ Trading Engine start failed", "error", err)
		return fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}

	e.mu.Lock()
	e.setUniverse(markets)
	symbols := len(e.universe)
	e.mu.Unlock()

	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	e.setState(StateRunning)
	go e.run(e.stopChan, e.done)

	e.log.Infow("🚀 Trading Engine started",
		"timeframe", e.cfg.Timeframe,
		"max_positions", e.cfg.MaxPositions,
		"min_score", e.cfg.MinScore,
		"symbols", symbols)
	return nil
}

// Stop drains the engine. With closePositions set every open position is
// sold first; the returned bool reports whether all of them closed.
// Stop always completes, whatever the close-all outcome.
func (e *TradingEngine) Stop(ctx context.Context, closePositions bool) (bool, error) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.State() != StateRunning {
		return false, ErrNotRunning
	}

	e.setState(StateStopping)
	e.log.Info("⏸️ Trading Engine stopping")

	allClosed := true
	if closePositions {
		allClosed = e.CloseAllPositions(ctx)
		if !allClosed {
			e.log.Warn("⚠️ Some positions could not be closed")
		}
	}

	close(e.stopChan)
	select {
	case <-e.done:
	case <-time.After(stopTimeout):
		e.log.Warnw("⚠️ Worker did not reach a safe point in time", "timeout", stopTimeout)
	}

	e.setState(StateStopped)

	if err := e.exchange.Close(); err != nil {
		e.log.Warnw("⚠️ Failed to release exchange session", "error", err)
	}

	e.mu.Lock()
	e.publish(func() {
		clear(e.positions)
	})
	e.universe = nil
	e.universeAt = time.Time{}
	e.mu.Unlock()

	e.prices.Clear()
	e.ohlcv.Clear()
	e.indicators.Clear()

	e.log.Info("⏹️ Trading Engine stopped")
	return allClosed, nil
}

func (e *TradingEngine) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx := context.Background()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		e.safeTick(ctx, stop)
		// next tick starts one period after this one finished
		timer.Reset(e.tick)
	}
}

func (e *TradingEngine) safeTick(ctx context.Context, stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncTickError("panic")
			e.log.Errorw("💥 Trading loop panic recovered", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if e.State() == StateStopping {
		e.checkPositions(ctx)
		return
	}

	e.scanMarkets(ctx, stop)
	e.checkPositions(ctx)
}

// publish runs mutate and refreshes the reader view atomically with it.
// Callers hold e.mu.
func (e *TradingEngine) publish(mutate func()) {
	e.viewMu.Lock()
	defer e.viewMu.Unlock()

	mutate()

	positions := make([]models.Position, 0, len(e.positions))
	for _, p := range e.positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].EntryTime.Before(positions[j].EntryTime)
	})
	e.view.Positions = positions
	e.view.Stats = e.stats.Aggregate()

	metrics.SetOpenPositions(len(positions))
}

func (e *TradingEngine) publishScan(results []models.ScanResult, scanned, total int) {
	cp := make([]models.ScanResult, len(results))
	copy(cp, results)

	e.viewMu.Lock()
	e.view.LastScan = cp
	e.view.Scanned = scanned
	e.view.Total = total
	e.view.LastScanAt = e.now()
	e.viewMu.Unlock()
}

// Snapshot returns a copy of the current state. It never waits on
// exchange calls.
func (e *TradingEngine) Snapshot() Snapshot {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()

	s := e.view
	s.Positions = append([]models.Position(nil), e.view.Positions...)
	s.LastScan = append([]models.ScanResult(nil), e.view.LastScan...)
	return s
}

func (e *TradingEngine) GetPositions() []models.Position {
	return e.Snapshot().Positions
}

func (e *TradingEngine) GetStats() models.StatsAggregate {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	return e.view.Stats
}

// GetTrades returns the full trade history of this run
func (e *TradingEngine) GetTrades() []models.TradeRecord {
	return e.stats.History()
}

func (e *TradingEngine) GetBalance(ctx context.Context) (exchange.Balances, error) {
	return e.exchange.FetchBalance(ctx)
}

func (e *TradingEngine) GetFreeSlots() int {
	return e.cfg.MaxPositions - len(e.GetPositions())
}

func (e *TradingEngine) notifyOpen(p models.Position) {
	e.cbMu.RLock()
	fn := e.onTradeOpen
	e.cbMu.RUnlock()
	if fn != nil {
		e.safeCall("trade open", func() { fn(p) })
	}
}

func (e *TradingEngine) notifyClose(r models.TradeRecord) {
	e.cbMu.RLock()
	fn := e.onTradeClose
	e.cbMu.RUnlock()
	if fn != nil {
		e.safeCall("trade close", func() { fn(r) })
	}
}

func (e *TradingEngine) notifyScan(results []models.ScanResult, scanned, total int) {
	e.publishScan(results, scanned, total)

	e.cbMu.RLock()
	fn := e.onScan
	e.cbMu.RUnlock()
	if fn != nil {
		cp := append([]models.ScanResult(nil), results...)
		e.safeCall("scan progress", func() { fn(cp, scanned, total) })
	}
}

// safeCall shields the worker from observer failures
func (e *TradingEngine) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("⚠️ Callback panic recovered", "callback", name, "panic", r)
		}
	}()
	fn()
}

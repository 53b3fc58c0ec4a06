package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"spotbot/internal/analysis"
	"spotbot/internal/cache"
	"spotbot/internal/exchange"
	"spotbot/internal/metrics"
	"spotbot/internal/models"
	"spotbot/internal/risk"
)

// stableBases are base assets pegged to fiat or gold. Their USDT pairs never move enough to trade.
var stableBases = map[string]struct{}{
	"USDT": {}, "USDC": {}, "BUSD": {}, "FDUSD": {}, "TUSD": {}, "USDP": {},
	"DAI": {}, "USDS": {}, "SUSD": {}, "USDK": {}, "EUR": {}, "AEUR": {},
	"EURI": {}, "EURS": {}, "PAXG": {},
}

// filterUniverse keeps tradable spot pairs quoted in USDT, sorted by symbol
func filterUniverse(markets []exchange.Market) []exchange.Market {
	out := make([]exchange.Market, 0, len(markets))
	for _, m := range markets {
		if m.QuoteAsset != exchange.QuoteAsset || !m.Trading || !m.SpotTradingAllowed {
			continue
		}
		if _, stable := stableBases[m.BaseAsset]; stable {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// setUniverse replaces the scan universe. Callers hold e.mu.
func (e *TradingEngine) setUniverse(markets []exchange.Market) {
	for _, m := range markets {
		e.markets[m.Symbol] = m
	}
	e.universe = filterUniverse(markets)
	e.universeAt = e.now()
}

func (e *TradingEngine) symbolsToScan(ctx context.Context) ([]exchange.Market, error) {
	e.mu.Lock()
	fresh := e.universe != nil && e.now().Sub(e.universeAt) < universeRefresh
	universe := e.universe
	e.mu.Unlock()

	if fresh {
		return universe, nil
	}

	markets, err := e.exchange.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.setUniverse(markets)
	universe = e.universe
	e.mu.Unlock()

	e.log.Infof("🔄 Market universe refreshed: %d USDT pairs", len(universe))
	return universe, nil
}

func trimQuote(symbol string) string {
	return strings.TrimSuffix(symbol, exchange.QuoteAsset)
}

// scanMarkets runs one analysis pass over the universe and opens positions
// for qualifying symbols as it goes.
func (e *TradingEngine) scanMarkets(ctx context.Context, stop <-chan struct{}) {
	universe, err := e.symbolsToScan(ctx)
	if err != nil {
		metrics.IncTickError("universe")
		e.log.Errorw("❌ Failed to load markets", "error", err)
		return
	}

	started := e.now()
	total := len(universe)
	results := make([]models.ScanResult, 0, total)
	opportunities := 0

	e.log.Debugf("🔍 Scanning %d symbols", total)

	for i, m := range universe {
		if stopRequested(stop) || e.State() != StateRunning {
			e.log.Infof("⏸️ Scan interrupted after %d/%d symbols", i, total)
			return
		}
		scanned := i + 1

		res, candles, err := e.analyzeSymbol(ctx, m.Symbol)
		switch {
		case errors.Is(err, analysis.ErrInsufficientData), errors.Is(err, analysis.ErrIndicatorUnavailable):
			e.log.Debugw("Skipping symbol", "symbol", m.Symbol, "reason", err)
		case err != nil:
			metrics.IncTickError("analysis")
			e.log.Warnw("⚠️ Failed to analyze symbol", "symbol", m.Symbol, "error", err)
		default:
			last := candles[len(candles)-1]
			usdtVolume := last.Volume * last.Close

			results = append(results, models.ScanResult{
				Symbol:     m.Symbol,
				Price:      last.Close,
				Change24h:  res.PriceChange24h,
				RSI:        res.Indicators.RSI,
				USDTVolume: usdtVolume,
				Score:      res.Score,
				Signal:     string(analysis.ClassifySignalTiered(res.Score)),
				Timestamp:  e.now(),
			})

			if usdtVolume >= e.cfg.MinVolumeUSDT && res.Score >= e.cfg.MinScore {
				opportunities++
				metrics.IncOpportunity()
				if d := analysis.CheckDivergence(candles); d != nil {
					e.log.Debugw("Divergence on opportunity", "symbol", m.Symbol, "kind", d.Kind, "strength", d.Strength)
				}
				e.tryOpen(ctx, risk.Opportunity{
					Symbol:     m.Symbol,
					Price:      last.Close,
					USDTVolume: usdtVolume,
					Score:      res.Score,
				})
			}
		}

		if e.cfg.LiveAnalysis && scanned%e.cfg.UpdateInterval == 0 {
			e.notifyScan(results, scanned, total)
		}
		if scanned%10 == 0 {
			e.log.Debugf("📊 Analyzed %d/%d symbols", scanned, total)
		}
	}

	metrics.ObserveScan(e.now().Sub(started), total)
	e.notifyScan(results, total, total)
	e.log.Infow("✅ Scan complete", "symbols", total, "results", len(results), "opportunities", opportunities)
}

// analyzeSymbol returns the analysis of the latest candles of symbol
func (e *TradingEngine) analyzeSymbol(ctx context.Context, symbol string) (*analysis.Result, []exchange.Kline, error) {
	candles, err := e.candles(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	if len(candles) < analysis.MinCandles {
		return nil, nil, analysis.ErrInsufficientData
	}

	key := fmt.Sprintf("%s_%d", cache.Key(symbol, e.cfg.Timeframe), candles[len(candles)-1].OpenTime.Unix())
	if res, ok := e.indicators.Get(key); ok {
		return res, candles, nil
	}

	res, err := analysis.Analyze(candles, e.cfg.Timeframe)
	if err != nil {
		return nil, nil, err
	}
	e.indicators.Set(key, res)
	return res, candles, nil
}

func (e *TradingEngine) candles(ctx context.Context, symbol string) ([]exchange.Kline, error) {
	key := cache.Key(symbol, e.cfg.Timeframe)
	if klines, ok := e.ohlcv.Get(key); ok {
		return klines, nil
	}

	klines, err := e.exchange.FetchOHLCV(ctx, symbol, e.cfg.Timeframe, analysis.CandleLimit(e.cfg.Timeframe))
	if err != nil {
		return nil, err
	}
	e.ohlcv.Set(key, klines)
	return klines, nil
}

// currentPrice reads the last traded price through the price cache
func (e *TradingEngine) currentPrice(ctx context.Context, symbol string) (float64, error) {
	if p, ok := e.prices.Get(symbol); ok {
		return p, nil
	}
	t, err := e.exchange.FetchTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if t.Last <= 0 {
		return 0, fmt.Errorf("%w: %s: no last price", exchange.ErrExchange, symbol)
	}
	e.prices.Set(symbol, t.Last)
	return t.Last, nil
}

func stopRequested(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

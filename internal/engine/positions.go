package engine

import (
	"context"
	"fmt"
	"sort"

	"spotbot/internal/exchange"
	"spotbot/internal/metrics"
	"spotbot/internal/models"
	"spotbot/internal/risk"
)

// tryOpen validates op and buys it when a slot is free
func (e *TradingEngine) tryOpen(ctx context.Context, op risk.Opportunity) {
	pos, ok := e.openLocked(ctx, op)
	if ok {
		e.notifyOpen(pos)
	}
}

func (e *TradingEngine) openLocked(ctx context.Context, op risk.Opportunity) (models.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != StateRunning {
		return models.Position{}, false
	}
	if !risk.HasCapacity(len(e.positions), e.cfg.MaxPositions) {
		e.log.Debugw("No free slots", "symbol", op.Symbol, "max_positions", e.cfg.MaxPositions)
		return models.Position{}, false
	}
	if ok, reason := e.validator.Check(op, e.positions); !ok {
		e.log.Debugw("Opportunity rejected", "symbol", op.Symbol, "reason", reason)
		return models.Position{}, false
	}

	pos, err := e.executeTrade(ctx, op)
	if err != nil {
		e.log.Errorw("❌ Failed to open position", "symbol", op.Symbol, "score", op.Score, "error", err)
		return models.Position{}, false
	}
	return pos, true
}

// executeTrade places the market buy for op. Callers hold e.mu.
func (e *TradingEngine) executeTrade(ctx context.Context, op risk.Opportunity) (models.Position, error) {
	balances, err := e.exchange.FetchBalance(ctx)
	if err != nil {
		return models.Position{}, err
	}

	free := balances.Free(exchange.QuoteAsset)
	size, reduced := risk.OrderSize(e.cfg.MaxUSDTPerTrade, free)
	if reduced {
		e.log.Warnf("⚠️ Insufficient balance for full size. Using %.2f USDT instead of %.2f", size, e.cfg.MaxUSDTPerTrade)
	}
	if size <= 0 {
		return models.Position{}, fmt.Errorf("%w: %s free %.2f", ErrNoBalance, exchange.QuoteAsset, free)
	}

	order, err := e.exchange.CreateMarketBuyOrder(ctx, op.Symbol, size/op.Price)
	if err != nil {
		metrics.IncOrder(string(exchange.SideBuy), "error")
		return models.Position{}, err
	}
	metrics.IncOrder(string(exchange.SideBuy), string(order.Status))
	if !order.IsFilled() {
		return models.Position{}, fmt.Errorf("%w: %s buy status %s", ErrOrderNotFilled, op.Symbol, order.Status)
	}

	entry := order.Price
	if entry <= 0 {
		entry = op.Price
	}
	amount := order.Amount
	if amount <= 0 {
		amount = size / op.Price
	}

	now := e.now()
	pos := models.Position{
		Symbol:          op.Symbol,
		BaseAsset:       e.baseAssetLocked(op.Symbol),
		EntryPrice:      entry,
		Amount:          amount,
		StopLossPrice:   risk.StopLossPrice(entry, e.cfg.StopLossPct),
		TakeProfitPrice: risk.TakeProfitPrice(entry, e.cfg.TakeProfitPct),
		EntryTime:       now,
		Score:           op.Score,
	}
	rec := models.TradeRecord{
		Timestamp:  now,
		Symbol:     op.Symbol,
		Type:       models.TradeBuy,
		Price:      entry,
		Amount:     amount,
		TotalQuote: entry * amount,
		Status:     models.StatusOpenPosition,
	}

	e.publish(func() {
		e.positions[op.Symbol] = pos
		e.stats.Record(rec)
	})
	e.persist(ctx, rec)

	e.log.Infof("✅ Opened %s | Price: %.8f | Amount: %.8f | SL: %.8f | TP: %.8f | Score: %.1f",
		op.Symbol, entry, amount, pos.StopLossPrice, pos.TakeProfitPrice, op.Score)
	return pos, nil
}

// checkPositions closes every position whose price crossed an exit level
func (e *TradingEngine) checkPositions(ctx context.Context) {
	e.mu.Lock()
	symbols := make([]string, 0, len(e.positions))
	for s := range e.positions {
		symbols = append(symbols, s)
	}
	e.mu.Unlock()
	sort.Strings(symbols)

	for _, symbol := range symbols {
		price, err := e.currentPrice(ctx, symbol)
		if err != nil {
			metrics.IncTickError("monitor")
			e.log.Warnw("⚠️ Failed to get price", "symbol", symbol, "error", err)
			continue
		}

		rec, closed, err := e.closeIfTriggered(ctx, symbol, price)
		if err != nil {
			e.log.Errorw("❌ Failed to close position", "symbol", symbol, "error", err)
			continue
		}
		if closed {
			e.notifyClose(rec)
		}
	}
}

func (e *TradingEngine) closeIfTriggered(ctx context.Context, symbol string, price float64) (models.TradeRecord, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[symbol]
	if !ok {
		return models.TradeRecord{}, false, nil
	}
	reason, hit := risk.ShouldClose(pos, price)
	if !hit {
		return models.TradeRecord{}, false, nil
	}

	rec, err := e.closePosition(ctx, pos, reason)
	if err != nil {
		return models.TradeRecord{}, false, err
	}
	return rec, true, nil
}

// closePosition sells pos at market. Callers hold e.mu.
func (e *TradingEngine) closePosition(ctx context.Context, pos models.Position, reason models.TradeStatus) (models.TradeRecord, error) {
	balances, err := e.exchange.FetchBalance(ctx)
	if err != nil {
		return models.TradeRecord{}, err
	}

	available := balances.Free(pos.BaseAsset)
	if available <= 0 {
		return models.TradeRecord{}, fmt.Errorf("%w: %s", ErrNoBalance, pos.BaseAsset)
	}

	amount := pos.Amount
	if available < amount {
		e.log.Warnf("⚠️ Amount correction for %s: %.8f -> %.8f", pos.Symbol, amount, available)
		amount = available
		pos.Amount = available
		e.publish(func() {
			e.positions[pos.Symbol] = pos
		})
	}

	order, err := e.exchange.CreateMarketSellOrder(ctx, pos.Symbol, amount)
	if err != nil {
		metrics.IncOrder(string(exchange.SideSell), "error")
		return models.TradeRecord{}, err
	}
	metrics.IncOrder(string(exchange.SideSell), string(order.Status))
	if !order.IsFilled() {
		return models.TradeRecord{}, fmt.Errorf("%w: %s sell status %s", ErrOrderNotFilled, pos.Symbol, order.Status)
	}

	sold := order.Amount
	if sold <= 0 {
		sold = amount
	}
	exit := e.exitPrice(ctx, pos, order, sold)

	profit := (exit - pos.EntryPrice) * sold
	profitPct := (exit - pos.EntryPrice) / pos.EntryPrice * 100

	rec := models.TradeRecord{
		Timestamp:  e.now(),
		Symbol:     pos.Symbol,
		Type:       models.TradeSell,
		Price:      exit,
		Amount:     sold,
		TotalQuote: exit * sold,
		Profit:     profit,
		ProfitPct:  profitPct,
		Status:     reason,
	}

	e.publish(func() {
		delete(e.positions, pos.Symbol)
		e.stats.Record(rec)
	})
	metrics.AddRealizedPnL(profit)
	e.persist(ctx, rec)

	e.log.Infof("🎯 Closed %s (%s) | Entry: %.8f | Exit: %.8f | P/L: %.4f USDT (%.2f%%)",
		pos.Symbol, reason, pos.EntryPrice, exit, profit, profitPct)
	return rec, nil
}

// exitPrice resolves the fill price of a sell that reported none. The sell
// already happened, so when no price source answers the entry price is
// used and the trade books flat instead of as a total loss.
func (e *TradingEngine) exitPrice(ctx context.Context, pos models.Position, order *exchange.Order, sold float64) float64 {
	if order.Price > 0 {
		return order.Price
	}
	if order.Cost > 0 && sold > 0 {
		return order.Cost / sold
	}
	p, err := e.currentPrice(ctx, pos.Symbol)
	if err == nil {
		return p
	}
	e.log.Warnw("⚠️ No exit price for filled sell, booking at entry", "symbol", pos.Symbol, "error", err)
	return pos.EntryPrice
}

// ClosePosition sells one open position on operator request
func (e *TradingEngine) ClosePosition(ctx context.Context, symbol string) (models.TradeRecord, error) {
	e.mu.Lock()
	pos, ok := e.positions[symbol]
	if !ok {
		e.mu.Unlock()
		return models.TradeRecord{}, fmt.Errorf("%w: %s", ErrPositionNotFound, symbol)
	}
	rec, err := e.closePosition(ctx, pos, models.StatusManualStop)
	e.mu.Unlock()

	if err != nil {
		return models.TradeRecord{}, err
	}
	e.notifyClose(rec)
	return rec, nil
}

// CloseAllPositions sells every open position, continuing past failures.
// It reports true only when every position was closed.
func (e *TradingEngine) CloseAllPositions(ctx context.Context) bool {
	closed, allClosed := e.closeAllLocked(ctx)
	for _, rec := range closed {
		e.notifyClose(rec)
	}
	return allClosed
}

func (e *TradingEngine) closeAllLocked(ctx context.Context) ([]models.TradeRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(e.positions))
	for s := range e.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	if len(symbols) > 0 {
		e.log.Infof("🛑 Closing %d positions", len(symbols))
	}

	allClosed := true
	var closed []models.TradeRecord
	for _, symbol := range symbols {
		rec, err := e.closePosition(ctx, e.positions[symbol], models.StatusManualStop)
		if err != nil {
			allClosed = false
			e.log.Errorw("❌ Failed to close position", "symbol", symbol, "error", err)
			continue
		}
		closed = append(closed, rec)
	}
	return closed, allClosed
}

// persist writes rec to the journal. Journal failures never undo a trade.
func (e *TradingEngine) persist(ctx context.Context, rec models.TradeRecord) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(ctx, rec); err != nil {
		e.log.Warnw("⚠️ Failed to journal trade", "symbol", rec.Symbol, "type", rec.Type, "error", err)
	}
}

func (e *TradingEngine) baseAssetLocked(symbol string) string {
	if m, ok := e.markets[symbol]; ok && m.BaseAsset != "" {
		return m.BaseAsset
	}
	return trimQuote(symbol)
}

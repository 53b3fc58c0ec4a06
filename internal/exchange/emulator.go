package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// emulatorFee is charged on the quote side of every paper fill
const emulatorFee = 0.001

// EmulatorClient - paper trading client. Market data comes from the wrapped
// client, fills happen instantly at the last ticker price.
type EmulatorClient struct {
	mu       sync.Mutex
	balances map[string]float64
	markets  map[string]Market
	baseAPI  Client
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewEmulatorClient(initialBalance float64, api Client, log *zap.SugaredLogger) *EmulatorClient {
	return &EmulatorClient{
		balances: map[string]float64{QuoteAsset: initialBalance},
		markets:  make(map[string]Market),
		baseAPI:  api,
		log:      log,
		now:      time.Now,
	}
}

func (e *EmulatorClient) LoadMarkets(ctx context.Context) ([]Market, error) {
	markets, err := e.baseAPI.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	for _, m := range markets {
		e.markets[m.Symbol] = m
	}
	e.mu.Unlock()
	return markets, nil
}

func (e *EmulatorClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]Kline, error) {
	return e.baseAPI.FetchOHLCV(ctx, symbol, timeframe, limit)
}

func (e *EmulatorClient) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	return e.baseAPI.FetchTicker(ctx, symbol)
}

func (e *EmulatorClient) FetchBalance(ctx context.Context) (Balances, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	balances := make(Balances, len(e.balances))
	for asset, free := range e.balances {
		balances[asset] = Balance{Free: free}
	}
	return balances, nil
}

func (e *EmulatorClient) CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64) (*Order, error) {
	ticker, err := e.baseAPI.FetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	step := e.markets[symbol].StepSize
	qty, _ := RoundToStep(amount, step).Float64()
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity %.8f for %s rounds to zero", ErrExchange, amount, symbol)
	}

	free := e.balances[QuoteAsset]
	if qty*ticker.Last > free {
		return nil, fmt.Errorf("%w: insufficient balance: %.2f %s, need %.2f", ErrExchange, free, QuoteAsset, qty*ticker.Last)
	}
	// an order that fits but leaves no room for the fee is shrunk to fit
	if qty*ticker.Last*(1+emulatorFee) > free {
		qty, _ = RoundToStep(free/(ticker.Last*(1+emulatorFee)), step).Float64()
		if qty <= 0 {
			return nil, fmt.Errorf("%w: %.2f %s does not cover the fee for %s", ErrExchange, free, QuoteAsset, symbol)
		}
	}

	cost := qty * ticker.Last
	total := cost * (1 + emulatorFee)

	e.balances[QuoteAsset] -= total
	e.balances[e.baseAsset(symbol)] += qty

	e.log.Infof("✅ Emulator: bought %.8f %s at %.8f | Cost: %.2f %s", qty, symbol, ticker.Last, cost, QuoteAsset)
	return e.fill(symbol, SideBuy, ticker.Last, qty), nil
}

func (e *EmulatorClient) CreateMarketSellOrder(ctx context.Context, symbol string, amount float64) (*Order, error) {
	ticker, err := e.baseAPI.FetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	base := e.baseAsset(symbol)
	qty, _ := RoundToStep(amount, e.markets[symbol].StepSize).Float64()
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity %.8f for %s rounds to zero", ErrExchange, amount, symbol)
	}
	if e.balances[base] < qty {
		return nil, fmt.Errorf("%w: insufficient %s balance: %.8f, need %.8f", ErrExchange, base, e.balances[base], qty)
	}

	proceeds := qty * ticker.Last
	e.balances[base] -= qty
	if e.balances[base] <= 0 {
		delete(e.balances, base)
	}
	e.balances[QuoteAsset] += proceeds * (1 - emulatorFee)

	e.log.Infof("🎯 Emulator: sold %.8f %s at %.8f | Proceeds: %.2f %s", qty, symbol, ticker.Last, proceeds, QuoteAsset)
	return e.fill(symbol, SideSell, ticker.Last, qty), nil
}

func (e *EmulatorClient) fill(symbol string, side OrderSide, price, qty float64) *Order {
	return &Order{
		ID:            uuid.NewString(),
		ClientOrderID: uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Status:        OrderStatusFilled,
		Price:         price,
		Amount:        qty,
		Cost:          price * qty,
		Time:          e.now(),
	}
}

func (e *EmulatorClient) baseAsset(symbol string) string {
	if m, ok := e.markets[symbol]; ok && m.BaseAsset != "" {
		return m.BaseAsset
	}
	return strings.TrimSuffix(symbol, QuoteAsset)
}

// Close closes the wrapped market data client
func (e *EmulatorClient) Close() error {
	return e.baseAPI.Close()
}

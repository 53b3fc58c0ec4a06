package exchange

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap/zaptest"
)

type staticMarket struct {
	prices  map[string]float64
	markets []Market
	closed  bool
}

func (m *staticMarket) LoadMarkets(context.Context) ([]Market, error) { return m.markets, nil }

func (m *staticMarket) FetchOHLCV(context.Context, string, string, int) ([]Kline, error) {
	return nil, nil
}

func (m *staticMarket) FetchTicker(_ context.Context, symbol string) (*Ticker, error) {
	p, ok := m.prices[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return &Ticker{Symbol: symbol, Last: p}, nil
}

func (m *staticMarket) FetchBalance(context.Context) (Balances, error) { return Balances{}, nil }

func (m *staticMarket) CreateMarketBuyOrder(context.Context, string, float64) (*Order, error) {
	return nil, errors.New("not supported")
}

func (m *staticMarket) CreateMarketSellOrder(context.Context, string, float64) (*Order, error) {
	return nil, errors.New("not supported")
}

func (m *staticMarket) Close() error {
	m.closed = true
	return nil
}

func newTestEmulator(t *testing.T, balance float64) (*EmulatorClient, *staticMarket) {
	market := &staticMarket{
		prices: map[string]float64{"SOLUSDT": 20},
		markets: []Market{
			{Symbol: "SOLUSDT", BaseAsset: "SOL", QuoteAsset: "USDT", Trading: true, SpotTradingAllowed: true, StepSize: 0.01},
		},
	}
	emu := NewEmulatorClient(balance, market, zaptest.NewLogger(t).Sugar())
	if _, err := emu.LoadMarkets(context.Background()); err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	return emu, market
}

func TestEmulatorBuyAndSell(t *testing.T) {
	ctx := context.Background()
	emu, market := newTestEmulator(t, 100)

	buy, err := emu.CreateMarketBuyOrder(ctx, "SOLUSDT", 0.5059)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !buy.IsFilled() {
		t.Fatalf("buy status = %s, want FILLED", buy.Status)
	}
	if buy.Amount != 0.5 {
		t.Errorf("amount = %v, want 0.5 after step rounding", buy.Amount)
	}
	if buy.Price != 20 {
		t.Errorf("price = %v, want 20", buy.Price)
	}

	bal, _ := emu.FetchBalance(ctx)
	if got := bal.Free("SOL"); got != 0.5 {
		t.Errorf("SOL free = %v, want 0.5", got)
	}
	if got, want := bal.Free("USDT"), 100-10*(1+emulatorFee); math.Abs(got-want) > 1e-9 {
		t.Errorf("USDT free = %v, want %v", got, want)
	}

	market.prices["SOLUSDT"] = 22
	sell, err := emu.CreateMarketSellOrder(ctx, "SOLUSDT", 0.5)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !sell.IsFilled() || sell.Price != 22 {
		t.Errorf("sell = %+v, want filled at 22", sell)
	}

	bal, _ = emu.FetchBalance(ctx)
	if got := bal.Free("SOL"); got != 0 {
		t.Errorf("SOL free after sell = %v, want 0", got)
	}
}

func TestEmulatorRejectsOverspend(t *testing.T) {
	ctx := context.Background()
	emu, _ := newTestEmulator(t, 5)

	if _, err := emu.CreateMarketBuyOrder(ctx, "SOLUSDT", 1); !errors.Is(err, ErrExchange) {
		t.Fatalf("buy beyond balance: got %v, want ErrExchange", err)
	}
	if _, err := emu.CreateMarketSellOrder(ctx, "SOLUSDT", 1); !errors.Is(err, ErrExchange) {
		t.Fatalf("sell without holdings: got %v, want ErrExchange", err)
	}
	if _, err := emu.CreateMarketBuyOrder(ctx, "SOLUSDT", 0.001); !errors.Is(err, ErrExchange) {
		t.Fatalf("dust quantity: got %v, want ErrExchange", err)
	}

	bal, _ := emu.FetchBalance(ctx)
	if bal.Free("USDT") != 5 {
		t.Errorf("balance changed by rejected orders: %v", bal.Free("USDT"))
	}
}

func TestEmulatorBuysWithWholeFreeBalance(t *testing.T) {
	ctx := context.Background()
	emu, _ := newTestEmulator(t, 5)

	bal, _ := emu.FetchBalance(ctx)
	free := bal.Free("USDT")

	buy, err := emu.CreateMarketBuyOrder(ctx, "SOLUSDT", free/20)
	if err != nil {
		t.Fatalf("buy with the whole balance: %v", err)
	}
	if !buy.IsFilled() || buy.Amount != 0.24 {
		t.Errorf("buy = %+v, want filled 0.24 after fee headroom", buy)
	}

	bal, _ = emu.FetchBalance(ctx)
	if got := bal.Free("USDT"); got < 0 || math.Abs(got-(5-0.24*20*(1+emulatorFee))) > 1e-9 {
		t.Errorf("USDT free = %v", got)
	}
	if got := bal.Free("SOL"); got != 0.24 {
		t.Errorf("SOL free = %v, want 0.24", got)
	}
}

func TestEmulatorCloseClosesMarketData(t *testing.T) {
	emu, market := newTestEmulator(t, 1)
	if err := emu.Close(); err != nil {
		t.Fatal(err)
	}
	if !market.closed {
		t.Error("wrapped client not closed")
	}
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		amount, step float64
		want         string
	}{
		{0.5059, 0.01, "0.5"},
		{123.456, 1, "123"},
		{0.00012345, 0.00001, "0.00012"},
		{1.123456789, 0, "1.12345678"},
		{0.004, 0.01, "0"},
	}
	for _, tt := range tests {
		if got := RoundToStep(tt.amount, tt.step).String(); got != tt.want {
			t.Errorf("RoundToStep(%v, %v) = %s, want %s", tt.amount, tt.step, got, tt.want)
		}
	}
}

func TestOrderIsFilled(t *testing.T) {
	var nilOrder *Order
	if nilOrder.IsFilled() {
		t.Error("nil order reported filled")
	}
	for _, st := range []OrderStatus{OrderStatusNew, OrderStatusPartiallyFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired} {
		if (&Order{Status: st}).IsFilled() {
			t.Errorf("%s reported filled", st)
		}
	}
	if !(&Order{Status: OrderStatusFilled}).IsFilled() {
		t.Error("FILLED not reported filled")
	}
}

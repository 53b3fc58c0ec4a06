package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// QuoteAsset is the only quote currency the engine trades against
const QuoteAsset = "USDT"

// ErrExchange wraps every transport or API failure returned by a Client
var ErrExchange = errors.New("exchange error")

// Client is the exchange collaborator the engine depends on. Both the real
// spot adapter and the paper emulator implement it.
type Client interface {
	LoadMarkets(ctx context.Context) ([]Market, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]Kline, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	FetchBalance(ctx context.Context) (Balances, error)
	CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64) (*Order, error)
	CreateMarketSellOrder(ctx context.Context, symbol string, amount float64) (*Order, error)
	Close() error
}

type Kline struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Market describes one listed trading pair
type Market struct {
	Symbol             string
	BaseAsset          string
	QuoteAsset         string
	Trading            bool
	SpotTradingAllowed bool
	StepSize           float64 // lot size step, 0 when unknown
	MinQty             float64
}

type Ticker struct {
	Symbol             string
	Last               float64
	PriceChangePercent float64
	QuoteVolume        float64
}

type Balance struct {
	Free   float64
	Locked float64
}

// Balances is keyed by asset name
type Balances map[string]Balance

// Free returns the free amount of asset, 0 when the asset is not held
func (b Balances) Free(asset string) float64 {
	return b[asset].Free
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus mirrors the exchange's order status strings
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// Order is the exchange's answer to a market order
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Status        OrderStatus
	Price         float64 // average fill price
	Amount        float64 // executed base quantity
	Cost          float64 // executed quote quantity
	Time          time.Time
}

// IsFilled reports whether the order is confirmed completely filled
func (o *Order) IsFilled() bool {
	return o != nil && o.Status == OrderStatusFilled
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExchange, op, err)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

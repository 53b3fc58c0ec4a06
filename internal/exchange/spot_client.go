package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SpotClient - real Binance Spot client
type SpotClient struct {
	client  *binance.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	mu    sync.RWMutex
	steps map[string]float64 // symbol -> lot size step
}

func NewSpotClient(apiKey, secretKey string, testnet bool, log *zap.SugaredLogger) *SpotClient {
	if testnet {
		binance.UseTestnet = true
	}
	return &SpotClient{
		client:  binance.NewClient(apiKey, secretKey),
		limiter: rate.NewLimiter(rate.Limit(10), 20), // well under the 1200 weight/min budget
		log:     log,
		steps:   make(map[string]float64),
	}
}

func (s *SpotClient) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return wrap("rate limit", err)
	}
	return nil
}

func (s *SpotClient) LoadMarkets(ctx context.Context) ([]Market, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, wrap("exchange info", err)
	}

	markets := make([]Market, 0, len(info.Symbols))
	steps := make(map[string]float64, len(info.Symbols))
	for _, sym := range info.Symbols {
		m := Market{
			Symbol:             sym.Symbol,
			BaseAsset:          sym.BaseAsset,
			QuoteAsset:         sym.QuoteAsset,
			Trading:            sym.Status == "TRADING",
			SpotTradingAllowed: sym.IsSpotTradingAllowed,
		}
		if lot := sym.LotSizeFilter(); lot != nil {
			m.StepSize = parseFloat(lot.StepSize)
			m.MinQty = parseFloat(lot.MinQuantity)
		}
		steps[m.Symbol] = m.StepSize
		markets = append(markets, m)
	}

	s.mu.Lock()
	s.steps = steps
	s.mu.Unlock()

	return markets, nil
}

func (s *SpotClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]Kline, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, wrap("klines "+symbol, err)
	}

	result := make([]Kline, len(klines))
	for i, k := range klines {
		result[i] = Kline{
			OpenTime:  time.UnixMilli(k.OpenTime),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			CloseTime: time.UnixMilli(k.CloseTime),
		}
	}
	return result, nil
}

func (s *SpotClient) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, wrap("ticker "+symbol, err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("%w: no ticker data for %s", ErrExchange, symbol)
	}

	st := stats[0]
	return &Ticker{
		Symbol:             st.Symbol,
		Last:               parseFloat(st.LastPrice),
		PriceChangePercent: parseFloat(st.PriceChangePercent),
		QuoteVolume:        parseFloat(st.QuoteVolume),
	}, nil
}

func (s *SpotClient) FetchBalance(ctx context.Context) (Balances, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	account, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, wrap("account", err)
	}

	balances := make(Balances, len(account.Balances))
	for _, b := range account.Balances {
		free, locked := parseFloat(b.Free), parseFloat(b.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		balances[b.Asset] = Balance{Free: free, Locked: locked}
	}
	return balances, nil
}

func (s *SpotClient) CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64) (*Order, error) {
	return s.marketOrder(ctx, symbol, binance.SideTypeBuy, amount)
}

func (s *SpotClient) CreateMarketSellOrder(ctx context.Context, symbol string, amount float64) (*Order, error) {
	return s.marketOrder(ctx, symbol, binance.SideTypeSell, amount)
}

func (s *SpotClient) marketOrder(ctx context.Context, symbol string, side binance.SideType, amount float64) (*Order, error) {
	s.mu.RLock()
	step := s.steps[symbol]
	s.mu.RUnlock()

	qty := RoundToStep(amount, step)
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: quantity %.8f for %s rounds to zero (step %g)", ErrExchange, amount, symbol, step)
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := s.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(qty.String()).
		NewClientOrderID(uuid.NewString()).
		Do(ctx)
	if err != nil {
		return nil, wrap(fmt.Sprintf("%s %s %s", side, qty.String(), symbol), err)
	}

	executed := parseFloat(resp.ExecutedQuantity)
	cost := parseFloat(resp.CummulativeQuoteQuantity)
	order := &Order{
		ID:            strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          OrderSide(side),
		Status:        OrderStatus(resp.Status),
		Amount:        executed,
		Cost:          cost,
		Time:          time.UnixMilli(resp.TransactTime),
	}
	if executed > 0 {
		order.Price = cost / executed
	}

	s.log.Debugw("market order", "symbol", symbol, "side", side, "qty", qty.String(), "status", resp.Status)
	return order, nil
}

// Close releases idle keep-alive connections held by the HTTP client
func (s *SpotClient) Close() error {
	if s.client.HTTPClient != nil {
		s.client.HTTPClient.CloseIdleConnections()
	}
	return nil
}

// RoundToStep floors amount to a multiple of the lot step.
// A zero step leaves the amount at 8 decimals.
func RoundToStep(amount, step float64) decimal.Decimal {
	d := decimal.NewFromFloat(amount)
	if step <= 0 {
		return d.Truncate(8)
	}
	stepD := decimal.NewFromFloat(step)
	return d.Div(stepD).Floor().Mul(stepD)
}

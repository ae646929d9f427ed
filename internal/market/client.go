// Package market acquires candle, funding and open-interest snapshots from
// the upstream exchanges. It is a collaborator of the detection core: a
// failed or malformed snapshot skips the affected symbol's cycle, it never
// aborts the loop.
package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"btc-alerts/internal/models"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
)

// Source names used by the health tracker.
const (
	SourceBinanceFapi = "Binance fapi"
	SourceBinanceSpot = "Binance spot"
	SourceBybit       = "Bybit api"
)

// ErrUnavailable is returned when an upstream answered but the payload did
// not contain a usable value.
var ErrUnavailable = errors.New("market: data unavailable")

// Client wraps the Binance futures/spot clients plus the Bybit REST API.
type Client struct {
	fut    *futures.Client
	spot   *binance.Client
	http   *http.Client
	health *HealthTracker
}

// NewClient builds a public (keyless) market data client.
func NewClient(health *HealthTracker) *Client {
	return &Client{
		fut:    futures.NewClient("", ""),
		spot:   binance.NewClient("", ""),
		http:   &http.Client{Timeout: 12 * time.Second},
		health: health,
	}
}

// FuturesKlines fetches USDT-M futures candles.
func (c *Client) FuturesKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	kl, err := c.fut.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		c.health.RecordFailure(SourceBinanceFapi)
		return nil, fmt.Errorf("fapi klines %s %s: %w", symbol, interval, err)
	}
	c.health.RecordSuccess(SourceBinanceFapi)

	out := make([]models.Candle, 0, len(kl))
	for _, k := range kl {
		out = append(out, models.Candle{
			OpenTime: time.UnixMilli(k.OpenTime),
			Open:     models.SafeFloat(k.Open),
			High:     models.SafeFloat(k.High),
			Low:      models.SafeFloat(k.Low),
			Close:    models.SafeFloat(k.Close),
			Volume:   models.SafeFloat(k.Volume),
		})
	}
	return out, nil
}

// SpotKlines fetches spot candles (used for the ALT/BTC bias pairs).
func (c *Client) SpotKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	kl, err := c.spot.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		c.health.RecordFailure(SourceBinanceSpot)
		return nil, fmt.Errorf("spot klines %s %s: %w", symbol, interval, err)
	}
	c.health.RecordSuccess(SourceBinanceSpot)

	out := make([]models.Candle, 0, len(kl))
	for _, k := range kl {
		out = append(out, models.Candle{
			OpenTime: time.UnixMilli(k.OpenTime),
			Open:     models.SafeFloat(k.Open),
			High:     models.SafeFloat(k.High),
			Low:      models.SafeFloat(k.Low),
			Close:    models.SafeFloat(k.Close),
			Volume:   models.SafeFloat(k.Volume),
		})
	}
	return out, nil
}

// FundingRate returns the last funding rate from the premium index.
func (c *Client) FundingRate(ctx context.Context, symbol string) (float64, error) {
	rows, err := c.fut.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		c.health.RecordFailure(SourceBinanceFapi)
		return 0, fmt.Errorf("premium index %s: %w", symbol, err)
	}
	c.health.RecordSuccess(SourceBinanceFapi)
	if len(rows) == 0 {
		return 0, ErrUnavailable
	}
	return models.SafeFloat(rows[0].LastFundingRate), nil
}

// LastPrice returns the latest futures price for symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := c.fut.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		c.health.RecordFailure(SourceBinanceFapi)
		return 0, fmt.Errorf("list prices %s: %w", symbol, err)
	}
	c.health.RecordSuccess(SourceBinanceFapi)
	if len(prices) == 0 {
		return 0, ErrUnavailable
	}
	px := models.SafeFloat(prices[0].Price)
	if !(px > 0) {
		return 0, ErrUnavailable
	}
	return px, nil
}

// Package ticker supplies last-trade/mark prices to the execution loop.
package ticker

import (
	"context"
	"time"

	"btc-alerts/internal/market"
)

// PriceSource is what the executor ticks trades against. ok=false means no
// usable price for the symbol right now; the affected trades simply wait for
// the next poll.
type PriceSource interface {
	LastPrice(symbol string) (px float64, ok bool)
}

// RESTSource polls the futures ticker endpoint on demand.
type RESTSource struct {
	client  *market.Client
	timeout time.Duration
}

// NewRESTSource wraps the market client as a PriceSource.
func NewRESTSource(client *market.Client) *RESTSource {
	return &RESTSource{client: client, timeout: 10 * time.Second}
}

func (r *RESTSource) LastPrice(symbol string) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	px, err := r.client.LastPrice(ctx, symbol)
	if err != nil || !(px > 0) {
		return 0, false
	}
	return px, true
}

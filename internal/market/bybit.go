package market

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"

	"btc-alerts/internal/models"
)

const bybitAPI = "https://api.bybit.com"

// bybitOIResponse mirrors the subset of GET /v5/market/open-interest we use.
type bybitOIResponse struct {
	Result struct {
		List []struct {
			OpenInterest string `json:"openInterest"`
			Timestamp    string `json:"timestamp"`
		} `json:"list"`
	} `json:"result"`
}

// OIDelta15m returns the open-interest change over the trailing 15 minutes,
// derived from four 5-minute samples. Binance does not expose short-horizon
// OI history publicly, hence Bybit. ErrUnavailable means the regime
// classifier should fall back to its OI-agnostic branch.
func (c *Client) OIDelta15m(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("category", "linear")
	q.Set("symbol", symbol)
	q.Set("intervalTime", "5min")
	q.Set("limit", "4")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bybitAPI+"/v5/market/open-interest?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.health.RecordFailure(SourceBybit)
		return 0, fmt.Errorf("bybit open-interest %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.health.RecordFailure(SourceBybit)
		return 0, fmt.Errorf("bybit open-interest %s: HTTP %d", symbol, resp.StatusCode)
	}

	var body bybitOIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.health.RecordFailure(SourceBybit)
		return 0, fmt.Errorf("bybit open-interest %s: %w", symbol, err)
	}
	c.health.RecordSuccess(SourceBybit)

	type row struct {
		ts int64
		oi float64
	}
	rows := make([]row, 0, len(body.Result.List))
	for _, it := range body.Result.List {
		ts := models.SafeFloat(it.Timestamp)
		oi := models.SafeFloat(it.OpenInterest)
		if math.IsNaN(ts) || math.IsNaN(oi) {
			continue
		}
		rows = append(rows, row{ts: int64(ts), oi: oi})
	}
	if len(rows) < 2 {
		return 0, ErrUnavailable
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ts < rows[j].ts })
	return rows[len(rows)-1].oi - rows[0].oi, nil
}

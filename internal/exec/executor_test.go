package exec

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"btc-alerts/internal/models"
	"btc-alerts/internal/persistence"
	"btc-alerts/internal/signalog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPrices serves fixed prices per symbol.
type scriptedPrices struct {
	prices map[string]float64
}

func (s *scriptedPrices) LastPrice(symbol string) (float64, bool) {
	px, ok := s.prices[symbol]
	return px, ok
}

func testConfig(t *testing.T) *models.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &models.Config{}
	cfg.ApplyDefaults()
	cfg.SignalsFile = filepath.Join(dir, "signals.jsonl")
	cfg.PaperOutJSONL = filepath.Join(dir, "paper_trades.jsonl")
	cfg.PaperOutCSV = filepath.Join(dir, "paper_trades.csv")
	cfg.Leverage = 3
	cfg.RiskPct = 0.005
	cfg.StartEquity = 1000
	return cfg
}

func appendLongSignal(t *testing.T, path string) {
	t.Helper()
	app := signalog.NewAppender(path)
	require.NoError(t, app.Append(models.SignalEvent{
		Exchange:  "mexc",
		Market:    "futures",
		Symbol:    "BTC/USDT:USDT",
		SymbolRaw: "BTCUSDT",
		Setup:     "MEAN_REVERT_LOWER_TOUCH_LONG",
		Regime:    "RANGE_CHOP",
		Lower:     [2]float64{49800, 49840},
		Upper:     [2]float64{50160, 50200},
		Close:     49850,
		WidthPct:  0.64,
	}))
}

func newTestExecutor(t *testing.T, cfg *models.Config, prices *scriptedPrices) *Executor {
	t.Helper()
	repo, err := persistence.NewFileRepository(filepath.Join(t.TempDir(), "paper_state.json"))
	require.NoError(t, err)
	e, err := New(cfg, repo, prices)
	require.NoError(t, err)
	return e
}

func TestExecutorPlansFromSignal(t *testing.T) {
	cfg := testConfig(t)
	appendLongSignal(t, cfg.SignalsFile)

	e := newTestExecutor(t, cfg, &scriptedPrices{prices: map[string]float64{}})
	e.consumeSignals(time.Now())

	require.Len(t, e.state.OpenTrades, 1)
	for _, tr := range e.state.OpenTrades {
		assert.Equal(t, models.StatusPendingEntry, tr.Status)
		assert.Equal(t, "BTCUSDT", tr.SymbolRaw)
	}
	assert.Greater(t, e.state.Offset, int64(0))

	// Re-reading from offset zero must not double-plan: the dedup set holds.
	e.state.Offset = 0
	e.consumeSignals(time.Now())
	assert.Len(t, e.state.OpenTrades, 1)
}

func TestExecutorOpenCapPerSymbol(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxOpenPerSymbol = 1
	appendLongSignal(t, cfg.SignalsFile)
	time.Sleep(1100 * time.Millisecond) // distinct Ts so dedup does not collapse them
	appendLongSignal(t, cfg.SignalsFile)

	e := newTestExecutor(t, cfg, &scriptedPrices{prices: map[string]float64{}})
	e.consumeSignals(time.Now())
	assert.Len(t, e.state.OpenTrades, 1)
}

func TestExecutorFillAndSettle(t *testing.T) {
	cfg := testConfig(t)
	appendLongSignal(t, cfg.SignalsFile)

	prices := &scriptedPrices{prices: map[string]float64{"BTCUSDT": 49840}}
	e := newTestExecutor(t, cfg, prices)

	now := time.Now()
	e.consumeSignals(now)
	e.tickTrades(now) // fills at the entry

	var tr *models.Trade
	for _, v := range e.state.OpenTrades {
		tr = v
	}
	require.NotNil(t, tr)
	require.Equal(t, models.StatusOpen, tr.Status)

	// Price collapses through the stop: trade settles, equity drops, a
	// record row is written.
	prices.prices["BTCUSDT"] = 49000
	e.tickTrades(now.Add(time.Minute))

	assert.Empty(t, e.state.OpenTrades)
	assert.True(t, e.ledger.Equity().LessThan(decimal.NewFromInt(1000)))

	data, err := os.ReadFile(cfg.PaperOutJSONL)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"close_reason":"SL"`)

	_, err = os.Stat(cfg.PaperOutCSV)
	assert.NoError(t, err)
}

func TestExecutorPersistRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	appendLongSignal(t, cfg.SignalsFile)

	statePath := filepath.Join(t.TempDir(), "paper_state.json")
	repo, err := persistence.NewFileRepository(statePath)
	require.NoError(t, err)

	e, err := New(cfg, repo, &scriptedPrices{prices: map[string]float64{}})
	require.NoError(t, err)
	e.consumeSignals(time.Now())
	e.persist()
	require.NoError(t, repo.Close())

	// A fresh executor resumes with the same cursor, trades and dedup keys,
	// so the already consumed event is not planned again.
	repo2, err := persistence.NewFileRepository(statePath)
	require.NoError(t, err)
	e2, err := New(cfg, repo2, &scriptedPrices{prices: map[string]float64{}})
	require.NoError(t, err)

	assert.Equal(t, e.state.Offset, e2.state.Offset)
	assert.Len(t, e2.state.OpenTrades, 1)
	e2.state.Offset = 0
	e2.consumeSignals(time.Now())
	assert.Len(t, e2.state.OpenTrades, 1)
}

func TestExecutorMissingPriceLeavesTradeUntouched(t *testing.T) {
	cfg := testConfig(t)
	appendLongSignal(t, cfg.SignalsFile)

	e := newTestExecutor(t, cfg, &scriptedPrices{prices: map[string]float64{}})
	now := time.Now()
	e.consumeSignals(now)
	e.tickTrades(now)

	for _, tr := range e.state.OpenTrades {
		assert.Equal(t, models.StatusPendingEntry, tr.Status)
	}
}

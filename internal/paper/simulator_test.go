package paper

import (
	"testing"
	"time"

	"btc-alerts/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simStart = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func newLongTrade() *models.Trade {
	return &models.Trade{
		TsCreated: simStart.Format(time.RFC3339),
		TradeID:   "t1",
		SymbolRaw: "BTCUSDT",
		Side:      models.Long,
		Status:    models.StatusPendingEntry,
		Entry:     d(100),
		SL:        d(95),
		TP1:       d(103),
		TP2:       d(108),
		Qty:       d(10),
	}
}

func newSimulator() *Simulator {
	return NewSimulator(SimConfig{
		EntryTimeout: 30 * time.Minute,
		TP1CloseFrac: d(0.5),
		MoveSLToBE:   false,
		StopFillMode: StopFillCap,
	})
}

func TestFillThenCappedStop(t *testing.T) {
	sim := newSimulator()
	tr := newLongTrade()

	// No event above the entry.
	out := sim.Tick(tr, d(101), simStart.Add(time.Minute))
	assert.Empty(t, out.Event)
	assert.Equal(t, models.StatusPendingEntry, tr.Status)

	out = sim.Tick(tr, d(100), simStart.Add(2*time.Minute))
	assert.Equal(t, EventFill, out.Event)
	assert.Equal(t, models.StatusOpen, tr.Status)
	assert.True(t, tr.FilledEntry.Equal(d(100)))
	assert.True(t, tr.FilledQty.Equal(d(10)))

	// A gap through the stop fills at the stop price, not the tick.
	out = sim.Tick(tr, d(90), simStart.Add(3*time.Minute))
	assert.Equal(t, EventSL, out.Event)
	assert.True(t, out.Closed)
	assert.True(t, out.ExitPrice.Equal(d(95)))
	assert.Equal(t, models.StatusClosed, tr.Status)
	assert.Equal(t, models.CloseReasonSL, tr.CloseReason)
	// (95-100)*10 = -50
	assert.True(t, tr.PnlUSDT.Equal(d(-50)))
}

func TestMarketStopFillsAtTick(t *testing.T) {
	sim := NewSimulator(SimConfig{
		EntryTimeout: 30 * time.Minute,
		TP1CloseFrac: d(0.5),
		StopFillMode: StopFillMarket,
	})
	tr := newLongTrade()
	sim.Tick(tr, d(100), simStart.Add(time.Minute))

	out := sim.Tick(tr, d(90), simStart.Add(2*time.Minute))
	assert.True(t, out.ExitPrice.Equal(d(90)))
	assert.True(t, tr.PnlUSDT.Equal(d(-100)))
}

func TestPartialTP1ThenTP2(t *testing.T) {
	sim := newSimulator()
	tr := newLongTrade()
	sim.Tick(tr, d(100), simStart.Add(time.Minute))

	out := sim.Tick(tr, d(103), simStart.Add(2*time.Minute))
	assert.Equal(t, EventTP1, out.Event)
	assert.False(t, out.Closed)
	assert.True(t, tr.TP1Hit)
	assert.True(t, tr.FilledQty.Equal(d(5)))
	assert.True(t, tr.TP1QtyClosed.Equal(d(5)))
	// (103-100)*5 = 15
	assert.True(t, tr.PnlUSDT.Equal(d(15)))

	// TP1 never fires twice.
	out = sim.Tick(tr, d(103), simStart.Add(3*time.Minute))
	assert.Empty(t, out.Event)

	out = sim.Tick(tr, d(108), simStart.Add(4*time.Minute))
	assert.Equal(t, EventTP2, out.Event)
	assert.True(t, out.Closed)
	assert.Equal(t, models.CloseReasonTP2, tr.CloseReason)
	// 15 + (108-100)*5 = 55
	assert.True(t, tr.PnlUSDT.Equal(d(55)))
	assert.True(t, tr.FilledQty.IsZero())
}

func TestEntryTimeoutCancels(t *testing.T) {
	sim := newSimulator()
	tr := newLongTrade()

	out := sim.Tick(tr, d(101), simStart.Add(29*time.Minute))
	assert.Empty(t, out.Event)

	out = sim.Tick(tr, d(101), simStart.Add(30*time.Minute))
	assert.Equal(t, EventCancel, out.Event)
	assert.True(t, out.Canceled)
	assert.Equal(t, models.StatusCanceled, tr.Status)
	assert.Equal(t, "ENTRY_TIMEOUT_1800s", tr.CloseReason)
	assert.True(t, tr.PnlUSDT.IsZero())
}

func TestStopBeforeTargetOnSameTick(t *testing.T) {
	// A tick at or beyond both levels resolves as the protective exit.
	sim := newSimulator()
	tr := newLongTrade()
	sim.Tick(tr, d(100), simStart.Add(time.Minute))

	tr.SL = d(102)
	tr.TP1 = d(102)
	out := sim.Tick(tr, d(102), simStart.Add(2*time.Minute))
	assert.Equal(t, EventSL, out.Event)
}

func TestBreakevenMoveAfterTP1(t *testing.T) {
	sim := NewSimulator(SimConfig{
		EntryTimeout: 30 * time.Minute,
		TP1CloseFrac: d(0.5),
		MoveSLToBE:   true,
		BEBufferPct:  d(0.0001),
		StopFillMode: StopFillCap,
	})
	tr := newLongTrade()
	sim.Tick(tr, d(100), simStart.Add(time.Minute))
	sim.Tick(tr, d(103), simStart.Add(2*time.Minute))

	// Long breakeven stop = entry*(1+buffer).
	assert.True(t, tr.SL.Equal(d(100.01)), "got %s", tr.SL)

	out := sim.Tick(tr, d(100), simStart.Add(3*time.Minute))
	assert.Equal(t, EventSL, out.Event)
	// 15 + (100.01-100)*5 = 15.05
	assert.True(t, tr.PnlUSDT.Equal(d(15.05)), "got %s", tr.PnlUSDT)
}

func TestTP1FullCloseEdge(t *testing.T) {
	sim := NewSimulator(SimConfig{
		EntryTimeout: 30 * time.Minute,
		TP1CloseFrac: d(1.0),
		StopFillMode: StopFillCap,
	})
	tr := newLongTrade()
	sim.Tick(tr, d(100), simStart.Add(time.Minute))

	out := sim.Tick(tr, d(103), simStart.Add(2*time.Minute))
	assert.Equal(t, EventTP1Full, out.Event)
	assert.True(t, out.Closed)
	assert.Equal(t, models.CloseReasonTP1Full, tr.CloseReason)
	assert.True(t, tr.PnlUSDT.Equal(d(30)))
}

func TestShortTradeLifecycle(t *testing.T) {
	sim := newSimulator()
	tr := &models.Trade{
		TsCreated: simStart.Format(time.RFC3339),
		TradeID:   "t2",
		SymbolRaw: "BTCUSDT",
		Side:      models.Short,
		Status:    models.StatusPendingEntry,
		Entry:     d(100),
		SL:        d(105),
		TP1:       d(97),
		TP2:       d(92),
		Qty:       d(10),
	}

	// Short entry fills when price rises to the limit.
	out := sim.Tick(tr, d(99), simStart.Add(time.Minute))
	assert.Empty(t, out.Event)
	out = sim.Tick(tr, d(100.5), simStart.Add(2*time.Minute))
	assert.Equal(t, EventFill, out.Event)

	out = sim.Tick(tr, d(97), simStart.Add(3*time.Minute))
	assert.Equal(t, EventTP1, out.Event)
	// Short pnl = (entry-exit)*qty = (100-97)*5 = 15
	assert.True(t, tr.PnlUSDT.Equal(d(15)))

	out = sim.Tick(tr, d(92), simStart.Add(4*time.Minute))
	assert.Equal(t, EventTP2, out.Event)
	assert.True(t, tr.PnlUSDT.Equal(d(55)))
}

func TestTerminalTradesAreInert(t *testing.T) {
	sim := newSimulator()
	tr := newLongTrade()
	sim.Tick(tr, d(100), simStart.Add(time.Minute))
	sim.Tick(tr, d(90), simStart.Add(2*time.Minute))
	require.Equal(t, models.StatusClosed, tr.Status)

	before := *tr
	for _, px := range []float64{80, 103, 108, 120} {
		out := sim.Tick(tr, d(px), simStart.Add(3*time.Minute))
		assert.Empty(t, out.Event)
	}
	assert.Equal(t, before.Status, tr.Status)
	assert.True(t, before.PnlUSDT.Equal(tr.PnlUSDT))
	assert.Equal(t, before.CloseReason, tr.CloseReason)
}

func TestOneEventPerTick(t *testing.T) {
	// A pending trade whose first tick gaps through entry, TP1 and TP2 only
	// fills; targets wait for the next tick.
	sim := newSimulator()
	tr := newLongTrade()

	out := sim.Tick(tr, d(95.5), simStart.Add(time.Minute))
	assert.Equal(t, EventFill, out.Event)
	assert.Equal(t, models.StatusOpen, tr.Status)
	assert.True(t, tr.PnlUSDT.IsZero())
}

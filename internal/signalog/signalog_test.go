package signalog

import (
	"os"
	"path/filepath"
	"testing"

	"btc-alerts/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(setup string) models.SignalEvent {
	oi := -300.0
	return models.SignalEvent{
		Exchange:  "mexc",
		Market:    "futures",
		Symbol:    "BTC/USDT:USDT",
		SymbolRaw: "BTCUSDT",
		Setup:     setup,
		Regime:    "RANGE_CHOP",
		Lower:     [2]float64{49800, 49840},
		Upper:     [2]float64{50160, 50200},
		Close:     49850,
		WidthPct:  0.64,
		OI15m:     &oi,
	}
}

func TestAppendAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.jsonl")
	app := NewAppender(path)
	tail := NewTailer(path)

	require.NoError(t, app.Append(testEvent("MEAN_REVERT_LOWER_TOUCH_LONG")))
	require.NoError(t, app.Append(testEvent("MEAN_REVERT_UPPER_TOUCH_SHORT")))

	off, events, err := tail.ReadFrom(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "MEAN_REVERT_LOWER_TOUCH_LONG", events[0].Setup)
	assert.Equal(t, "BTCUSDT", events[0].SymbolRaw)
	assert.NotEmpty(t, events[0].Ts, "appender must stamp the timestamp")
	require.NotNil(t, events[0].OI15m)
	assert.Equal(t, -300.0, *events[0].OI15m)
	assert.Greater(t, off, int64(0))

	// Nothing new: same offset, no events.
	off2, events, err := tail.ReadFrom(off)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, off, off2)

	// A third append is picked up from the saved offset.
	require.NoError(t, app.Append(testEvent("MEAN_REVERT_LOWER_TOUCH_LONG")))
	_, events, err = tail.ReadFrom(off)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestTailMissingFile(t *testing.T) {
	tail := NewTailer(filepath.Join(t.TempDir(), "absent.jsonl"))
	off, events, err := tail.ReadFrom(42)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(42), off)
}

func TestTailSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.jsonl")
	app := NewAppender(path)

	require.NoError(t, app.Append(testEvent("A")))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, app.Append(testEvent("B")))

	off, events, err := NewTailer(path).ReadFrom(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Setup)
	assert.Equal(t, "B", events[1].Setup)

	// The malformed line still advanced the offset.
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), off)
}

func TestTailLeavesIncompleteLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.jsonl")
	app := NewAppender(path)
	require.NoError(t, app.Append(testEvent("A")))

	off, events, err := NewTailer(path).ReadFrom(0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// A partially written line (no trailing newline) must not be consumed.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"symbol_raw":"BTCUS`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	off2, events, err := NewTailer(path).ReadFrom(off)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, off, off2)
}

func TestDedupSetBoundedFIFO(t *testing.T) {
	d := NewDedupSet(3, nil)

	assert.True(t, d.Accept("a"))
	assert.False(t, d.Accept("a"))
	assert.True(t, d.Accept("b"))
	assert.True(t, d.Accept("c"))

	// "d" evicts "a", which then reads as unseen again.
	assert.True(t, d.Accept("d"))
	assert.Equal(t, []string{"b", "c", "d"}, d.Keys())
	assert.True(t, d.Accept("a"))
}

func TestDedupSetSeedRoundTrip(t *testing.T) {
	d := NewDedupSet(10, []string{"x", "y"})
	assert.False(t, d.Accept("x"))
	assert.True(t, d.Accept("z"))

	d2 := NewDedupSet(10, d.Keys())
	assert.False(t, d2.Accept("z"))
}

func TestEventKey(t *testing.T) {
	evt := testEvent("MEAN_REVERT_LOWER_TOUCH_LONG")
	evt.Ts = "2026-08-01T12:00:00Z"
	assert.Equal(t, "2026-08-01T12:00:00Z|BTCUSDT|MEAN_REVERT_LOWER_TOUCH_LONG", EventKey(evt))
}

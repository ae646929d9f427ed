package engine

import (
	"math"
	"testing"
	"time"

	"btc-alerts/internal/models"

	"github.com/stretchr/testify/assert"
)

// stubBias returns canned 15m changes per bias pair.
type stubBias struct {
	changes map[string]float64
}

func (s *stubBias) PxChange15m(symbol string) (float64, bool) {
	ch, ok := s.changes[symbol]
	return ch, ok
}

func newTestGate(bias BiasSource) *Gate {
	return NewGate(GateConfig{
		MeanRevertMaxWidthPct: 0.45,
		OIContraFilter:        true,
		OIContraMinAbs:        150,
		WatchAltBTC:           []string{"ETHBTC"},
		AltBTCBiasPct:         0.03,
		Cooldown:              30 * time.Minute,
	}, bias)
}

func TestAllowedTable(t *testing.T) {
	g := newTestGate(nil)

	// Transition and unknown admit nothing, including sweeps.
	for _, rk := range []models.RegimeKey{models.RegimeTransition, models.RegimeUnknown} {
		for _, setup := range []string{
			models.SetupSweepReclaimShort, models.SetupSweepReclaimLong,
			models.SetupMeanRevertShort, models.SetupMeanRevertLong,
		} {
			assert.False(t, g.Allowed(rk, setup), "%s should block %s", rk, setup)
		}
	}

	// Squeeze and unwind admit only the matching-direction sweep.
	assert.True(t, g.Allowed(models.RegimeShortSqueeze, models.SetupSweepReclaimShort))
	assert.False(t, g.Allowed(models.RegimeShortSqueeze, models.SetupSweepReclaimLong))
	assert.False(t, g.Allowed(models.RegimeShortSqueeze, models.SetupMeanRevertShort))
	assert.True(t, g.Allowed(models.RegimeLongUnwind, models.SetupSweepReclaimLong))
	assert.False(t, g.Allowed(models.RegimeLongUnwind, models.SetupSweepReclaimShort))

	// Range admits all four.
	assert.True(t, g.Allowed(models.RegimeRange, models.SetupMeanRevertLong))
	assert.True(t, g.Allowed(models.RegimeRange, models.SetupSweepReclaimShort))
}

func TestMeanRevertWidthCap(t *testing.T) {
	g := newTestGate(nil)

	wide := models.Zones{WidthPct: 0.46}
	ok, reason := g.MeanRevertOK(wide, math.NaN(), models.Long)
	assert.False(t, ok)
	assert.Contains(t, reason, "width")

	// Exactly at the cap passes.
	atCap := models.Zones{WidthPct: 0.45}
	ok, _ = g.MeanRevertOK(atCap, math.NaN(), models.Long)
	assert.True(t, ok)
}

func TestMeanRevertOIContra(t *testing.T) {
	g := newTestGate(nil)
	z := models.Zones{WidthPct: 0.2}

	// Missing OI degrades to pass-through.
	ok, _ := g.MeanRevertOK(z, math.NaN(), models.Long)
	assert.True(t, ok)

	// Too small in magnitude blocks either direction.
	ok, _ = g.MeanRevertOK(z, 100, models.Long)
	assert.False(t, ok)
	ok, _ = g.MeanRevertOK(z, -100, models.Short)
	assert.False(t, ok)

	// LONG wants the OI flushing out, SHORT wants it crowding in.
	ok, _ = g.MeanRevertOK(z, -200, models.Long)
	assert.True(t, ok)
	ok, _ = g.MeanRevertOK(z, +200, models.Long)
	assert.False(t, ok)
	ok, _ = g.MeanRevertOK(z, +200, models.Short)
	assert.True(t, ok)
	ok, _ = g.MeanRevertOK(z, -200, models.Short)
	assert.False(t, ok)
}

func TestMeanRevertOIContraAligned(t *testing.T) {
	g := NewGate(GateConfig{
		MeanRevertMaxWidthPct: 0.45,
		OIContraFilter:        true,
		OIContraMinAbs:        150,
		OIContraAligned:       true,
	}, nil)
	z := models.Zones{WidthPct: 0.2}

	// The aligned policy flips the sign convention.
	ok, _ := g.MeanRevertOK(z, +200, models.Long)
	assert.True(t, ok)
	ok, _ = g.MeanRevertOK(z, -200, models.Long)
	assert.False(t, ok)
}

func TestAltBTCBias(t *testing.T) {
	bias := &stubBias{changes: map[string]float64{"ETHBTC": -0.10}}
	g := newTestGate(bias)

	// ETH deeply underperforming BTC blocks longs, allows shorts.
	ok, reason, ch := g.AltBTCBiasOK("ETHUSDT", models.Long)
	assert.False(t, ok)
	assert.Contains(t, reason, "ETHBTC")
	assert.InDelta(t, -0.10, ch, 1e-9)

	ok, _, _ = g.AltBTCBiasOK("ETHUSDT", models.Short)
	assert.True(t, ok)

	// Within tolerance both directions pass.
	bias.changes["ETHBTC"] = 0.01
	ok, _, _ = g.AltBTCBiasOK("ETHUSDT", models.Long)
	assert.True(t, ok)
	ok, _, _ = g.AltBTCBiasOK("ETHUSDT", models.Short)
	assert.True(t, ok)

	// Unwatched pair is neutral.
	ok, _, ch = g.AltBTCBiasOK("SOLUSDT", models.Long)
	assert.True(t, ok)
	assert.True(t, math.IsNaN(ch))

	// Unavailable data is neutral, not blocking.
	delete(bias.changes, "ETHBTC")
	ok, reason, _ = g.AltBTCBiasOK("ETHUSDT", models.Long)
	assert.True(t, ok)
	assert.Contains(t, reason, "n/a")
}

func TestCooldown(t *testing.T) {
	g := newTestGate(nil)
	now := time.Now()

	assert.True(t, g.CooldownOK("BTCUSDT", models.SetupMeanRevertLong, now))
	g.MarkEmitted("BTCUSDT", models.SetupMeanRevertLong, now)

	assert.False(t, g.CooldownOK("BTCUSDT", models.SetupMeanRevertLong, now.Add(29*time.Minute)))
	assert.True(t, g.CooldownOK("BTCUSDT", models.SetupMeanRevertLong, now.Add(30*time.Minute)))

	// Independent per symbol and per setup key.
	assert.True(t, g.CooldownOK("ETHUSDT", models.SetupMeanRevertLong, now))
	assert.True(t, g.CooldownOK("BTCUSDT", models.SetupMeanRevertShort, now))
}

func TestCooldownSnapshotRoundTrip(t *testing.T) {
	g := newTestGate(nil)
	now := time.Now().Truncate(time.Second)
	g.MarkEmitted("BTCUSDT", models.SetupMeanRevertLong, now)

	snap := g.CooldownSnapshot()
	assert.Equal(t, now.Unix(), snap["BTCUSDT:"+models.SetupMeanRevertLong])

	g2 := newTestGate(nil)
	g2.SeedCooldowns(snap)
	assert.False(t, g2.CooldownOK("BTCUSDT", models.SetupMeanRevertLong, now.Add(time.Minute)))
	assert.True(t, g2.CooldownOK("BTCUSDT", models.SetupMeanRevertLong, now.Add(31*time.Minute)))
}

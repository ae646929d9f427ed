package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"btc-alerts/internal/models"
)

// AllowedSetups maps each regime key to the setup keys eligible in that
// regime. Sweep setups are allowed in squeeze/unwind regimes only for the
// matching direction; ranging and deleveraging allow everything; transition
// and unknown allow nothing.
var AllowedSetups = map[models.RegimeKey]map[string]bool{
	models.RegimeShortSqueeze: {models.SetupSweepReclaimShort: true},
	models.RegimeLongUnwind:   {models.SetupSweepReclaimLong: true},
	models.RegimeRange: {
		models.SetupSweepReclaimShort: true,
		models.SetupSweepReclaimLong:  true,
		models.SetupMeanRevertShort:   true,
		models.SetupMeanRevertLong:    true,
	},
	models.RegimeDeleveraging: {
		models.SetupSweepReclaimShort: true,
		models.SetupSweepReclaimLong:  true,
		models.SetupMeanRevertShort:   true,
		models.SetupMeanRevertLong:    true,
	},
	models.RegimeTransition: {},
	models.RegimeUnknown:    {},
}

// IsMeanRevert reports whether the setup key is one of the mean-revert pair.
func IsMeanRevert(setupKey string) bool {
	return setupKey == models.SetupMeanRevertLong || setupKey == models.SetupMeanRevertShort
}

// BiasSource supplies the 15m percent change of a cross-asset bias pair
// (e.g. ETHBTC). ok=false means the pair's data is unavailable right now,
// which the gate treats as neutral.
type BiasSource interface {
	PxChange15m(symbol string) (change float64, ok bool)
}

// GateConfig carries the tunable filter policy.
type GateConfig struct {
	MeanRevertMaxWidthPct float64
	OIContraFilter        bool
	OIContraMinAbs        float64
	// OIContraAligned flips the contra sign convention: by default LONG wants
	// the open interest flushing out (OIΔ <= -min) and SHORT wants it
	// crowding in (OIΔ >= +min). This is strategy policy, not an invariant.
	OIContraAligned bool
	WatchAltBTC     []string
	AltBTCBiasPct   float64
	Cooldown        time.Duration
}

// Gate applies regime eligibility, mean-revert quality filters, the ALT/BTC
// bias gate and the per-(symbol,setup) cooldown. Only signals surviving all
// stages become emitted events.
type Gate struct {
	cfg         GateConfig
	bias        BiasSource
	watched     map[string]bool
	lastSetupAt map[string]time.Time // "SYMBOL:SETUP_KEY" -> last emission
}

// NewGate builds a gate. bias may be nil when no cross-asset filter source
// is wired (every bias check then passes).
func NewGate(cfg GateConfig, bias BiasSource) *Gate {
	watched := make(map[string]bool, len(cfg.WatchAltBTC))
	for _, s := range cfg.WatchAltBTC {
		watched[strings.ToUpper(s)] = true
	}
	return &Gate{
		cfg:         cfg,
		bias:        bias,
		watched:     watched,
		lastSetupAt: make(map[string]time.Time),
	}
}

// Allowed checks the regime-eligibility table.
func (g *Gate) Allowed(regimeKey models.RegimeKey, setupKey string) bool {
	return AllowedSetups[regimeKey][setupKey]
}

// MeanRevertOK applies the quality filters for mean-revert setups: the zone
// width cap, then (when enabled and OI data is present) the open-interest
// contra confirmation. oi15m is NaN when the OI source was unavailable.
func (g *Gate) MeanRevertOK(z models.Zones, oi15m float64, direction models.Side) (bool, string) {
	if z.WidthPct > g.cfg.MeanRevertMaxWidthPct {
		return false, fmt.Sprintf("blocked: width %.2f%% > %.2f%%", z.WidthPct, g.cfg.MeanRevertMaxWidthPct)
	}

	if !g.cfg.OIContraFilter || math.IsNaN(oi15m) {
		return true, "ok"
	}

	minAbs := g.cfg.OIContraMinAbs
	if math.Abs(oi15m) < minAbs {
		return false, fmt.Sprintf("blocked: |OIΔ| %.0f < %.0f", math.Abs(oi15m), minAbs)
	}

	longWantsDrop := !g.cfg.OIContraAligned
	wantsDrop := (direction == models.Long) == longWantsDrop
	if wantsDrop && oi15m > -minAbs {
		return false, fmt.Sprintf("blocked: OIΔ %+.0f not <= -%.0f", oi15m, minAbs)
	}
	if !wantsDrop && oi15m < +minAbs {
		return false, fmt.Sprintf("blocked: OIΔ %+.0f not >= +%.0f", oi15m, minAbs)
	}

	return true, "ok"
}

// AltBTCBiasOK applies the cross-asset bias gate for a secondary USDT pair.
// ETHUSDT is judged by ETHBTC when that pair is watched; an untracked pair or
// unavailable data is neutral. The returned change is NaN when no bias value
// was consulted.
func (g *Gate) AltBTCBiasOK(altSymbolUSDT string, direction models.Side) (bool, string, float64) {
	s := strings.ToUpper(strings.TrimSpace(altSymbolUSDT))
	if !strings.HasSuffix(s, "USDT") {
		return true, "ok", math.NaN()
	}
	altBTC := s[:len(s)-4] + "BTC"
	if !g.watched[altBTC] || g.bias == nil {
		return true, "ok", math.NaN()
	}

	ch, ok := g.bias.PxChange15m(altBTC)
	if !ok || math.IsNaN(ch) {
		return true, "ok (altbtc n/a)", math.NaN()
	}

	tol := g.cfg.AltBTCBiasPct
	if direction == models.Long && ch < -tol {
		return false, fmt.Sprintf("blocked: %s px15m %+.2f%% < -%.2f%%", altBTC, ch, tol), ch
	}
	if direction == models.Short && ch > +tol {
		return false, fmt.Sprintf("blocked: %s px15m %+.2f%% > +%.2f%%", altBTC, ch, tol), ch
	}
	return true, "ok", ch
}

// CooldownOK reports whether the (symbol, setup) pair is outside its minimum
// re-emission interval.
func (g *Gate) CooldownOK(symbol, setupKey string, now time.Time) bool {
	last, seen := g.lastSetupAt[cooldownKey(symbol, setupKey)]
	return !seen || now.Sub(last) >= g.cfg.Cooldown
}

// MarkEmitted records an emission for cooldown purposes.
func (g *Gate) MarkEmitted(symbol, setupKey string, now time.Time) {
	g.lastSetupAt[cooldownKey(symbol, setupKey)] = now
}

// SeedCooldowns restores the cooldown map from persisted unix timestamps.
func (g *Gate) SeedCooldowns(lastSetupTs map[string]int64) {
	for k, ts := range lastSetupTs {
		g.lastSetupAt[k] = time.Unix(ts, 0)
	}
}

// CooldownSnapshot exports the cooldown map as unix timestamps for
// persistence.
func (g *Gate) CooldownSnapshot() map[string]int64 {
	out := make(map[string]int64, len(g.lastSetupAt))
	for k, t := range g.lastSetupAt {
		out[k] = t.Unix()
	}
	return out
}

func cooldownKey(symbol, setupKey string) string {
	return symbol + ":" + setupKey
}

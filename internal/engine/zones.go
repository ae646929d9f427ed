// Package engine contains the regime/setup detection core: windowed zone
// statistics, regime classification, setup geometry and signal gating. All
// functions here are pure; the surrounding loops own state and side effects.
package engine

import (
	"errors"
	"math"

	"btc-alerts/internal/models"
)

// ErrZonesUnavailable is returned when the candle window cannot produce
// zones (empty window, or no candle with a positive close).
var ErrZonesUnavailable = errors.New("zones unavailable for candle window")

// DefaultZoneLookback is the target 1m window for zone derivation.
const DefaultZoneLookback = 180

// minZoneWindow is the floor applied to the lookback.
const minZoneWindow = 60

// ComputeZones derives the support/resistance band pair from the most recent
// candles. The band padding is max(0.25*ATR, 0.0007*lastClose); atr may be
// NaN when the volatility estimate is unavailable, in which case only the
// price-relative floor applies.
func ComputeZones(candles []models.Candle, atr float64, lookback int) (models.Zones, error) {
	if len(candles) == 0 {
		return models.Zones{}, ErrZonesUnavailable
	}
	n := lookback
	if n < minZoneWindow {
		n = minZoneWindow
	}
	if n > len(candles) {
		n = len(candles)
	}
	sample := candles[len(candles)-n:]

	recentHigh := math.Inf(-1)
	recentLow := math.Inf(1)
	lastClose := math.NaN()
	for _, c := range sample {
		if c.High > recentHigh {
			recentHigh = c.High
		}
		if c.Low < recentLow {
			recentLow = c.Low
		}
		if c.Close > 0 {
			lastClose = c.Close
		}
	}
	if math.IsNaN(lastClose) {
		return models.Zones{}, ErrZonesUnavailable
	}

	pad := 0.0
	if !math.IsNaN(atr) && atr > 0 {
		pad = atr * 0.25
	}
	pad = math.Max(pad, lastClose*0.0007)

	z := models.Zones{
		UpperHi: recentHigh,
		UpperLo: recentHigh - pad,
		LowerLo: recentLow,
		LowerHi: recentLow + pad,
	}
	width := math.Max(0, z.UpperLo-z.LowerHi)
	z.WidthPct = width / lastClose * 100.0
	return z, nil
}

// ATR returns the average true range over the trailing period. The input is
// expected to be a coarser timeframe than the zone window (15m bars against
// a 1m window). Returns NaN when there are not enough candles.
func ATR(candles []models.Candle, period int) float64 {
	if len(candles) < period+2 {
		return math.NaN()
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		h, l, pc := candles[i].High, candles[i].Low, candles[i-1].Close
		tr := math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
		trs = append(trs, tr)
	}
	recent := trs[len(trs)-period:]
	sum := 0.0
	for _, tr := range recent {
		sum += tr
	}
	return sum / float64(len(recent))
}

// PxChange15m computes the 15-minute percent price change from a 1m candle
// series (close now vs close 15 bars earlier). Returns NaN when the series is
// too short or the closes are not positive.
func PxChange15m(candles []models.Candle) float64 {
	if len(candles) < 20 {
		return math.NaN()
	}
	closeNow := candles[len(candles)-1].Close
	close15m := candles[len(candles)-16].Close
	if closeNow <= 0 || close15m <= 0 {
		return math.NaN()
	}
	return (closeNow/close15m - 1.0) * 100.0
}

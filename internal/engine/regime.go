package engine

import (
	"math"
	"strings"

	"btc-alerts/internal/models"
)

// Classification thresholds. Fixed constants of the design; the surrounding
// configuration surface tunes filters, not these.
const (
	rangeMaxWidthPct = 0.30
	rangeMaxAbsPx    = 0.25
	rangeMaxAbsOI    = 200
	unwindMinOIDrop  = -250
	unwindMaxPx      = -0.20
	squeezeMinPx     = 0.20
)

// ClassifyRegime combines the 15m price change, the 15m open-interest delta
// and the zone width into a free-text regime label. NaN inputs mean
// "unavailable": a missing price or width yields UNKNOWN, a missing OI delta
// degrades to the OI-agnostic branch. First matching predicate wins.
func ClassifyRegime(px15m, oi15m, widthPct float64) string {
	if math.IsNaN(px15m) || math.IsNaN(widthPct) {
		return "UNKNOWN"
	}
	if math.IsNaN(oi15m) {
		if widthPct <= rangeMaxWidthPct && math.Abs(px15m) <= rangeMaxAbsPx {
			return "RANGE / CHOP (OI n/a)"
		}
		return "TRANSITION (OI n/a)"
	}
	if oi15m < unwindMinOIDrop && px15m < unwindMaxPx {
		return "DELEVERAGING / LONG UNWIND"
	}
	if oi15m < unwindMinOIDrop && px15m > squeezeMinPx {
		return "SHORT COVER / SQUEEZE"
	}
	if widthPct <= rangeMaxWidthPct && math.Abs(px15m) <= rangeMaxAbsPx && math.Abs(oi15m) <= rangeMaxAbsOI {
		return "RANGE / CHOP"
	}
	return "TRANSITION"
}

// NormRegime projects a free-text regime label onto the closed RegimeKey
// enumeration. Matching is by substring with fixed precedence; anything
// unmatched falls to UNKNOWN. The display label is kept separately and never
// re-parsed downstream.
func NormRegime(raw string) models.RegimeKey {
	r := strings.ToUpper(raw)
	switch {
	case strings.Contains(r, "RANGE"):
		return models.RegimeRange
	case strings.Contains(r, "TRANSITION"):
		return models.RegimeTransition
	case strings.Contains(r, "SQUEEZE"), strings.Contains(r, "SHORT COVER"):
		return models.RegimeShortSqueeze
	case strings.Contains(r, "LONG UNWIND"):
		return models.RegimeLongUnwind
	case strings.Contains(r, "DELEVERAGING"):
		return models.RegimeDeleveraging
	default:
		return models.RegimeUnknown
	}
}

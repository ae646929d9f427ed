package engine

import (
	"fmt"
	"math"

	"btc-alerts/internal/models"
)

// DetectSetups scans the two most recent candles against the current zones.
// Up to four independent patterns can fire on one candle: sweep+reclaim at
// either band, and (in RANGE only) mean reversion at either band. No side
// effects; gating happens later.
func DetectSetups(regimeKey models.RegimeKey, candles []models.Candle, z models.Zones) []models.SetupSignal {
	if len(candles) < 3 {
		return nil
	}

	cur := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	h1, l1, c1 := cur.High, cur.Low, cur.Close
	h0, l0 := prev.High, prev.Low

	var sigs []models.SetupSignal

	// Sweep + reclaim (upper -> short): price pierced above the upper band
	// on this or the previous candle and closed back below its inner edge.
	sweptUp := h1 > z.UpperHi || h0 > z.UpperHi
	reclaimedDown := c1 < z.UpperLo && h1 > z.UpperLo
	if sweptUp && reclaimedDown {
		sigs = append(sigs, models.SetupSignal{
			Key:       models.SetupSweepReclaimShort,
			Title:     "SWEEP + RECLAIM (Upper) → SHORT",
			Direction: models.Short,
			Info:      fmt.Sprintf("Upper: %s–%s | close=%s", fmtInt(z.UpperLo), fmtInt(z.UpperHi), fmtInt(c1)),
		})
	}

	// Sweep + reclaim (lower -> long), mirror condition.
	sweptDown := l1 < z.LowerLo || l0 < z.LowerLo
	reclaimedUp := c1 > z.LowerHi && l1 < z.LowerHi
	if sweptDown && reclaimedUp {
		sigs = append(sigs, models.SetupSignal{
			Key:       models.SetupSweepReclaimLong,
			Title:     "SWEEP + RECLAIM (Lower) → LONG",
			Direction: models.Long,
			Info:      fmt.Sprintf("Lower: %s–%s | close=%s", fmtInt(z.LowerLo), fmtInt(z.LowerHi), fmtInt(c1)),
		})
	}

	// Mean reversion only makes sense while ranging.
	if regimeKey == models.RegimeRange {
		if h1 >= z.UpperLo && c1 < z.UpperLo {
			sigs = append(sigs, models.SetupSignal{
				Key:       models.SetupMeanRevertShort,
				Title:     "MEAN REVERT (Upper touch) → SHORT",
				Direction: models.Short,
				Info:      fmt.Sprintf("Upper_lo=%s | close=%s", fmtInt(z.UpperLo), fmtInt(c1)),
			})
		}
		if l1 <= z.LowerHi && c1 > z.LowerHi {
			sigs = append(sigs, models.SetupSignal{
				Key:       models.SetupMeanRevertLong,
				Title:     "MEAN REVERT (Lower touch) → LONG",
				Direction: models.Long,
				Info:      fmt.Sprintf("Lower_hi=%s | close=%s", fmtInt(z.LowerHi), fmtInt(c1)),
			})
		}
	}

	return sigs
}

// fmtInt renders a price level with thin-space thousand separators for the
// human-readable summaries.
func fmtInt(x float64) string {
	v := int64(math.Round(x))
	s := fmt.Sprintf("%d", v)
	neg := false
	if v < 0 {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, d := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, d)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

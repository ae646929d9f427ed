package alertbot

import (
	"fmt"
	"math"
	"strings"

	"btc-alerts/internal/models"
)

func fmtPct(x float64) string {
	return fmt.Sprintf("%+.2f%%", x)
}

func fmtLevel(x float64) string {
	s := fmt.Sprintf("%d", int64(math.Round(math.Abs(x))))
	var b strings.Builder
	for i, d := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}
	if x < 0 {
		return "-" + b.String()
	}
	return b.String()
}

// buildRegimeMessage renders the recurring market-state summary for the
// regime channel.
func buildRegimeMessage(regime string, px15m, funding, oi15m float64, z models.Zones) string {
	oiS := "n/a"
	if !math.IsNaN(oi15m) {
		oiS = fmt.Sprintf("%+.2f (Bybit)", oi15m)
	}
	return fmt.Sprintf(
		"🧭 MARKET REGIME\n%s\npx15m %s, funding %+.6f, width~%.2f%%\n\nFunding: %+.6f\nOIΔ(15m): %s\n\nUpper zone: %s – %s\nLower zone: %s – %s",
		regime, fmtPct(px15m), funding, z.WidthPct, funding, oiS,
		fmtLevel(z.UpperLo), fmtLevel(z.UpperHi),
		fmtLevel(z.LowerLo), fmtLevel(z.LowerHi),
	)
}

// buildSetupMessage renders a gated setup for the signals channel. extra
// carries the filter context for secondary assets.
func buildSetupMessage(sig models.SetupSignal, regimeRaw string, z models.Zones, extra string) string {
	tail := ""
	if extra != "" {
		tail = "\n\n" + extra
	}
	return fmt.Sprintf(
		"🎯 SETUP\n%s\nRegime: %s\n\n%s\nUpper: %s–%s\nLower: %s–%s%s",
		sig.Title, regimeRaw, sig.Info,
		fmtLevel(z.UpperLo), fmtLevel(z.UpperHi),
		fmtLevel(z.LowerLo), fmtLevel(z.LowerHi),
		tail,
	)
}

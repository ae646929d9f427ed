package alertbot

import (
	"math"
	"testing"

	"btc-alerts/internal/models"

	"github.com/stretchr/testify/assert"
)

var msgZones = models.Zones{
	UpperLo:  50160,
	UpperHi:  50200,
	LowerLo:  49800,
	LowerHi:  49840,
	WidthPct: 0.64,
}

func TestBuildRegimeMessage(t *testing.T) {
	msg := buildRegimeMessage("RANGE / CHOP", 0.12, 0.0001, -312, msgZones)
	assert.Contains(t, msg, "🧭 MARKET REGIME")
	assert.Contains(t, msg, "RANGE / CHOP")
	assert.Contains(t, msg, "+0.12%")
	assert.Contains(t, msg, "width~0.64%")
	assert.Contains(t, msg, "OIΔ(15m): -312.00 (Bybit)")
	assert.Contains(t, msg, "50 160")
	assert.Contains(t, msg, "49 800")
}

func TestBuildRegimeMessageOIUnavailable(t *testing.T) {
	msg := buildRegimeMessage("TRANSITION (OI n/a)", -0.3, 0.0001, math.NaN(), msgZones)
	assert.Contains(t, msg, "OIΔ(15m): n/a")
	assert.Contains(t, msg, "-0.30%")
}

func TestBuildSetupMessage(t *testing.T) {
	sig := models.SetupSignal{
		Key:       models.SetupMeanRevertLong,
		Title:     "MEAN REVERT (Lower touch) → LONG",
		Direction: models.Long,
		Info:      "Lower_hi=49 840 | close=49 890",
	}
	msg := buildSetupMessage(sig, "RANGE / CHOP", msgZones, "")
	assert.Contains(t, msg, "🎯 SETUP")
	assert.Contains(t, msg, "MEAN REVERT (Lower touch) → LONG")
	assert.Contains(t, msg, "Regime: RANGE / CHOP")
	assert.Contains(t, msg, "Upper: 50 160–50 200")
	assert.NotContains(t, msg, "filters:")

	withExtra := buildSetupMessage(sig, "RANGE / CHOP", msgZones, "filters: width<= 0.45% + OI_contra=true")
	assert.Contains(t, withExtra, "filters: width<= 0.45%")
}

func TestFmtLevel(t *testing.T) {
	assert.Equal(t, "50 160", fmtLevel(50160))
	assert.Equal(t, "987", fmtLevel(987.2))
	assert.Equal(t, "-1 234", fmtLevel(-1234))
}

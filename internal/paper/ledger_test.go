package paper

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLedgerPctBeforeCredit(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(1000))

	pnl := decimal.NewFromInt(-50)
	// Percentage is against pre-settlement equity.
	pct := l.PctOfEquity(pnl)
	assert.Equal(t, "-5", pct.Round(4).String())

	l.Credit(pnl)
	assert.Equal(t, "950", l.Equity().String())

	// Next trade's percentage uses the updated base.
	pct = l.PctOfEquity(decimal.NewFromFloat(95))
	assert.Equal(t, "10", pct.Round(4).String())
}

func TestLedgerZeroEquityPct(t *testing.T) {
	l := NewLedger(decimal.Zero)
	assert.True(t, l.PctOfEquity(decimal.NewFromInt(10)).IsZero())
}

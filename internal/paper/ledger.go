// Package paper contains the paper-trade core: deterministic trade planning
// from signal events, the per-trade fill state machine, and the running
// equity ledger used for risk sizing.
package paper

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Ledger accumulates realized PnL into a single equity scalar. It is
// credited exactly once per trade closure; cancellations contribute zero.
type Ledger struct {
	equity decimal.Decimal
}

// NewLedger starts a ledger at the given equity.
func NewLedger(startEquity decimal.Decimal) *Ledger {
	return &Ledger{equity: startEquity}
}

// Equity returns the current equity.
func (l *Ledger) Equity() decimal.Decimal {
	return l.equity
}

// PctOfEquity expresses pnl as a percentage of the current (pre-credit)
// equity. Returns zero when equity is not positive.
func (l *Ledger) PctOfEquity(pnl decimal.Decimal) decimal.Decimal {
	if !l.equity.IsPositive() {
		return decimal.Zero
	}
	return pnl.Div(l.equity).Mul(hundred)
}

// Credit applies a closed trade's realized PnL to the equity.
func (l *Ledger) Credit(pnl decimal.Decimal) {
	l.equity = l.equity.Add(pnl)
}

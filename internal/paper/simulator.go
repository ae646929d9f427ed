package paper

import (
	"fmt"
	"time"

	"btc-alerts/internal/models"

	"github.com/shopspring/decimal"
)

// StopFillMode controls the realized exit price when a stop triggers.
const (
	StopFillCap    = "CAP"    // fill at the stop price, overshoot is not realized
	StopFillMarket = "MARKET" // fill at the tick price, may overshoot
)

// SimConfig is the fill-simulation policy.
type SimConfig struct {
	EntryTimeout time.Duration
	TP1CloseFrac decimal.Decimal // fraction of the filled qty closed at TP1
	MoveSLToBE   bool            // relocate the stop to entry after TP1
	BEBufferPct  decimal.Decimal // breakeven offset, e.g. 0.00005 = +0.005%
	StopFillMode string
}

// Event names reported by Tick.
const (
	EventFill    = "FILL"
	EventCancel  = "CANCEL"
	EventSL      = "SL"
	EventTP1     = "TP1"
	EventTP1Full = "TP1_FULL"
	EventTP2     = "TP2"
)

// Outcome describes what a single tick did to a trade. Event is empty when
// nothing happened. PnlDelta is the PnL realized on this tick only; the
// caller credits the ledger when Closed is set.
type Outcome struct {
	Event     string
	ExitPrice decimal.Decimal
	PnlDelta  decimal.Decimal
	Closed    bool
	Canceled  bool
}

// Simulator advances paper trades through their life cycle against price
// ticks. One tick produces at most one event, and checks run in fixed
// priority: entry, then stop, then TP1, then TP2. A terminal trade is never
// mutated again.
type Simulator struct {
	cfg SimConfig
}

// NewSimulator validates nothing beyond defaulting the stop-fill mode; the
// config loader already rejected out-of-range values.
func NewSimulator(cfg SimConfig) *Simulator {
	if cfg.StopFillMode == "" {
		cfg.StopFillMode = StopFillCap
	}
	return &Simulator{cfg: cfg}
}

// Tick processes one price observation for one trade, mutating it in place.
func (s *Simulator) Tick(tr *models.Trade, px decimal.Decimal, now time.Time) Outcome {
	if tr.Terminal() {
		return Outcome{}
	}

	if tr.Status == models.StatusPendingEntry {
		return s.tickPending(tr, px, now)
	}

	// Filled. Protective exit is always checked before targets.
	if stopTriggered(tr.Side, tr.SL, px) {
		return s.closeAtStop(tr, px, now)
	}
	if !tr.TP1Hit && favorableTouch(tr.Side, tr.TP1, px) {
		return s.partialCloseTP1(tr, now)
	}
	if favorableTouch(tr.Side, tr.TP2, px) {
		return s.closeAtTP2(tr, now)
	}
	return Outcome{}
}

func (s *Simulator) tickPending(tr *models.Trade, px decimal.Decimal, now time.Time) Outcome {
	if entryTouched(tr.Side, tr.Entry, px) {
		tr.Status = models.StatusOpen
		tr.FilledEntry = tr.Entry
		tr.FilledQty = tr.Qty
		return Outcome{Event: EventFill}
	}

	created, err := time.Parse(time.RFC3339, tr.TsCreated)
	if err == nil && now.Sub(created) >= s.cfg.EntryTimeout {
		tr.Status = models.StatusCanceled
		tr.TsClosed = now.Format(time.RFC3339)
		tr.CloseReason = fmt.Sprintf("ENTRY_TIMEOUT_%ds", int(s.cfg.EntryTimeout.Seconds()))
		tr.PnlUSDT = decimal.Zero
		tr.PnlPctEquity = decimal.Zero
		return Outcome{Event: EventCancel, Closed: true, Canceled: true}
	}
	return Outcome{}
}

func (s *Simulator) closeAtStop(tr *models.Trade, px decimal.Decimal, now time.Time) Outcome {
	exit := tr.SL
	if s.cfg.StopFillMode == StopFillMarket {
		exit = px
	}
	pnl := pnlForMove(tr.Side, tr.FilledEntry, exit, tr.FilledQty)
	tr.PnlUSDT = tr.PnlUSDT.Add(pnl)
	tr.FilledQty = decimal.Zero
	tr.Status = models.StatusClosed
	tr.TsClosed = now.Format(time.RFC3339)
	tr.CloseReason = models.CloseReasonSL
	return Outcome{Event: EventSL, ExitPrice: exit, PnlDelta: pnl, Closed: true}
}

func (s *Simulator) partialCloseTP1(tr *models.Trade, now time.Time) Outcome {
	qtyClose := tr.FilledQty.Mul(s.cfg.TP1CloseFrac)
	if qtyClose.GreaterThan(tr.FilledQty) {
		qtyClose = tr.FilledQty
	}
	if qtyClose.IsNegative() {
		qtyClose = decimal.Zero
	}

	pnl := pnlForMove(tr.Side, tr.FilledEntry, tr.TP1, qtyClose)
	tr.PnlUSDT = tr.PnlUSDT.Add(pnl)
	tr.FilledQty = tr.FilledQty.Sub(qtyClose)
	tr.TP1Hit = true
	tr.TP1QtyClosed = tr.TP1QtyClosed.Add(qtyClose)

	if s.cfg.MoveSLToBE {
		tr.SL = breakevenStop(tr.Side, tr.FilledEntry, s.cfg.BEBufferPct)
	}

	// Edge case: the configured fraction consumed the whole position.
	if tr.FilledQty.Sign() <= 0 {
		tr.Status = models.StatusClosed
		tr.TsClosed = now.Format(time.RFC3339)
		tr.CloseReason = models.CloseReasonTP1Full
		return Outcome{Event: EventTP1Full, ExitPrice: tr.TP1, PnlDelta: pnl, Closed: true}
	}
	return Outcome{Event: EventTP1, ExitPrice: tr.TP1, PnlDelta: pnl}
}

func (s *Simulator) closeAtTP2(tr *models.Trade, now time.Time) Outcome {
	pnl := pnlForMove(tr.Side, tr.FilledEntry, tr.TP2, tr.FilledQty)
	tr.PnlUSDT = tr.PnlUSDT.Add(pnl)
	tr.FilledQty = decimal.Zero
	tr.Status = models.StatusClosed
	tr.TsClosed = now.Format(time.RFC3339)
	tr.CloseReason = models.CloseReasonTP2
	return Outcome{Event: EventTP2, ExitPrice: tr.TP2, PnlDelta: pnl, Closed: true}
}

// entryTouched: a limit-style entry fills when price crosses it favorably.
func entryTouched(side models.Side, entry, px decimal.Decimal) bool {
	if side == models.Long {
		return px.LessThanOrEqual(entry)
	}
	return px.GreaterThanOrEqual(entry)
}

// stopTriggered: price crossed the stop level adversely.
func stopTriggered(side models.Side, sl, px decimal.Decimal) bool {
	if side == models.Long {
		return px.LessThanOrEqual(sl)
	}
	return px.GreaterThanOrEqual(sl)
}

// favorableTouch: price reached a take-profit level in the trade's favor.
func favorableTouch(side models.Side, level, px decimal.Decimal) bool {
	if side == models.Long {
		return px.GreaterThanOrEqual(level)
	}
	return px.LessThanOrEqual(level)
}

// pnlForMove is the linear-swap PnL approximation: (exit-entry)*qty for
// LONG and its mirror for SHORT. No funding or fees are modeled.
func pnlForMove(side models.Side, entry, exit, qty decimal.Decimal) decimal.Decimal {
	if qty.Sign() <= 0 {
		return decimal.Zero
	}
	if side == models.Long {
		return exit.Sub(entry).Mul(qty)
	}
	return entry.Sub(exit).Mul(qty)
}

func breakevenStop(side models.Side, filledEntry, bufferPct decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == models.Long {
		return filledEntry.Mul(one.Add(bufferPct)).Round(4)
	}
	return filledEntry.Mul(one.Sub(bufferPct)).Round(4)
}

package paper

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"btc-alerts/internal/models"

	"github.com/jxskiss/base62"
	"github.com/shopspring/decimal"
)

// Planning failures. All of them discard the candidate trade silently at the
// caller; a zero-or-negative-size position is never emitted.
var (
	ErrBadEvent      = errors.New("planner: event missing symbol or zone bounds")
	ErrDegenerateSL  = errors.New("planner: stop distance is zero")
	ErrUnusableQty   = errors.New("planner: position size non-finite or non-positive")
	ErrBadClosePrice = errors.New("planner: close price missing or non-positive")
)

// PlanParams is the fixed planning policy.
type PlanParams struct {
	Leverage       int
	RiskPct        float64
	EntryPriceMode string // "ZONE" (inner edge, more fills) or "LOHI" (outer edge, fewer)
	ExchangeID     string
}

// Geometry constants. The stop sits beyond the outer edge of the entry-side
// zone by 1.5x the zone height with an absolute floor; TP1 takes 35% of the
// distance toward the opposite zone's near edge and TP2 targets that edge,
// with stop-distance multiples as fallbacks when the zone-derived target is
// not favorable.
const (
	slPadZoneMult = 1.5
	slPadAbsFloor = 0.5
	tp1Fraction   = 0.35
	tp1FallbackR  = 0.6
	tp2FallbackR  = 1.2
)

// PlanFromEvent converts an accepted signal event into a fully specified
// paper trade in PENDING_ENTRY. Side is derived from the setup key; sizing is
// fixed fractional: qty = equity*riskPct/|entry-sl| * leverage.
func PlanFromEvent(evt models.SignalEvent, equity decimal.Decimal, p PlanParams, now time.Time) (*models.Trade, error) {
	sym := strings.TrimSpace(evt.Symbol)
	if sym == "" {
		return nil, ErrBadEvent
	}
	lowerLo, lowerHi := evt.Lower[0], evt.Lower[1]
	upperLo, upperHi := evt.Upper[0], evt.Upper[1]
	for _, v := range []float64{lowerLo, lowerHi, upperLo, upperHi} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrBadEvent
		}
	}
	if math.IsNaN(evt.Close) || evt.Close <= 0 {
		return nil, ErrBadClosePrice
	}

	side := models.Long
	if strings.Contains(strings.ToUpper(evt.Setup), "SHORT") {
		side = models.Short
	}

	var entry float64
	if p.EntryPriceMode == "LOHI" {
		if side == models.Long {
			entry = lowerLo
		} else {
			entry = upperHi
		}
	} else {
		if side == models.Long {
			entry = lowerHi
		} else {
			entry = upperLo
		}
	}

	// Zone height is the unit for the stop pad.
	zoneH := math.Max(1e-9, lowerHi-lowerLo)
	zoneU := math.Max(1e-9, upperHi-upperLo)
	var pad float64
	if side == models.Long {
		pad = math.Max(slPadAbsFloor, zoneH*slPadZoneMult)
	} else {
		pad = math.Max(slPadAbsFloor, zoneU*slPadZoneMult)
	}

	var sl, tp1, tp2 float64
	if side == models.Long {
		sl = lowerLo - pad
		tp1 = math.Min(upperLo, entry+(upperLo-entry)*tp1Fraction)
		tp2 = upperLo
		if tp2 <= entry {
			tp2 = math.Max(entry*1.001, entry+math.Abs(entry-sl)*tp2FallbackR)
		}
		if tp1 <= entry {
			tp1 = entry + math.Abs(entry-sl)*tp1FallbackR
		}
	} else {
		sl = upperHi + pad
		tp1 = math.Max(lowerHi, entry-(entry-lowerHi)*tp1Fraction)
		tp2 = lowerHi
		if tp2 >= entry {
			tp2 = math.Min(entry*0.999, entry-math.Abs(entry-sl)*tp2FallbackR)
		}
		if tp1 >= entry {
			tp1 = entry - math.Abs(entry-sl)*tp1FallbackR
		}
	}

	perUnitRisk := math.Abs(entry - sl)
	if perUnitRisk <= 0 {
		return nil, ErrDegenerateSL
	}
	riskUSDT := math.Max(0, toFloat(equity)*p.RiskPct)
	qty := riskUSDT / perUnitRisk * float64(p.Leverage)
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty <= 0 {
		return nil, ErrUnusableQty
	}

	t := &models.Trade{
		TsCreated: now.Format(time.RFC3339),
		TradeID:   newTradeID(evt.SymbolRaw, evt.Setup, now),
		Exchange:  firstNonEmpty(evt.Exchange, p.ExchangeID),
		Market:    firstNonEmpty(evt.Market, "futures"),
		Symbol:    sym,
		SymbolRaw: evt.SymbolRaw,
		Setup:     evt.Setup,
		Regime:    evt.Regime,
		Side:      side,
		Status:    models.StatusPendingEntry,
		Leverage:  p.Leverage,
		Entry:     decimal.NewFromFloat(entry).Round(4),
		SL:        decimal.NewFromFloat(sl).Round(4),
		TP1:       decimal.NewFromFloat(tp1).Round(4),
		TP2:       decimal.NewFromFloat(tp2).Round(4),
		Qty:       decimal.NewFromFloat(qty).Round(6),
	}
	return t, nil
}

// newTradeID builds "<unix>-<symbol>-<setup prefix>-<nonce>". The base62
// nonce keeps ids unique when several plans land in the same second.
func newTradeID(symbolRaw, setup string, now time.Time) string {
	if len(setup) > 16 {
		setup = setup[:16]
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	nonce := string(base62.FormatUint(binary.BigEndian.Uint64(b[:]) >> 32))
	return fmt.Sprintf("%d-%s-%s-%s", now.Unix(), symbolRaw, setup, nonce)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

package models

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Candle 是一根K线（开盘时间 + OHLCV）。序列按时间升序，最新的在最后。
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Zones is a support/resistance band pair derived from a recent candle
// window. Invariants: UpperLo <= UpperHi, LowerLo <= LowerHi, WidthPct >= 0.
// Zones are recomputed every cycle and carry no persisted identity.
type Zones struct {
	UpperLo  float64 `json:"upper_lo"`
	UpperHi  float64 `json:"upper_hi"`
	LowerLo  float64 `json:"lower_lo"`
	LowerHi  float64 `json:"lower_hi"`
	WidthPct float64 `json:"width_pct"`
}

// RegimeKey is the normalized projection of a free-text regime label.
type RegimeKey string

const (
	RegimeRange        RegimeKey = "RANGE"
	RegimeTransition   RegimeKey = "TRANSITION"
	RegimeShortSqueeze RegimeKey = "SHORT_SQUEEZE"
	RegimeLongUnwind   RegimeKey = "LONG_UNWIND"
	RegimeDeleveraging RegimeKey = "DELEVERAGING"
	RegimeUnknown      RegimeKey = "UNKNOWN"
)

// Side 定义了交易方向的类型
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Setup keys produced by the detector.
const (
	SetupSweepReclaimShort = "SWEEP_RECLAIM_SHORT"
	SetupSweepReclaimLong  = "SWEEP_RECLAIM_LONG"
	SetupMeanRevertShort   = "MEAN_REVERT_SHORT"
	SetupMeanRevertLong    = "MEAN_REVERT_LONG"
)

// SetupSignal is a raw detection result, not yet gated.
type SetupSignal struct {
	Key       string
	Title     string
	Direction Side
	Info      string
}

// SignalEvent is the emitted, gated unit crossing into the execution loop.
// It is appended to the signals JSONL file, one object per line, and never
// mutated afterwards. OI15m is nil when the open-interest source was
// unavailable for that cycle.
type SignalEvent struct {
	Exchange  string     `json:"exchange"`
	Market    string     `json:"market"`
	Symbol    string     `json:"symbol"`
	SymbolRaw string     `json:"symbol_raw"`
	Setup     string     `json:"setup"`
	Regime    string     `json:"regime"`
	Lower     [2]float64 `json:"lower"`
	Upper     [2]float64 `json:"upper"`
	Close     float64    `json:"close"`
	WidthPct  float64    `json:"width_pct"`
	OI15m     *float64   `json:"oi15m"`
	Ts        string     `json:"ts"`
}

// TradeStatus 是纸面交易的生命周期状态，只能单向推进。
type TradeStatus string

const (
	StatusPendingEntry TradeStatus = "PENDING_ENTRY"
	StatusOpen         TradeStatus = "OPEN"
	StatusClosed       TradeStatus = "CLOSED"
	StatusCanceled     TradeStatus = "CANCELED"
)

// Close reasons recorded on terminal transitions.
const (
	CloseReasonSL      = "SL"
	CloseReasonTP1Full = "TP1_FULL"
	CloseReasonTP2     = "TP2"
)

// Trade is a fully specified paper trade. Created by the planner in
// PENDING_ENTRY, mutated only by the fill simulator, immutable once Status
// reaches CLOSED or CANCELED. Price, quantity and PnL fields use decimals so
// repeated partial closes do not accumulate float drift.
type Trade struct {
	TsCreated string `json:"ts_created"`
	TsClosed  string `json:"ts_closed"`
	TradeID   string `json:"trade_id"`
	Exchange  string `json:"exchange"`
	Market    string `json:"market"`
	Symbol    string `json:"symbol"`
	SymbolRaw string `json:"symbol_raw"`
	Setup     string `json:"setup"`
	Regime    string `json:"regime"`

	Side     Side        `json:"side"`
	Status   TradeStatus `json:"status"`
	Leverage int         `json:"leverage"`

	Entry decimal.Decimal `json:"entry"`
	SL    decimal.Decimal `json:"sl"`
	TP1   decimal.Decimal `json:"tp1"`
	TP2   decimal.Decimal `json:"tp2"`
	Qty   decimal.Decimal `json:"qty"`

	FilledEntry decimal.Decimal `json:"filled_entry"`
	FilledQty   decimal.Decimal `json:"filled_qty"`

	TP1Hit       bool            `json:"tp1_hit"`
	TP1QtyClosed decimal.Decimal `json:"tp1_qty_closed"`

	PnlUSDT      decimal.Decimal `json:"pnl_usdt"`
	PnlPctEquity decimal.Decimal `json:"pnl_pct_equity"`
	CloseReason  string          `json:"close_reason"`
}

// Terminal reports whether the trade reached a final state.
func (t *Trade) Terminal() bool {
	return t.Status == StatusClosed || t.Status == StatusCanceled
}

// SafeFloat parses v into a float64, returning NaN on failure. Downstream
// computations treat NaN as "value unavailable" and fail closed rather than
// treating it as zero.
func SafeFloat(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ToSwapSymbol converts a Binance-style symbol like "ETHUSDT" to the
// linear-swap notation "ETH/USDT:USDT" used in trade records.
func ToSwapSymbol(binanceSymbol string) string {
	s := binanceSymbol
	if len(s) <= 4 || s[len(s)-4:] != "USDT" {
		return s
	}
	return s[:len(s)-4] + "/USDT:USDT"
}

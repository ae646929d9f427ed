package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertState 定义了信号循环需要持久化的全部数据。
// 每个扫描周期结束后整体写回（临时文件 + rename，见 persistence 包）。
type AlertState struct {
	Symbol            string           `json:"symbol"`
	LastRegime        string           `json:"last_regime"`
	LastRegimeSent    string           `json:"last_regime_sent"`
	LastRegimeAlertTs int64            `json:"last_regime_alert_ts"`
	LastOKTs          int64            `json:"last_ok_ts"`
	LastSetupTs       map[string]int64 `json:"last_setup_ts"` // "SYMBOL:SETUP_KEY" -> unix seconds
	LastUpdateTime    time.Time        `json:"last_update_time"`
}

// NewAlertState returns an empty state with maps initialized.
func NewAlertState(symbol string) *AlertState {
	return &AlertState{
		Symbol:      symbol,
		LastSetupTs: make(map[string]int64),
	}
}

// ExecState is the persisted runtime state of the execution loop: the read
// cursor into the signals file, the running equity, all non-terminal trades
// and the bounded dedup window. Together with the dedup set, the cursor gives
// idempotent resumption: re-reading from a stale offset after a restart must
// not double-plan a trade.
type ExecState struct {
	Offset     int64             `json:"cursor_offset"`
	Equity     decimal.Decimal   `json:"equity"`
	OpenTrades map[string]*Trade `json:"open_trades"`
	Dedup      []string          `json:"dedup"`
}

// NewExecState returns a fresh state seeded with the starting equity.
func NewExecState(startEquity decimal.Decimal) *ExecState {
	return &ExecState{
		Equity:     startEquity,
		OpenTrades: make(map[string]*Trade),
	}
}

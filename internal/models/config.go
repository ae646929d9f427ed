package models

// Config 结构体定义了机器人的所有配置参数
type Config struct {
	Symbol      string `json:"symbol"`       // 主交易对，如 "BTCUSDT"
	IntervalSec int    `json:"interval_sec"` // 信号循环的轮询间隔（秒）

	// Secondary-asset scanning, gated by the primary symbol's regime.
	SetupSymbols      []string `json:"setup_symbols"`       // e.g. ["ETHUSDT","SOLUSDT"]
	AltEnabledRegimes []string `json:"alt_enabled_regimes"` // regime keys that enable alt scanning
	SetupCooldownSec  int      `json:"setup_cooldown_sec"`  // per-(symbol,setup) re-emission interval

	// Mean-revert quality filters.
	MeanRevertMaxWidthPct float64 `json:"mean_revert_max_width_pct"`
	OIContraFilter        bool    `json:"oi_contra_filter"`
	OIContraMinAbs        float64 `json:"oi_contra_min_abs"`
	OIContraAligned       bool    `json:"oi_contra_aligned"` // flip the contra sign convention

	// ALT/BTC bias gate (spot pairs).
	WatchAltBTC   []string `json:"watch_alt_btc"` // e.g. ["ETHBTC","SOLBTC"]
	AltBTCBiasPct float64  `json:"alt_btc_bias_pct"`

	RegimeHeartbeatSec int    `json:"regime_heartbeat_sec"` // resend regime message after this many seconds
	SignalsFile        string `json:"signals_file"`         // append-only JSONL event log
	AlertStatePath     string `json:"alert_state_path"`     // signal-loop state JSON

	// Paper execution loop.
	PaperDBPath      string  `json:"paper_db_path"`    // badger directory for ExecState
	PaperOutJSONL    string  `json:"paper_out_jsonl"`  // closed-trade records, one JSON per line
	PaperOutCSV      string  `json:"paper_out_csv"`    // closed-trade records, tabular
	ExchangeID       string  `json:"exchange_id"`      // exchange tag stamped on trade records
	Leverage         int     `json:"leverage"`         // 杠杆倍数
	StartEquity      float64 `json:"start_equity"`     // 初始资金 (USDT)
	RiskPct          float64 `json:"risk_pct"`         // fixed fractional risk per trade, e.g. 0.005
	PollSec          float64 `json:"poll_sec"`         // execution loop tick interval
	MaxOpenPerSymbol int     `json:"max_open_per_symbol"`
	EntryTimeoutSec  int     `json:"entry_timeout_sec"`
	EntryPriceMode   string  `json:"entry_price_mode"` // "ZONE" (inner edge) or "LOHI" (outer edge)
	TP1CloseFrac     float64 `json:"tp1_close_frac"`   // fraction of filled qty closed at TP1
	MoveSLToBEOnTP1  bool    `json:"move_sl_to_be_on_tp1"`
	BEBufferPct      float64 `json:"be_buffer_pct"`  // breakeven stop offset, e.g. 0.00005
	StopFillMode     string  `json:"stop_fill_mode"` // "CAP" (fill at SL) or "MARKET" (fill at tick)
	DedupWindow      int     `json:"dedup_window"`   // bounded event-identity FIFO size
	UseWSTicker      bool    `json:"use_ws_ticker"`  // stream tick prices over websocket

	LogConfig LogConfig `json:"log"`
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// ApplyDefaults fills zero-valued fields with the documented defaults so a
// minimal config file stays usable.
func (c *Config) ApplyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	if c.IntervalSec <= 0 {
		c.IntervalSec = 30
	}
	if c.SetupCooldownSec <= 0 {
		c.SetupCooldownSec = 600
	}
	if c.MeanRevertMaxWidthPct <= 0 {
		c.MeanRevertMaxWidthPct = 0.45
	}
	if c.OIContraMinAbs <= 0 {
		c.OIContraMinAbs = 250
	}
	if c.AltBTCBiasPct <= 0 {
		c.AltBTCBiasPct = 0.03
	}
	if c.RegimeHeartbeatSec <= 0 {
		c.RegimeHeartbeatSec = 600
	}
	if c.SignalsFile == "" {
		c.SignalsFile = "signals.jsonl"
	}
	if c.AlertStatePath == "" {
		c.AlertStatePath = "state.json"
	}
	if c.PaperDBPath == "" {
		c.PaperDBPath = "paper_state_db"
	}
	if c.PaperOutJSONL == "" {
		c.PaperOutJSONL = "paper_trades.jsonl"
	}
	if c.PaperOutCSV == "" {
		c.PaperOutCSV = "paper_trades.csv"
	}
	if c.ExchangeID == "" {
		c.ExchangeID = "mexc"
	}
	if c.Leverage <= 0 {
		c.Leverage = 5
	}
	if c.StartEquity <= 0 {
		c.StartEquity = 1000
	}
	if c.RiskPct <= 0 {
		c.RiskPct = 0.005
	}
	if c.PollSec <= 0 {
		c.PollSec = 2
	}
	if c.MaxOpenPerSymbol <= 0 {
		c.MaxOpenPerSymbol = 1
	}
	if c.EntryTimeoutSec <= 0 {
		c.EntryTimeoutSec = 1800
	}
	if c.EntryPriceMode == "" {
		c.EntryPriceMode = "ZONE"
	}
	if c.TP1CloseFrac <= 0 {
		c.TP1CloseFrac = 0.5
	}
	if c.StopFillMode == "" {
		c.StopFillMode = "CAP"
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 4000
	}
}

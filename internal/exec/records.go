package exec

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"btc-alerts/internal/models"
)

// csvHeader is the fixed column order of the closed-trade CSV. Appends never
// rewrite existing rows, so the order must stay stable across versions.
var csvHeader = []string{
	"ts_created", "ts_closed", "trade_id", "exchange", "market",
	"symbol", "symbol_raw", "setup", "regime", "side", "status",
	"leverage", "entry", "sl", "tp1", "tp2", "qty",
	"filled_entry", "filled_qty", "tp1_hit", "tp1_qty_closed",
	"pnl_usdt", "pnl_pct_equity", "close_reason",
}

// RecordWriter appends terminal trades to the JSONL and CSV outputs. Both
// files are append-only; a trade is written exactly once, on the tick that
// closes or cancels it.
type RecordWriter struct {
	jsonlPath string
	csvPath   string
}

func NewRecordWriter(jsonlPath, csvPath string) *RecordWriter {
	return &RecordWriter{jsonlPath: jsonlPath, csvPath: csvPath}
}

// Write appends tr to both outputs. A failure in one output does not block
// the other; the first error is returned.
func (w *RecordWriter) Write(tr *models.Trade) error {
	jerr := w.writeJSONL(tr)
	cerr := w.writeCSV(tr)
	if jerr != nil {
		return jerr
	}
	return cerr
}

func (w *RecordWriter) writeJSONL(tr *models.Trade) error {
	if err := os.MkdirAll(filepath.Dir(w.jsonlPath), 0o755); err != nil && filepath.Dir(w.jsonlPath) != "." {
		return err
	}
	f, err := os.OpenFile(w.jsonlPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func (w *RecordWriter) writeCSV(tr *models.Trade) error {
	_, statErr := os.Stat(w.csvPath)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(w.csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
	}
	row := []string{
		tr.TsCreated, tr.TsClosed, tr.TradeID, tr.Exchange, tr.Market,
		tr.Symbol, tr.SymbolRaw, tr.Setup, tr.Regime, string(tr.Side), string(tr.Status),
		strconv.Itoa(tr.Leverage),
		tr.Entry.String(), tr.SL.String(), tr.TP1.String(), tr.TP2.String(), tr.Qty.String(),
		tr.FilledEntry.String(), tr.FilledQty.String(),
		fmt.Sprintf("%v", tr.TP1Hit), tr.TP1QtyClosed.String(),
		tr.PnlUSDT.String(), tr.PnlPctEquity.String(), tr.CloseReason,
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

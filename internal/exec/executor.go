// Package exec runs the paper execution loop. Each poll does two things in
// order: consume new signal events into planned trades, then tick every
// non-terminal trade against the current price. State is persisted once per
// poll so a crash loses at most one poll's worth of progress, and the dedup
// window makes replayed events harmless.
package exec

import (
	"context"
	"errors"
	"sort"
	"time"

	"btc-alerts/internal/logger"
	"btc-alerts/internal/models"
	"btc-alerts/internal/paper"
	"btc-alerts/internal/persistence"
	"btc-alerts/internal/signalog"
	"btc-alerts/internal/ticker"

	"github.com/shopspring/decimal"
)

// Executor is the execution-loop driver.
type Executor struct {
	cfg     *models.Config
	repo    persistence.StateRepository
	prices  ticker.PriceSource
	tailer  *signalog.Tailer
	sim     *paper.Simulator
	records *RecordWriter

	state  *models.ExecState
	ledger *paper.Ledger
	dedup  *signalog.DedupSet
}

// New restores the persisted execution state (or starts fresh at the
// configured equity) and wires the fill simulator from the config.
func New(cfg *models.Config, repo persistence.StateRepository, prices ticker.PriceSource) (*Executor, error) {
	state, err := repo.LoadState()
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = models.NewExecState(decimal.NewFromFloat(cfg.StartEquity))
		logger.S().Infof("no persisted execution state, starting fresh with equity=%s", state.Equity)
	} else {
		logger.S().Infof("restored execution state: offset=%d equity=%s open=%d dedup=%d",
			state.Offset, state.Equity, len(state.OpenTrades), len(state.Dedup))
	}

	sim := paper.NewSimulator(paper.SimConfig{
		EntryTimeout: time.Duration(cfg.EntryTimeoutSec) * time.Second,
		TP1CloseFrac: decimal.NewFromFloat(cfg.TP1CloseFrac),
		MoveSLToBE:   cfg.MoveSLToBEOnTP1,
		BEBufferPct:  decimal.NewFromFloat(cfg.BEBufferPct),
		StopFillMode: cfg.StopFillMode,
	})

	return &Executor{
		cfg:     cfg,
		repo:    repo,
		prices:  prices,
		tailer:  signalog.NewTailer(cfg.SignalsFile),
		sim:     sim,
		records: NewRecordWriter(cfg.PaperOutJSONL, cfg.PaperOutCSV),
		state:   state,
		ledger:  paper.NewLedger(state.Equity),
		dedup:   signalog.NewDedupSet(cfg.DedupWindow, state.Dedup),
	}, nil
}

// Run polls until ctx is canceled. The final state is persisted on exit.
func (e *Executor) Run(ctx context.Context) error {
	poll := time.Duration(e.cfg.PollSec * float64(time.Second))
	if poll < 100*time.Millisecond {
		poll = 100 * time.Millisecond
	}
	logger.S().Infof("starting execution loop | signals=%s poll=%s equity=%s max_open_per_symbol=%d stop_fill=%s entry_mode=%s",
		e.cfg.SignalsFile, poll, e.ledger.Equity(), e.cfg.MaxOpenPerSymbol,
		e.cfg.StopFillMode, e.cfg.EntryPriceMode)

	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			e.persist()
			return ctx.Err()
		case now := <-t.C:
			e.consumeSignals(now)
			e.tickTrades(now)
			e.persist()
		}
	}
}

// consumeSignals reads everything appended to the signals file since the
// cursor and plans a trade per accepted event.
func (e *Executor) consumeSignals(now time.Time) {
	newOffset, events, err := e.tailer.ReadFrom(e.state.Offset)
	if err != nil {
		logger.S().Warnf("failed to read signals file: %v", err)
		return
	}
	e.state.Offset = newOffset

	for _, evt := range events {
		key := signalog.EventKey(evt)
		if !e.dedup.Accept(key) {
			logger.S().Debugf("duplicate event skipped: %s", key)
			continue
		}
		if n := e.openCount(evt.SymbolRaw); n >= e.cfg.MaxOpenPerSymbol {
			logger.S().Infof("skip %s %s: %d open trade(s) already", evt.SymbolRaw, evt.Setup, n)
			continue
		}

		tr, err := paper.PlanFromEvent(evt, e.ledger.Equity(), paper.PlanParams{
			Leverage:       e.cfg.Leverage,
			RiskPct:        e.cfg.RiskPct,
			EntryPriceMode: e.cfg.EntryPriceMode,
			ExchangeID:     e.cfg.ExchangeID,
		}, now)
		if err != nil {
			if errors.Is(err, paper.ErrBadEvent) {
				logger.S().Warnf("unplannable event %s: %v", key, err)
			} else {
				logger.S().Infof("event %s rejected by planner: %v", key, err)
			}
			continue
		}

		e.state.OpenTrades[tr.TradeID] = tr
		logger.S().Infof("PLANNED %s %s %s | entry=%s sl=%s tp1=%s tp2=%s qty=%s",
			tr.TradeID, tr.SymbolRaw, tr.Side, tr.Entry, tr.SL, tr.TP1, tr.TP2, tr.Qty)
	}
}

// tickTrades fetches one price per distinct symbol and advances every
// non-terminal trade. Trades are visited in a stable order so replays of the
// same tick sequence produce identical state.
func (e *Executor) tickTrades(now time.Time) {
	if len(e.state.OpenTrades) == 0 {
		return
	}

	ids := make([]string, 0, len(e.state.OpenTrades))
	for id := range e.state.OpenTrades {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	prices := make(map[string]decimal.Decimal)
	for _, id := range ids {
		tr := e.state.OpenTrades[id]
		px, ok := prices[tr.SymbolRaw]
		if !ok {
			f, ok2 := e.prices.LastPrice(tr.SymbolRaw)
			if !ok2 {
				continue
			}
			px = decimal.NewFromFloat(f)
			prices[tr.SymbolRaw] = px
		}

		out := e.sim.Tick(tr, px, now)
		if out.Event == "" {
			continue
		}
		logger.S().Infof("%s %s %s @ %s | pnl_delta=%s filled_qty=%s",
			out.Event, tr.TradeID, tr.SymbolRaw, px, out.PnlDelta, tr.FilledQty)

		if out.Closed {
			e.finalize(tr, out)
		}
	}
}

// finalize settles a terminal trade: PnL percentage against pre-settlement
// equity, then the ledger credit, the record append, and removal from the
// open set.
func (e *Executor) finalize(tr *models.Trade, out paper.Outcome) {
	if !out.Canceled {
		tr.PnlPctEquity = e.ledger.PctOfEquity(tr.PnlUSDT)
		e.ledger.Credit(tr.PnlUSDT)
	}
	if err := e.records.Write(tr); err != nil {
		logger.S().Warnf("failed to record trade %s: %v", tr.TradeID, err)
	}
	delete(e.state.OpenTrades, tr.TradeID)
	logger.S().Infof("SETTLED %s %s %s reason=%s pnl=%s equity=%s",
		tr.TradeID, tr.SymbolRaw, tr.Status, tr.CloseReason, tr.PnlUSDT, e.ledger.Equity())
}

func (e *Executor) openCount(symbolRaw string) int {
	n := 0
	for _, tr := range e.state.OpenTrades {
		if tr.SymbolRaw == symbolRaw && !tr.Terminal() {
			n++
		}
	}
	return n
}

func (e *Executor) persist() {
	e.state.Equity = e.ledger.Equity()
	e.state.Dedup = e.dedup.Keys()
	if err := e.repo.SaveState(e.state); err != nil {
		logger.S().Errorf("failed to persist execution state: %v", err)
	}
}

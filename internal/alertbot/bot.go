// Package alertbot runs the signal loop: one full pass over the primary and
// secondary symbols per wake-up, classifying the regime, detecting setups,
// gating them, and appending accepted events to the signal log.
package alertbot

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"btc-alerts/internal/engine"
	"btc-alerts/internal/logger"
	"btc-alerts/internal/market"
	"btc-alerts/internal/models"
	"btc-alerts/internal/notifier"
	"btc-alerts/internal/persistence"
	"btc-alerts/internal/signalog"

	"github.com/google/uuid"
)

// Bot is the signal-loop driver. Single-threaded and cooperative: a cycle
// runs to completion (including the state write) before the next one starts.
type Bot struct {
	cfg      *models.Config
	market   *market.Client
	tg       *notifier.Telegram
	gate     *engine.Gate
	appender *signalog.Appender
	store    *persistence.AlertStateStore
	state    *models.AlertState

	altEnabled map[models.RegimeKey]bool
}

// New wires the signal loop. The gate's cooldowns are seeded from the
// persisted state so a restart does not re-emit recent setups.
func New(cfg *models.Config, mkt *market.Client, tg *notifier.Telegram, store *persistence.AlertStateStore) (*Bot, error) {
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load alert state: %w", err)
	}
	if state == nil {
		state = models.NewAlertState(cfg.Symbol)
	}

	gate := engine.NewGate(engine.GateConfig{
		MeanRevertMaxWidthPct: cfg.MeanRevertMaxWidthPct,
		OIContraFilter:        cfg.OIContraFilter,
		OIContraMinAbs:        cfg.OIContraMinAbs,
		OIContraAligned:       cfg.OIContraAligned,
		WatchAltBTC:           cfg.WatchAltBTC,
		AltBTCBiasPct:         cfg.AltBTCBiasPct,
		Cooldown:              time.Duration(cfg.SetupCooldownSec) * time.Second,
	}, &spotBias{client: mkt})
	gate.SeedCooldowns(state.LastSetupTs)

	altEnabled := make(map[models.RegimeKey]bool, len(cfg.AltEnabledRegimes))
	for _, r := range cfg.AltEnabledRegimes {
		altEnabled[models.RegimeKey(strings.ToUpper(strings.TrimSpace(r)))] = true
	}

	return &Bot{
		cfg:        cfg,
		market:     mkt,
		tg:         tg,
		gate:       gate,
		appender:   signalog.NewAppender(cfg.SignalsFile),
		store:      store,
		state:      state,
		altEnabled: altEnabled,
	}, nil
}

// Run executes cycles until ctx is canceled, sleeping for the remainder of
// the configured interval after each pass.
func (b *Bot) Run(ctx context.Context) error {
	interval := time.Duration(b.cfg.IntervalSec) * time.Second
	logger.S().Infof(
		"starting signal loop run=%s | symbol=%s interval=%s | telegram=%v | setup_symbols=%s | alt_enabled_regimes=%s | signals_file=%s | mr_max_width=%.2f | oi_contra=%v | watch_alt_btc=%s",
		uuid.NewString()[:8], b.cfg.Symbol, interval, b.tg.Enabled(),
		strings.Join(b.cfg.SetupSymbols, ","), strings.Join(b.cfg.AltEnabledRegimes, ","),
		b.cfg.SignalsFile, b.cfg.MeanRevertMaxWidthPct, b.cfg.OIContraFilter,
		strings.Join(b.cfg.WatchAltBTC, ","),
	)

	for {
		start := time.Now()
		b.runCycle(ctx, start)

		elapsed := time.Since(start)
		sleep := interval - elapsed
		if sleep < time.Second {
			sleep = time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// runCycle is one pass: primary symbol regime + setups, then the gated
// secondary scan. Any missing upstream snapshot skips the cycle for the
// affected symbol; nothing here is fatal.
func (b *Bot) runCycle(ctx context.Context, now time.Time) {
	kl1m, err1 := b.market.FuturesKlines(ctx, b.cfg.Symbol, "1m", 240)
	kl15m, err2 := b.market.FuturesKlines(ctx, b.cfg.Symbol, "15m", 80)
	funding, err3 := b.market.FundingRate(ctx, b.cfg.Symbol)

	oi15m := math.NaN()
	if v, err := b.market.OIDelta15m(ctx, b.cfg.Symbol); err == nil {
		oi15m = v
	}

	if err1 != nil || err2 != nil || err3 != nil {
		if b.state.LastOKTs > 0 && now.Unix()-b.state.LastOKTs > 180 {
			logger.S().Warnf("no successful %s price/funding bundle for >180s (API unstable?)", b.cfg.Symbol)
		}
		return
	}

	px15m := engine.PxChange15m(kl1m)
	atr := engine.ATR(kl15m, 14)
	z, err := engine.ComputeZones(kl1m, atr, engine.DefaultZoneLookback)
	if err != nil || math.IsNaN(px15m) || math.IsNaN(funding) {
		return
	}

	regimeRaw := engine.ClassifyRegime(px15m, oi15m, z.WidthPct)
	regimeKey := engine.NormRegime(regimeRaw)

	msg := buildRegimeMessage(regimeRaw, px15m, funding, oi15m, z)
	logger.S().Info(strings.ReplaceAll(msg, "\n", " | "))

	// Telegram only on regime change or heartbeat; the log line above runs
	// every cycle regardless.
	heartbeat := int64(b.cfg.RegimeHeartbeatSec)
	if b.state.LastRegimeSent != regimeRaw || now.Unix()-b.state.LastRegimeAlertTs >= heartbeat {
		b.tg.SendRegime(msg)
		b.state.LastRegimeSent = regimeRaw
		b.state.LastRegimeAlertTs = now.Unix()
	}
	b.state.LastRegime = regimeRaw

	b.scanSymbol(b.cfg.Symbol, regimeRaw, regimeKey, kl1m, z, oi15m, now, false)

	if b.altEnabled[regimeKey] {
		for _, sym := range b.cfg.SetupSymbols {
			b.scanAlt(ctx, sym, regimeRaw, regimeKey, oi15m, now)
		}
	}

	b.state.LastOKTs = now.Unix()
	b.state.LastSetupTs = b.gate.CooldownSnapshot()
	b.state.LastUpdateTime = now
	if err := b.store.Save(b.state); err != nil {
		logger.S().Warnf("failed to save alert state: %v", err)
	}
}

func (b *Bot) scanAlt(ctx context.Context, sym string, regimeRaw string, regimeKey models.RegimeKey, oi15m float64, now time.Time) {
	kl1m, err1 := b.market.FuturesKlines(ctx, sym, "1m", 240)
	kl15m, err2 := b.market.FuturesKlines(ctx, sym, "15m", 80)
	if err1 != nil || err2 != nil {
		return
	}
	atr := engine.ATR(kl15m, 14)
	z, err := engine.ComputeZones(kl1m, atr, engine.DefaultZoneLookback)
	if err != nil {
		return
	}
	b.scanSymbol(sym, regimeRaw, regimeKey, kl1m, z, oi15m, now, true)
}

// scanSymbol detects and gates setups for one symbol. Secondary assets
// additionally pass the cross-asset bias gate on mean-revert setups.
func (b *Bot) scanSymbol(sym string, regimeRaw string, regimeKey models.RegimeKey, kl1m []models.Candle, z models.Zones, oi15m float64, now time.Time, secondary bool) {
	sigs := engine.DetectSetups(regimeKey, kl1m, z)

	for _, sig := range sigs {
		if !b.gate.Allowed(regimeKey, sig.Key) {
			continue
		}

		var extraParts []string
		if engine.IsMeanRevert(sig.Key) {
			ok, reason := b.gate.MeanRevertOK(z, oi15m, sig.Direction)
			if !ok {
				logger.S().Infof("SETUP blocked %s %s: %s", sym, sig.Key, reason)
				continue
			}
			if secondary {
				extraParts = append(extraParts, fmt.Sprintf("filters: width<= %.2f%% + OI_contra=%v",
					b.cfg.MeanRevertMaxWidthPct, b.cfg.OIContraFilter))

				ok2, reason2, ch := b.gate.AltBTCBiasOK(sym, sig.Direction)
				if !ok2 {
					logger.S().Infof("ALT SETUP blocked %s %s: %s", sym, sig.Key, reason2)
					continue
				}
				if !math.IsNaN(ch) {
					extraParts = append(extraParts, fmt.Sprintf("%sBTC px15m %+.2f%% (bias ok)", sym[:len(sym)-4], ch))
				}
			}
		}

		if !b.gate.CooldownOK(sym, sig.Key, now) {
			continue
		}

		setupMsg := fmt.Sprintf("🪙 %s\n%s", sym, buildSetupMessage(sig, regimeRaw, z, strings.Join(extraParts, " | ")))
		logger.S().Info("SETUP | " + strings.ReplaceAll(setupMsg, "\n", " | "))
		b.tg.SendSignal(setupMsg)

		b.emitPaperEvent(sym, sig, regimeKey, z, kl1m, oi15m)

		b.gate.MarkEmitted(sym, sig.Key, now)
	}
}

// emitPaperEvent appends a signal event for the execution loop. Only the
// mean-revert setups are wired to paper execution; sweep setups stay
// notification-only.
func (b *Bot) emitPaperEvent(sym string, sig models.SetupSignal, regimeKey models.RegimeKey, z models.Zones, kl1m []models.Candle, oi15m float64) {
	var setup string
	switch sig.Key {
	case models.SetupMeanRevertLong:
		setup = "MEAN_REVERT_LOWER_TOUCH_LONG"
	case models.SetupMeanRevertShort:
		setup = "MEAN_REVERT_UPPER_TOUCH_SHORT"
	default:
		return
	}

	closePx := kl1m[len(kl1m)-1].Close
	regime := string(regimeKey)
	if regimeKey == models.RegimeRange {
		regime = "RANGE_CHOP"
	}
	var oiPtr *float64
	if !math.IsNaN(oi15m) {
		v := oi15m
		oiPtr = &v
	}

	evt := models.SignalEvent{
		Exchange:  b.cfg.ExchangeID,
		Market:    "futures",
		Symbol:    models.ToSwapSymbol(sym),
		SymbolRaw: sym,
		Setup:     setup,
		Regime:    regime,
		Lower:     [2]float64{z.LowerLo, z.LowerHi},
		Upper:     [2]float64{z.UpperLo, z.UpperHi},
		Close:     closePx,
		WidthPct:  z.WidthPct,
		OI15m:     oiPtr,
	}
	if err := b.appender.Append(evt); err != nil {
		logger.S().Warnf("failed to append signal event: %v", err)
	}
}

// spotBias adapts the market client to the gate's BiasSource: the 15m change
// of a spot bias pair, computed from fresh 1m candles.
type spotBias struct {
	client *market.Client
}

func (s *spotBias) PxChange15m(symbol string) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	kl, err := s.client.SpotKlines(ctx, symbol, "1m", 240)
	if err != nil {
		return 0, false
	}
	ch := engine.PxChange15m(kl)
	if math.IsNaN(ch) {
		return 0, false
	}
	return ch, true
}

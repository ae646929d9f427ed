// Package reporter builds the daily paper-trading summary from the closed
// trade log and pushes it to Telegram.
package reporter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"btc-alerts/internal/logger"
	"btc-alerts/internal/models"
	"btc-alerts/internal/notifier"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
)

// Summary 存储一天内纸面交易的汇总指标
type Summary struct {
	Day      string
	Trades   int
	Wins     int
	Losses   int
	Flat     int
	Canceled int
	WinRate  float64
	TotalPnl decimal.Decimal
	AvgPnl   decimal.Decimal
	BySymbol map[string]decimal.Decimal
	ByReason map[string]int
	Best     *models.Trade
	Worst    *models.Trade
}

// LoadDay reads the closed-trade JSONL and keeps the trades whose close
// timestamp falls inside the given local day. Malformed lines are skipped.
func LoadDay(path string, day time.Time) ([]models.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	loc := day.Location()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	var out []models.Trade
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var tr models.Trade
		if err := json.Unmarshal([]byte(line), &tr); err != nil {
			logger.S().Warnf("reporter: skipping malformed trade line: %v", err)
			continue
		}
		ts, err := time.Parse(time.RFC3339, tr.TsClosed)
		if err != nil {
			continue
		}
		ts = ts.In(loc)
		if !ts.Before(dayStart) && ts.Before(dayEnd) {
			out = append(out, tr)
		}
	}
	return out, sc.Err()
}

// Summarize aggregates one day's trades. Canceled trades count separately
// and do not enter the win-rate denominator.
func Summarize(day time.Time, trades []models.Trade) *Summary {
	s := &Summary{
		Day:      day.Format("2006-01-02"),
		TotalPnl: decimal.Zero,
		AvgPnl:   decimal.Zero,
		BySymbol: make(map[string]decimal.Decimal),
		ByReason: make(map[string]int),
	}

	for i := range trades {
		tr := &trades[i]
		if tr.Status == models.StatusCanceled {
			s.Canceled++
			continue
		}
		s.Trades++
		s.TotalPnl = s.TotalPnl.Add(tr.PnlUSDT)
		s.BySymbol[tr.SymbolRaw] = s.BySymbol[tr.SymbolRaw].Add(tr.PnlUSDT)
		s.ByReason[tr.CloseReason]++

		switch tr.PnlUSDT.Sign() {
		case 1:
			s.Wins++
		case -1:
			s.Losses++
		default:
			s.Flat++
		}
		if s.Best == nil || tr.PnlUSDT.GreaterThan(s.Best.PnlUSDT) {
			s.Best = tr
		}
		if s.Worst == nil || tr.PnlUSDT.LessThan(s.Worst.PnlUSDT) {
			s.Worst = tr
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
		s.AvgPnl = s.TotalPnl.Div(decimal.NewFromInt(int64(s.Trades))).Round(4)
	}
	return s
}

// RenderTable 以表格形式输出每个交易对的当日盈亏
func RenderTable(s *Summary) string {
	t := table.NewWriter()
	t.SetTitle("Paper trades %s", s.Day)
	t.AppendHeader(table.Row{"Symbol", "PnL (USDT)"})

	syms := make([]string, 0, len(s.BySymbol))
	for sym := range s.BySymbol {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return s.BySymbol[syms[i]].GreaterThan(s.BySymbol[syms[j]])
	})
	for _, sym := range syms {
		t.AppendRow(table.Row{sym, s.BySymbol[sym].Round(4).String()})
	}
	t.AppendFooter(table.Row{"TOTAL", s.TotalPnl.Round(4).String()})
	return t.Render()
}

// BuildMessage formats the Telegram text.
func BuildMessage(s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 PAPER DAILY REPORT (%s)\n", s.Day)
	if s.Trades == 0 && s.Canceled == 0 {
		b.WriteString("No trades closed today.")
		return b.String()
	}
	fmt.Fprintf(&b, "Closed: %d | W/L/F: %d/%d/%d | Canceled: %d\n",
		s.Trades, s.Wins, s.Losses, s.Flat, s.Canceled)
	fmt.Fprintf(&b, "Win rate: %.1f%%\n", s.WinRate)
	fmt.Fprintf(&b, "PnL: %s USDT (avg %s)\n", s.TotalPnl.Round(4), s.AvgPnl)

	if len(s.ByReason) > 0 {
		reasons := make([]string, 0, len(s.ByReason))
		for r := range s.ByReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		parts := make([]string, 0, len(reasons))
		for _, r := range reasons {
			parts = append(parts, fmt.Sprintf("%s×%d", r, s.ByReason[r]))
		}
		fmt.Fprintf(&b, "Exits: %s\n", strings.Join(parts, ", "))
	}
	if s.Best != nil {
		fmt.Fprintf(&b, "Best: %s %s %s USDT\n", s.Best.SymbolRaw, s.Best.Setup, s.Best.PnlUSDT.Round(4))
	}
	if s.Worst != nil && s.Worst != s.Best {
		fmt.Fprintf(&b, "Worst: %s %s %s USDT\n", s.Worst.SymbolRaw, s.Worst.Setup, s.Worst.PnlUSDT.Round(4))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Run generates and delivers the report for the current local day.
func Run(cfg *models.Config, tg *notifier.Telegram, day time.Time) error {
	trades, err := LoadDay(cfg.PaperOutJSONL, day)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	s := Summarize(day, trades)

	for _, line := range strings.Split(RenderTable(s), "\n") {
		logger.S().Info(line)
	}
	msg := BuildMessage(s)
	logger.S().Info(strings.ReplaceAll(msg, "\n", " | "))
	tg.SendRegime(msg)
	return nil
}

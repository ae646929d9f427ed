package ticker

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"btc-alerts/internal/logger"
	"btc-alerts/internal/models"

	"github.com/gorilla/websocket"
)

const fstreamBase = "wss://fstream.binance.com/stream?streams="

// markPriceMessage is one frame from the combined mark-price stream.
type markPriceMessage struct {
	Data struct {
		EventType string `json:"e"`
		Symbol    string `json:"s"`
		MarkPrice string `json:"p"`
	} `json:"data"`
}

// WSSource streams Binance futures mark prices over websocket and caches the
// latest value per symbol. It reconnects with exponential backoff; while
// disconnected, LastPrice keeps serving the last cached values so a brief
// stream outage does not stall the executor. Values older than staleAfter
// are discarded instead of served.
type WSSource struct {
	symbols    []string
	staleAfter time.Duration

	mu     sync.RWMutex
	prices map[string]stampedPrice
	stopCh chan struct{}
}

type stampedPrice struct {
	px float64
	at time.Time
}

// NewWSSource starts the stream for the given raw symbols (e.g. BTCUSDT).
func NewWSSource(symbols []string) *WSSource {
	w := &WSSource{
		symbols:    symbols,
		staleAfter: 30 * time.Second,
		prices:     make(map[string]stampedPrice),
		stopCh:     make(chan struct{}),
	}
	go w.run()
	return w
}

// LastPrice returns the most recent mark price for symbol.
func (w *WSSource) LastPrice(symbol string) (float64, bool) {
	w.mu.RLock()
	sp, ok := w.prices[strings.ToUpper(symbol)]
	w.mu.RUnlock()
	if !ok || time.Since(sp.at) > w.staleAfter {
		return 0, false
	}
	return sp.px, true
}

// Close stops the stream.
func (w *WSSource) Close() {
	close(w.stopCh)
}

func (w *WSSource) run() {
	backoff := time.Second
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		if err := w.readLoop(); err != nil {
			logger.S().Warnf("mark-price stream dropped: %v, reconnecting in %s", err, backoff)
		}

		select {
		case <-w.stopCh:
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (w *WSSource) readLoop() error {
	streams := make([]string, 0, len(w.symbols))
	for _, s := range w.symbols {
		streams = append(streams, strings.ToLower(s)+"@markPrice@1s")
	}
	url := fstreamBase + strings.Join(streams, "/")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.S().Infof("mark-price stream connected (%d symbols)", len(w.symbols))

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			case <-done:
				return
			case <-w.stopCh:
				return
			}
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return nil
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg markPriceMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Data.EventType != "markPriceUpdate" {
			continue
		}
		px := models.SafeFloat(msg.Data.MarkPrice)
		if !(px > 0) {
			continue
		}
		w.mu.Lock()
		w.prices[msg.Data.Symbol] = stampedPrice{px: px, at: time.Now()}
		w.mu.Unlock()
	}
}

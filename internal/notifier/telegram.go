// Package notifier delivers human-readable summaries to Telegram. Delivery
// failures are logged and swallowed: notifications must never break the
// core loops.
package notifier

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"btc-alerts/internal/logger"
)

// Telegram sends messages to two channels: the regime channel (market state,
// health notices, reports) and the signals channel (gated setups). When no
// dedicated signals chat is configured, signals fall back to the regime chat.
type Telegram struct {
	botToken      string
	regimeChatID  string
	signalsChatID string
	client        *http.Client
}

// NewTelegram reads nothing itself; the caller passes credentials from the
// environment. An empty token yields a disabled notifier whose sends are
// no-ops.
func NewTelegram(botToken, regimeChatID, signalsChatID string) *Telegram {
	return &Telegram{
		botToken:      strings.TrimSpace(botToken),
		regimeChatID:  strings.TrimSpace(regimeChatID),
		signalsChatID: strings.TrimSpace(signalsChatID),
		client:        &http.Client{Timeout: 20 * time.Second},
	}
}

// Enabled reports whether the notifier can send anything at all.
func (t *Telegram) Enabled() bool {
	return t.botToken != "" && t.regimeChatID != ""
}

// SendRegime posts to the regime channel.
func (t *Telegram) SendRegime(text string) {
	t.send(t.regimeChatID, text)
}

// SendSignal posts to the signals channel, falling back to the regime one.
func (t *Telegram) SendSignal(text string) {
	chat := t.signalsChatID
	if chat == "" {
		chat = t.regimeChatID
	}
	t.send(chat, text)
}

func (t *Telegram) send(chatID, text string) {
	if t.botToken == "" || chatID == "" {
		return
	}
	apiURL := "https://api.telegram.org/bot" + t.botToken + "/sendMessage"
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)

	resp, err := t.client.PostForm(apiURL, form)
	if err != nil {
		logger.S().Warnf("telegram send failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		logger.S().Warnf("telegram send failed HTTP %d: %s", resp.StatusCode, string(body))
	}
}

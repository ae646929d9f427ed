package market

import (
	"fmt"
	"sync"
	"time"
)

// Health alert policy: one DEGRADED alert after 3 minutes of continuous
// failure, then silence for 30 minutes; one RECOVERED alert on success.
const (
	degradedAfter = 180 * time.Second
	degradedGap   = 30 * time.Minute
)

type sourceHealth struct {
	downSince        time.Time
	degradedSent     bool
	lastDegradedSent time.Time
}

// HealthTracker keeps one record per upstream source and emits degradation
// and recovery notices through the notify callback. It exists to keep the
// alert channel quiet during transient API hiccups.
type HealthTracker struct {
	mu      sync.Mutex
	sources map[string]*sourceHealth
	notify  func(text string)
	now     func() time.Time
}

// NewHealthTracker tracks the named sources. notify may be nil.
func NewHealthTracker(sources []string, notify func(string)) *HealthTracker {
	m := make(map[string]*sourceHealth, len(sources))
	for _, s := range sources {
		m[s] = &sourceHealth{}
	}
	return &HealthTracker{sources: m, notify: notify, now: time.Now}
}

// RecordFailure marks a failed request against source.
func (h *HealthTracker) RecordFailure(source string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.sources[source]
	if !ok {
		return
	}
	now := h.now()
	if st.downSince.IsZero() {
		st.downSince = now
	}
	if now.Sub(st.downSince) < degradedAfter {
		return
	}
	if st.degradedSent {
		return
	}
	if !st.lastDegradedSent.IsZero() && now.Sub(st.lastDegradedSent) < degradedGap {
		return
	}

	st.degradedSent = true
	st.lastDegradedSent = now
	if h.notify != nil {
		h.notify(fmt.Sprintf("⚠️ DATA DEGRADED: %s timeouts/connection issues. Retrying…", source))
	}
}

// RecordSuccess marks a successful request; if the source was down it emits
// a single recovery notice.
func (h *HealthTracker) RecordSuccess(source string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.sources[source]
	if !ok || st.downSince.IsZero() {
		return
	}
	downFor := int(h.now().Sub(st.downSince).Seconds())
	wasDegraded := st.degradedSent
	st.downSince = time.Time{}
	st.degradedSent = false
	if wasDegraded && h.notify != nil {
		h.notify(fmt.Sprintf("✅ DATA OK again: %s recovered after %ds", source, downFor))
	}
}

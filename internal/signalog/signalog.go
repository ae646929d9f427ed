// Package signalog implements the append-only JSONL signal event log that
// connects the signal loop to the execution loop. It is a single-appender,
// single-tailer file: the appender writes one JSON object per line, the
// tailer resumes from a persisted byte offset and skips malformed lines.
package signalog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"btc-alerts/internal/logger"
	"btc-alerts/internal/models"
)

// Appender appends signal events to the log file, stamping the emission
// timestamp. Errors are returned but the signal loop treats them as
// non-fatal.
type Appender struct {
	path string
}

// NewAppender creates an appender for the given path.
func NewAppender(path string) *Appender {
	return &Appender{path: path}
}

// Append stamps evt.Ts and writes one line. The parent directory is created
// on first use.
func (a *Appender) Append(evt models.SignalEvent) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}
	evt.Ts = time.Now().Format(time.RFC3339)

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

// Tailer reads new events from the log starting at a byte offset.
type Tailer struct {
	path string
}

// NewTailer creates a tailer for the given path.
func NewTailer(path string) *Tailer {
	return &Tailer{path: path}
}

// ReadFrom returns the events appended since offset and the new offset. A
// missing file yields (offset, nil, nil). Malformed lines are skipped
// individually; a parse failure never halts tailing. Only complete lines
// advance the offset, so a partially written tail line is re-read next time.
func (t *Tailer) ReadFrom(offset int64) (int64, []models.SignalEvent, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return offset, nil, nil
		}
		return offset, nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return offset, nil, err
	}

	var out []models.SignalEvent
	pos := offset
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// Incomplete final line: leave it for the next poll.
			break
		}
		pos += int64(len(line))
		var evt models.SignalEvent
		if jsonErr := json.Unmarshal(line, &evt); jsonErr != nil {
			logger.S().Warnf("signalog: skipping malformed line at offset %d: %v", pos-int64(len(line)), jsonErr)
			continue
		}
		out = append(out, evt)
	}
	return pos, out, nil
}

// EventKey derives a stable identity for dedup purposes.
func EventKey(evt models.SignalEvent) string {
	return evt.Ts + "|" + evt.SymbolRaw + "|" + evt.Setup
}

// DedupSet is a bounded FIFO of recently seen event identities. It guards
// the execution loop against at-least-once redelivery when the tail cursor
// is stale after a restart.
type DedupSet struct {
	max  int
	keys []string
	seen map[string]bool
}

// NewDedupSet builds a set holding at most max identities, seeded from the
// persisted key list (oldest first).
func NewDedupSet(max int, seed []string) *DedupSet {
	d := &DedupSet{max: max, seen: make(map[string]bool)}
	for _, k := range seed {
		d.add(k)
	}
	return d
}

// Accept returns false when the key was already seen; otherwise it records
// the key and returns true.
func (d *DedupSet) Accept(key string) bool {
	if d.seen[key] {
		return false
	}
	d.add(key)
	return true
}

// Keys exports the retained identities, oldest first, for persistence.
func (d *DedupSet) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *DedupSet) add(key string) {
	if d.seen[key] {
		return
	}
	d.keys = append(d.keys, key)
	d.seen[key] = true
	for d.max > 0 && len(d.keys) > d.max {
		delete(d.seen, d.keys[0])
		d.keys = d.keys[1:]
	}
}

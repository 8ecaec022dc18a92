// Package audit appends one JSON object per line for every broker
// request, response and error.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event kinds.
const (
	EventRequest  = "request"
	EventResponse = "response"
	EventError    = "error"
)

// Mask replaces redacted values.
const Mask = "***"

var sensitive = map[string]bool{
	"accountid":     true,
	"account_id":    true,
	"account":       true,
	"token":         true,
	"authorization": true,
	"apikey":        true,
	"api_key":       true,
	"secret":        true,
}

// Redact returns a copy of m with account and credential fields masked,
// recursing into nested objects and arrays.
func Redact(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitive[strings.ToLower(k)] {
			out[k] = Mask
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Redact(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = redactValue(t[i])
		}
		return cp
	default:
		return v
	}
}

// Sink receives audit records.
type Sink interface {
	Log(rec map[string]any) error
}

// Logger writes NDJSON records. ts_epoch_ms never goes backwards even if the
// wall clock does.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
	lastMs int64
}

// Open appends to path, creating parent directories.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// New writes to w.
func New(w io.Writer) *Logger { return &Logger{w: w, now: time.Now} }

// WithClock swaps the time source; for tests.
func (l *Logger) WithClock(now func() time.Time) *Logger {
	l.now = now
	return l
}

// Log redacts rec, stamps it and appends it as one line.
func (l *Logger) Log(rec map[string]any) error {
	out := Redact(rec)
	if out == nil {
		out = map[string]any{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := out["ts_epoch_ms"]; !ok {
		ms := l.now().UnixMilli()
		if ms < l.lastMs {
			ms = l.lastMs
		}
		l.lastMs = ms
		out["ts_epoch_ms"] = ms
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}
	b = append(b, '\n')
	if _, err := l.w.Write(b); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}

// Close closes the underlying file when the logger owns one.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Discard drops every record.
type Discard struct{}

func (Discard) Log(map[string]any) error { return nil }

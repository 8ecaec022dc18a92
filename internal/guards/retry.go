package guards

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"
)

// RetryPolicy tunes PlaceOrder. Zero fields take the defaults below.
type RetryPolicy struct {
	Timeout           time.Duration
	MaxRetries        int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	RetryableStatuses []int
	Jitter            float64 // fraction, 0.1 = ±10%
}

// DefaultRetryPolicy: 5s timeout, 3 retries (4 attempts), 200ms..2s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMax:        2 * time.Second,
		RetryableStatuses: []int{429, 500, 502, 503, 504},
		Jitter:            0.1,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BackoffInitial <= 0 {
		p.BackoffInitial = d.BackoffInitial
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = d.BackoffMax
	}
	if p.RetryableStatuses == nil {
		p.RetryableStatuses = d.RetryableStatuses
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Backoff is min(max, initial*2^(attempt-1)) for attempt >= 1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BackoffInitial) * math.Pow(2, float64(attempt-1))
	if d > float64(p.BackoffMax) || math.IsInf(d, 1) {
		return p.BackoffMax
	}
	return time.Duration(d)
}

// Jittered spreads d by ±Jitter using r in [0,1).
func (p RetryPolicy) Jittered(d time.Duration, r float64) time.Duration {
	if p.Jitter == 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + (2*r-1)*p.Jitter))
}

// Retryable reports whether status is in the retryable set.
func (p RetryPolicy) Retryable(status int) bool {
	return slices.Contains(p.RetryableStatuses, status)
}

var transientSubstrings = []string{
	"timeout",
	"timed out",
	"connection reset",
	"reset by peer",
	"temporarily unavailable",
	"temporarily_unavailable",
	"rate limit",
	"too many requests",
	"unreachable",
	"connection aborted",
	"broken pipe",
	"network is unreachable",
	"econnreset",
	"econnaborted",
	"etimedout",
	"ehostunreach",
	"eai_again",
}

// IsTransient reports whether a transport error message looks like a
// network blip worth retrying.
func IsTransient(msg string) bool {
	m := strings.ToLower(strings.TrimSpace(msg))
	if m == "" {
		return false
	}
	for _, s := range transientSubstrings {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

// ShouldRetry: with a status code, retry iff it is retryable; otherwise
// retry iff the error message is transient.
func (p RetryPolicy) ShouldRetry(status *int, errMsg string) bool {
	if status != nil {
		return p.Retryable(*status)
	}
	return IsTransient(errMsg)
}

// StatusCode extracts an integer statusCode, falling back to code. JSON
// numbers decode as float64; only integral values count.
func StatusCode(resp map[string]any) *int {
	for _, k := range []string{"statusCode", "code"} {
		if v, ok := asInt(resp[k]); ok {
			return &v
		}
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

var errorFields = []string{"error", "errorMessage", "message"}

// ErrorMessage returns the first non-empty error-ish field of resp.
func ErrorMessage(resp map[string]any) string {
	for _, k := range errorFields {
		v, ok := resp[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return ""
}

// IsImplicitSuccess accepts a response that carries neither a status code nor
// any error/message field. Some brokers answer a placed order with just the
// order body.
func IsImplicitSuccess(resp map[string]any) bool {
	if resp == nil {
		return false
	}
	if StatusCode(resp) != nil {
		return false
	}
	for _, k := range append([]string{"statusCode", "code"}, errorFields...) {
		if _, ok := resp[k]; ok {
			return false
		}
	}
	return true
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeRetry
	outcomeFail
)

// classify decides what one response means. The status check runs before the
// implicit-success check.
func (p RetryPolicy) classify(resp map[string]any) (outcome, *int, string) {
	status := StatusCode(resp)
	if status != nil {
		if p.Retryable(*status) {
			return outcomeRetry, status, ""
		}
		return outcomeOK, status, ""
	}
	if IsImplicitSuccess(resp) {
		return outcomeOK, nil, ""
	}
	msg := ErrorMessage(resp)
	if msg == "" {
		msg = "unrecognised broker response"
	}
	return outcomeFail, nil, msg
}

package guards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chidi150c/vwaplive/internal/audit"
	"github.com/chidi150c/vwaplive/internal/broker"
)

// ErrOrderFailed wraps every terminal PlaceOrder failure.
var ErrOrderFailed = errors.New("order failed")

var (
	metricOrdersAttempted = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_order_attempts_total", Help: "POSTs issued to the broker, retries included"})
	metricOrdersPlaced    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_placed_total", Help: "Orders that reached terminal success"})
	metricOrdersFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_failed_total", Help: "Orders that failed terminally or exhausted retries"})
	metricOrderRetries    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_order_retries_total", Help: "Backoff sleeps taken before a retry"})
	metricAPILatency      = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bot_api_latency_seconds",
		Help:    "Broker call latency by endpoint and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})
)

func init() {
	prometheus.MustRegister(
		metricOrdersAttempted, metricOrdersPlaced, metricOrdersFailed,
		metricOrderRetries, metricAPILatency,
	)
}

// SafeBroker wraps a broker client with idempotency keys, bounded retries
// with exponential backoff, response classification and an audit trail.
// One PlaceOrder runs at a time per engine; SafeBroker itself keeps no
// per-order state between calls.
type SafeBroker struct {
	inner    broker.Client
	audit    audit.Sink
	policy   RetryPolicy
	payload  broker.PayloadOptions
	endpoint string
	log      *slog.Logger

	sleep func(time.Duration)
	rand  func() float64
	now   func() time.Time
}

// Option customises a SafeBroker.
type Option func(*SafeBroker)

// WithSleep replaces the backoff sleep.
func WithSleep(f func(time.Duration)) Option { return func(s *SafeBroker) { s.sleep = f } }

// WithRand replaces the jitter source; f returns values in [0,1).
func WithRand(f func() float64) Option { return func(s *SafeBroker) { s.rand = f } }

// WithClock replaces the clock used for latency.
func WithClock(f func() time.Time) Option { return func(s *SafeBroker) { s.now = f } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *SafeBroker) { s.log = l } }

func NewSafeBroker(inner broker.Client, sink audit.Sink, policy RetryPolicy, payload broker.PayloadOptions, opts ...Option) *SafeBroker {
	if sink == nil {
		sink = audit.Discard{}
	}
	s := &SafeBroker{
		inner:    inner,
		audit:    sink,
		policy:   policy.withDefaults(),
		payload:  payload,
		endpoint: broker.EndpointPlaceOrder,
		log:      slog.Default(),
		sleep:    time.Sleep,
		rand:     rand.Float64,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PlaceOrder sends intent with at most MaxRetries+1 attempts under one
// idempotency key. The returned result is always populated; err is non-nil
// (wrapping ErrOrderFailed) exactly when the result is not ok.
//
// Cancelling ctx does not interrupt an attempt already in flight.
func (s *SafeBroker) PlaceOrder(ctx context.Context, intent broker.OrderIntent) (broker.OrderResult, error) {
	key := intent.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	intent.IdempotencyKey = key
	res := broker.OrderResult{IdempotencyKey: key}

	payload, err := broker.BuildPayload(intent, s.payload)
	if err != nil {
		return s.fail(res, err.Error())
	}

	callCtx := context.WithoutCancel(ctx)
	maxAttempts := s.policy.MaxRetries + 1
	var lastErr string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		s.record(map[string]any{
			"event":      audit.EventRequest,
			"endpoint":   s.endpoint,
			"attempt":    attempt,
			"payload":    payload,
			"request_id": key,
		})

		metricOrdersAttempted.Inc()
		start := s.now()
		resp, callErr := s.inner.Post(callCtx, s.endpoint, payload, s.policy.Timeout)
		elapsed := s.now().Sub(start)

		rec := map[string]any{
			"endpoint":   s.endpoint,
			"attempt":    attempt,
			"request_id": key,
		}
		if callErr != nil {
			var status *int
			label := "error"
			var se *broker.HTTPStatusError
			if errors.As(callErr, &se) {
				status = &se.Status
				label = statusLabel(status)
				res.LastStatus = status
				res.Response = resp
				rec["statusCode"] = se.Status
				rec["response"] = resp
			}
			lastErr = callErr.Error()
			rec["event"] = audit.EventError
			rec["error"] = lastErr
			s.record(rec)
			metricAPILatency.WithLabelValues(s.endpoint, label).Observe(elapsed.Seconds())

			if !s.policy.ShouldRetry(status, lastErr) {
				return s.fail(res, lastErr)
			}
			if status != nil {
				// exhaustion reports the last HTTP status
				lastErr = ""
			}
		} else {
			lastErr = ""
			verdict, status, msg := s.policy.classify(resp)
			if status != nil {
				res.LastStatus = status
			}
			res.Response = resp
			rec["event"] = audit.EventResponse
			rec["response"] = resp
			rec["statusCode"] = status
			s.record(rec)
			metricAPILatency.WithLabelValues(s.endpoint, statusLabel(status)).Observe(elapsed.Seconds())

			switch verdict {
			case outcomeOK:
				res.Status = broker.StatusOK
				metricOrdersPlaced.Inc()
				s.log.Info("[guards] order placed", "key", key, "side", intent.Side, "qty", intent.Quantity, "attempts", attempt)
				return res, nil
			case outcomeFail:
				return s.fail(res, msg)
			}
		}

		if attempt < maxAttempts {
			d := s.policy.Jittered(s.policy.Backoff(attempt), s.rand())
			s.log.Warn("[guards] retrying order", "key", key, "attempt", attempt, "backoff", d, "status", res.LastStatus, "error", lastErr)
			metricOrderRetries.Inc()
			s.sleep(d)
		}
	}

	switch {
	case lastErr != "":
		return s.fail(res, lastErr)
	case res.LastStatus != nil:
		return s.fail(res, "HTTP "+strconv.Itoa(*res.LastStatus))
	default:
		return s.fail(res, "Unknown error")
	}
}

func (s *SafeBroker) fail(res broker.OrderResult, msg string) (broker.OrderResult, error) {
	res.Status = broker.StatusError
	res.Err = msg
	metricOrdersFailed.Inc()
	s.log.Error("[guards] order failed", "key", res.IdempotencyKey, "attempts", res.Attempts, "error", msg)
	return res, fmt.Errorf("%w: %s", ErrOrderFailed, msg)
}

func (s *SafeBroker) record(rec map[string]any) {
	if err := s.audit.Log(rec); err != nil {
		s.log.Warn("[guards] audit write failed", "error", err)
	}
}

func statusLabel(status *int) string {
	if status == nil {
		return "none"
	}
	return strconv.Itoa(*status)
}

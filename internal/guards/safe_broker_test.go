package guards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/vwaplive/internal/audit"
	"github.com/chidi150c/vwaplive/internal/broker"
	"github.com/chidi150c/vwaplive/internal/market"
)

type reply struct {
	resp map[string]any
	err  error
}

// scriptedClient returns replies in order and records every payload.
type scriptedClient struct {
	replies  []reply
	payloads []map[string]any
}

func (c *scriptedClient) Post(_ context.Context, _ string, payload map[string]any, _ time.Duration) (map[string]any, error) {
	c.payloads = append(c.payloads, payload)
	i := len(c.payloads) - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i].resp, c.replies[i].err
}

func newTestBroker(c broker.Client, sink audit.Sink, sleeps *[]time.Duration) *SafeBroker {
	return NewSafeBroker(c, sink, DefaultRetryPolicy(),
		broker.PayloadOptions{AccountID: "ACC-42", TickSize: 0.03125},
		WithSleep(func(d time.Duration) { *sleeps = append(*sleeps, d) }),
		WithRand(func() float64 { return 0.5 }),
	)
}

func intent() broker.OrderIntent {
	return broker.OrderIntent{Symbol: "ZN", Side: market.SideBuy, Quantity: 1}
}

func TestRetryThenSuccessSingleKey(t *testing.T) {
	c := &scriptedClient{replies: []reply{
		{err: errors.New("dial tcp: i/o timeout")},
		{resp: map[string]any{"statusCode": 503}},
		{resp: map[string]any{"statusCode": 200, "orderId": "O-1"}},
	}}
	var sleeps []time.Duration
	placedBefore := testutil.ToFloat64(metricOrdersPlaced)

	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, c.payloads, res.Attempts, "attempts equal POSTs issued")
	assert.Equal(t, 200, *res.LastStatus)
	assert.Equal(t, "O-1", res.Response["orderId"])

	require.NotEmpty(t, res.IdempotencyKey)
	for _, p := range c.payloads {
		assert.Equal(t, res.IdempotencyKey, p["clientOrderId"])
	}
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, sleeps)
	assert.Equal(t, placedBefore+1, testutil.ToFloat64(metricOrdersPlaced))
}

func TestProvidedKeyIsReused(t *testing.T) {
	c := &scriptedClient{replies: []reply{{resp: map[string]any{"statusCode": 500}}, {resp: map[string]any{"orderId": "z"}}}}
	var sleeps []time.Duration
	in := intent()
	in.IdempotencyKey = "fixed-key"
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "fixed-key", res.IdempotencyKey)
	assert.Equal(t, "fixed-key", c.payloads[0]["clientOrderId"])
	assert.Equal(t, "fixed-key", c.payloads[1]["clientOrderId"])
}

func TestTerminalErrorNoRetry(t *testing.T) {
	c := &scriptedClient{replies: []reply{{err: errors.New("invalid account")}}}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.ErrorIs(t, err, ErrOrderFailed)
	assert.Equal(t, broker.StatusError, res.Status)
	assert.Equal(t, "invalid account", res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, sleeps)
}

func TestErrorShapedResponseIsTerminal(t *testing.T) {
	c := &scriptedClient{replies: []reply{{resp: map[string]any{"message": "market closed"}}}}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.Error(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, "market closed", res.Err)
	assert.Equal(t, 1, res.Attempts)
}

func TestExhaustionCarriesLastStatus(t *testing.T) {
	c := &scriptedClient{replies: []reply{
		{resp: map[string]any{"statusCode": 500}},
		{resp: map[string]any{"statusCode": 502}},
		{resp: map[string]any{"statusCode": 429}},
		{resp: map[string]any{"statusCode": 503}},
	}}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.ErrorIs(t, err, ErrOrderFailed)
	assert.Equal(t, 4, res.Attempts)
	assert.Len(t, c.payloads, 4)
	assert.Equal(t, 503, *res.LastStatus)
	assert.Equal(t, "HTTP 503", res.Err)
	assert.Len(t, sleeps, 3)
}

func TestExhaustionOnTransportError(t *testing.T) {
	c := &scriptedClient{replies: []reply{{err: errors.New("connection reset by peer")}}}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.Error(t, err)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, "connection reset by peer", res.Err)
	assert.Nil(t, res.LastStatus)
}

func TestImplicitSuccess(t *testing.T) {
	c := &scriptedClient{replies: []reply{{resp: map[string]any{"orderId": "77"}}}}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Nil(t, res.LastStatus)
}

func TestNonRetryableStatusIsSuccess(t *testing.T) {
	c := &scriptedClient{replies: []reply{{resp: map[string]any{"statusCode": 400}}}}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 400, *res.LastStatus)
}

func TestAuditTrailRedactsAccount(t *testing.T) {
	var buf bytes.Buffer
	c := &scriptedClient{replies: []reply{{err: errors.New("timeout")}, {resp: map[string]any{"statusCode": 200}}}}
	var sleeps []time.Duration
	_, err := newTestBroker(c, audit.New(&buf), &sleeps).PlaceOrder(context.Background(), intent())
	require.NoError(t, err)

	assert.NotContains(t, buf.String(), "ACC-42")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	var events []string
	for _, l := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &rec))
		events = append(events, rec["event"].(string))
		assert.Contains(t, rec, "ts_epoch_ms")
	}
	assert.Equal(t, []string{"request", "error", "request", "response"}, events)
	assert.Equal(t, "ACC-42", c.payloads[0]["accountId"], "the broker still gets the real account")
}

func TestInvalidIntentNeverPosts(t *testing.T) {
	c := &scriptedClient{replies: []reply{{resp: map[string]any{}}}}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), broker.OrderIntent{Symbol: "ZN", Side: market.SideBuy})
	require.Error(t, err)
	assert.Equal(t, 0, res.Attempts)
	assert.Empty(t, c.payloads)
}

func TestCancelledContextStillCompletesAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &ctxCheckingClient{}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(ctx, intent())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.NoError(t, c.sawErr)
}

type ctxCheckingClient struct{ sawErr error }

func (c *ctxCheckingClient) Post(ctx context.Context, _ string, _ map[string]any, _ time.Duration) (map[string]any, error) {
	c.sawErr = ctx.Err()
	return map[string]any{"statusCode": 200}, nil
}

func TestHTTPRejectionIsNeverPlaced(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"insufficient margin"}`))
	}))
	defer srv.Close()

	var sleeps []time.Duration
	res, err := newTestBroker(broker.NewHTTPClient(srv.URL, ""), nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.ErrorIs(t, err, ErrOrderFailed)
	assert.False(t, res.OK())
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, posts)
	require.NotNil(t, res.LastStatus)
	assert.Equal(t, 400, *res.LastStatus)
	assert.Contains(t, res.Err, "insufficient margin")
	assert.Empty(t, sleeps)
}

func TestHTTPRetryableStatusIsRetried(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		if posts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"orderId":"O-9","success":true}`))
	}))
	defer srv.Close()

	var sleeps []time.Duration
	res, err := newTestBroker(broker.NewHTTPClient(srv.URL, ""), nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "O-9", res.Response["orderId"])
	assert.Len(t, sleeps, 1)
}

func TestHTTPRetryableStatusExhaustion(t *testing.T) {
	c := &scriptedClient{replies: []reply{{
		resp: map[string]any{"statusCode": 502},
		err:  &broker.HTTPStatusError{Status: 502},
	}}}
	var sleeps []time.Duration
	res, err := newTestBroker(c, nil, &sleeps).PlaceOrder(context.Background(), intent())
	require.ErrorIs(t, err, ErrOrderFailed)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, "HTTP 502", res.Err)
}

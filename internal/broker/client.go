// Package broker defines the broker contract the execution layer talks to
// and the order types that cross it. Responses are loose JSON objects: some
// brokers return statusCode or code, some return neither.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/chidi150c/vwaplive/internal/market"
)

// EndpointPlaceOrder is the only endpoint the engine posts to.
const EndpointPlaceOrder = "placeOrder"

// Client posts a payload to a broker endpoint and returns the decoded
// response. A non-nil error means the call failed: either no usable response
// arrived (transport failure) or the transport itself rejected the request,
// reported as a *HTTPStatusError alongside the decoded body. Status codes carried
// inside a successful body are left for the caller to classify.
type Client interface {
	Post(ctx context.Context, endpoint string, payload map[string]any, timeout time.Duration) (map[string]any, error)
}

// HTTPStatusError is a non-2xx HTTP reply.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, body)
}

// OrderIntent is one order the engine wants placed.
type OrderIntent struct {
	Symbol         string
	Side           market.Side
	Quantity       float64
	LimitPrice     *float64 // nil for market orders
	IdempotencyKey string   // reused across every retry of this intent
}

// Result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// OrderResult is the terminal outcome of PlaceOrder.
type OrderResult struct {
	Status         string
	Response       map[string]any
	Err            string
	Attempts       int
	IdempotencyKey string
	LastStatus     *int
}

// OK reports terminal success.
func (r OrderResult) OK() bool { return r.Status == StatusOK }

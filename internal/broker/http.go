package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClient posts JSON to <BaseURL>/<endpoint>.
type HTTPClient struct {
	rc *resty.Client
}

// NewHTTPClient builds a resty-backed client. token, when set, is sent as a
// bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if token != "" {
		rc.SetAuthToken(token)
	}
	return &HTTPClient{rc: rc}
}

// Post sends one request; it never retries. A non-2xx status returns the
// decoded body together with a *HTTPStatusError; it is never a success.
func (c *HTTPClient) Post(ctx context.Context, endpoint string, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/" + strings.TrimLeft(endpoint, "/"))
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, fmt.Errorf("timeout after %s: %w", timeout, err)
		}
		return nil, err
	}
	out := decodeResponse(resp.StatusCode(), resp.Body())
	if status := resp.StatusCode(); status/100 != 2 {
		return out, &HTTPStatusError{Status: status, Body: strings.TrimSpace(string(resp.Body()))}
	}
	return out, nil
}

func decodeResponse(status int, body []byte) map[string]any {
	out := map[string]any{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &out); err != nil || out == nil {
			out = map[string]any{"raw": string(body)}
			if status/100 == 2 {
				out["statusCode"] = status
			}
		}
	}
	if status/100 != 2 {
		if _, ok := out["statusCode"]; !ok {
			out["statusCode"] = status
		}
	}
	return out
}

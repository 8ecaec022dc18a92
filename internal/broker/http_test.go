package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/placeOrder", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"orderId":"A1","success":true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/api/", "tok")
	resp, err := c.Post(context.Background(), EndpointPlaceOrder, map[string]any{"symbol": "ZN", "quantity": 1}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "A1", resp["orderId"])
	_, hasStatus := resp["statusCode"]
	assert.False(t, hasStatus, "2xx bodies are passed through untouched")
	assert.Equal(t, "ZN", got["symbol"])
}

func TestHTTPClientServerErrorIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"busy"}`))
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(srv.URL, "").Post(context.Background(), "placeOrder", map[string]any{}, time.Second)
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Status)
	assert.Equal(t, `HTTP 503: {"message":"busy"}`, err.Error())
	assert.Equal(t, 503, resp["statusCode"])
	assert.Equal(t, "busy", resp["message"])
}

func TestHTTPClientRejectionIsAnError(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"insufficient margin"}`))
		}))

		resp, err := NewHTTPClient(srv.URL, "").Post(context.Background(), "placeOrder", map[string]any{}, time.Second)
		srv.Close()
		var se *HTTPStatusError
		require.ErrorAs(t, err, &se, "status %d", code)
		assert.Equal(t, code, se.Status)
		assert.Equal(t, "insufficient margin", resp["error"])
	}
}

func TestHTTPClientKeepsBodyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":422}`))
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(srv.URL, "").Post(context.Background(), "placeOrder", map[string]any{}, time.Second)
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 400, se.Status, "the HTTP status decides, not the body")
	assert.Equal(t, float64(422), resp["statusCode"])
}

func TestHTTPClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "").Post(context.Background(), "placeOrder", map[string]any{}, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestDecodeResponseNonObject(t *testing.T) {
	resp := decodeResponse(200, []byte(`"accepted"`))
	assert.Equal(t, `"accepted"`, resp["raw"])
	assert.Equal(t, 200, resp["statusCode"])

	assert.Empty(t, decodeResponse(204, nil))
}

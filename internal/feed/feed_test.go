package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/vwaplive/internal/market"
)

func drain(t *testing.T, f Feed) []market.Bar {
	t.Helper()
	var out []market.Bar
	for {
		b, err := f.Next(context.Background())
		if errors.Is(err, ErrExhausted) {
			return out
		}
		require.NoError(t, err)
		out = append(out, b)
	}
}

func ts(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

const sampleCSV = `time,open,high,low,close,volume
2025-07-14T14:35:00Z,115.46875,115.46875,115.40625,115.40625,2233
2025-07-14T14:40:00Z,115.40625,115.5,115.375,115.5,1800
2025-07-14T14:45:00Z,115.5,115.53125,115.46875,115.5,
`

func TestCSVFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zn_5m.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	f, err := OpenCSV(path)
	require.NoError(t, err)
	defer f.Close()

	bars := drain(t, f)
	require.Len(t, bars, 3)
	assert.Equal(t, ts("2025-07-14T14:35:00Z"), bars[0].Time)
	assert.Equal(t, 115.40625, bars[0].Close)
	assert.Equal(t, 2233.0, bars[0].Volume)
	assert.Equal(t, 0.0, bars[2].Volume)

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, ErrExhausted, "exhaustion is sticky")
}

func TestCSVHeaderAliasesAndErrors(t *testing.T) {
	c, err := newCSV(strings.NewReader("timestamp,close,open,low,high\n1752503700,2,1,0.5,3\n"))
	require.NoError(t, err)
	b, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, market.Bar{Time: ts("2025-07-14T14:35:00Z"), Open: 1, High: 3, Low: 0.5, Close: 2}, b)

	_, err = newCSV(strings.NewReader("time,open,high,low\n"))
	assert.ErrorContains(t, err, `missing column "close"`)

	c, err = newCSV(strings.NewReader("time,open,high,low,close\nbad,1,1,1,1\n"))
	require.NoError(t, err)
	_, err = c.Next(context.Background())
	assert.ErrorContains(t, err, "line 2")
}

func TestResumeSkipsThroughCheckpoint(t *testing.T) {
	bars := []market.Bar{
		{Time: ts("2025-01-01T00:00:00Z")},
		{Time: ts("2025-01-01T00:05:00Z")},
		{Time: ts("2025-01-01T00:10:00Z")},
	}
	got := drain(t, Resume(NewSlice(bars), ts("2025-01-01T00:05:00Z")))
	require.Len(t, got, 1)
	assert.Equal(t, bars[2].Time, got[0].Time)

	assert.Len(t, drain(t, Resume(NewSlice(bars), time.Time{})), 3)
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")
	in := []market.Bar{
		{Time: ts("2025-01-01T00:00:00Z"), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Time: ts("2025-01-01T00:05:00Z"), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
	}
	require.NoError(t, WriteParquet(path, in))

	f, err := OpenParquet(path)
	require.NoError(t, err)
	assert.Equal(t, in, drain(t, f))
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Options{Kind: "kafka"})
	assert.Error(t, err)
}

func TestWSFeed(t *testing.T) {
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, sub, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `{"subscribe":"ZN"}`, string(sub))

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"time":"2025-01-01T00:00:00Z","open":1,"high":2,"low":0.5,"close":1.5,"volume":3}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"t":1735689900000,"o":1.5,"h":2,"l":1,"c":1.75,"v":4}]`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		<-release
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	f, err := DialWS(context.Background(), url, `{"subscribe":"ZN"}`, 100*time.Millisecond)
	require.NoError(t, err)
	defer f.Close()

	b, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.5, b.Close)
	b, err = f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ts("2025-01-01T00:05:00Z"), b.Time)
	assert.Equal(t, 1.75, b.Close)

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoData)

	close(release)
	require.Eventually(t, func() bool {
		_, err := f.Next(context.Background())
		return errors.Is(err, ErrExhausted)
	}, 2*time.Second, 10*time.Millisecond)
}

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chidi150c/vwaplive/internal/market"
	"github.com/chidi150c/vwaplive/internal/util"
)

// WS streams closed candles from a websocket. A message is one candle object
// or an array of them, keyed either time/open/high/low/close/volume or
// t/o/h/l/c/v. Next returns ErrNoData when nothing arrives within the poll
// timeout and ErrExhausted once the server closes normally.
type WS struct {
	conn *websocket.Conn
	poll time.Duration

	bars   chan market.Bar
	done   chan struct{}
	closed chan struct{}

	mu      sync.Mutex
	readErr error
	once    sync.Once
}

const wsReadLimit = 5 << 20

func DialWS(ctx context.Context, url, subscribe string, poll time.Duration) (*WS, error) {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: ws dial %s: %w", url, err)
	}
	conn.SetReadLimit(wsReadLimit)
	if subscribe != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(subscribe)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("feed: ws subscribe: %w", err)
		}
	}
	w := &WS{
		conn:   conn,
		poll:   poll,
		bars:   make(chan market.Bar, 1024),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go w.readPump()
	return w, nil
}

func (w *WS) readPump() {
	defer close(w.done)
	for {
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}
		bars, err := decodeWSCandles(msg)
		if err != nil {
			slog.Warn("[feed] dropping ws message", "error", err)
			continue
		}
		for _, b := range bars {
			select {
			case w.bars <- b:
			case <-w.closed:
				return
			}
		}
	}
}

func (w *WS) Next(ctx context.Context) (market.Bar, error) {
	select {
	case b := <-w.bars:
		return b, nil
	default:
	}
	t := time.NewTimer(w.poll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return market.Bar{}, ctx.Err()
	case b := <-w.bars:
		return b, nil
	case <-w.done:
		select {
		case b := <-w.bars:
			return b, nil
		default:
		}
		w.mu.Lock()
		err := w.readErr
		w.mu.Unlock()
		if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return market.Bar{}, ErrExhausted
		}
		return market.Bar{}, fmt.Errorf("feed: ws: %w", err)
	case <-t.C:
		return market.Bar{}, ErrNoData
	}
}

func (w *WS) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closed)
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}

func decodeWSCandles(msg []byte) ([]market.Bar, error) {
	trimmed := strings.TrimSpace(string(msg))
	var raws []map[string]any
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(msg, &raws); err != nil {
			return nil, err
		}
	} else {
		var one map[string]any
		if err := json.Unmarshal(msg, &one); err != nil {
			return nil, err
		}
		raws = append(raws, one)
	}
	out := make([]market.Bar, 0, len(raws))
	for _, r := range raws {
		b, err := candleFromMap(r)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func candleFromMap(m map[string]any) (market.Bar, error) {
	pick := func(keys ...string) (any, bool) {
		for _, k := range keys {
			if v, ok := m[k]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}
	num := func(keys ...string) (float64, error) {
		v, ok := pick(keys...)
		if !ok {
			return 0, fmt.Errorf("missing %s", keys[0])
		}
		f, ok := v.(float64)
		if !ok {
			return 0, fmt.Errorf("%s is not a number", keys[0])
		}
		return f, nil
	}

	var b market.Bar
	tv, ok := pick("time", "timestamp", "t")
	if !ok {
		return b, fmt.Errorf("missing time")
	}
	switch t := tv.(type) {
	case string:
		ts, err := util.ParseTimestamp(t)
		if err != nil {
			return b, err
		}
		b.Time = ts
	case float64:
		b.Time = util.FromEpoch(int64(t))
	default:
		return b, fmt.Errorf("time has type %T", tv)
	}
	var err error
	if b.Open, err = num("open", "o"); err != nil {
		return b, err
	}
	if b.High, err = num("high", "h"); err != nil {
		return b, err
	}
	if b.Low, err = num("low", "l"); err != nil {
		return b, err
	}
	if b.Close, err = num("close", "c"); err != nil {
		return b, err
	}
	if _, ok := pick("volume", "v"); ok {
		if b.Volume, err = num("volume", "v"); err != nil {
			return b, err
		}
	}
	return b, nil
}

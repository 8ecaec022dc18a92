// Package feed delivers raw OHLCV samples one at a time. Every feed tells
// exhaustion (ErrExhausted, no more data ever) apart from a temporary gap
// (ErrNoData, try again later).
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chidi150c/vwaplive/internal/market"
)

var (
	ErrExhausted = errors.New("feed: exhausted")
	ErrNoData    = errors.New("feed: no data yet")
)

// Feed yields bars in time order.
type Feed interface {
	Next(ctx context.Context) (market.Bar, error)
	Close() error
}

// Resume skips every bar at or before after. A zero after returns f as is.
func Resume(f Feed, after time.Time) Feed {
	if after.IsZero() {
		return f
	}
	return &resumed{Feed: f, after: after.UTC()}
}

type resumed struct {
	Feed
	after time.Time
	done  bool
}

func (r *resumed) Next(ctx context.Context) (market.Bar, error) {
	for {
		b, err := r.Feed.Next(ctx)
		if err != nil || r.done || b.Time.After(r.after) {
			if err == nil {
				r.done = true
			}
			return b, err
		}
	}
}

// Options selects and configures a feed.
type Options struct {
	Kind        string // csv | parquet | ws
	Path        string
	URL         string
	Subscribe   string // raw message sent after the websocket connects
	PollTimeout time.Duration
}

// Open builds the feed named by o.Kind.
func Open(ctx context.Context, o Options) (Feed, error) {
	switch strings.ToLower(strings.TrimSpace(o.Kind)) {
	case "csv", "":
		return OpenCSV(o.Path)
	case "parquet":
		return OpenParquet(o.Path)
	case "ws", "websocket":
		return DialWS(ctx, o.URL, o.Subscribe, o.PollTimeout)
	default:
		return nil, fmt.Errorf("feed: unsupported kind %q (use: csv, parquet, ws)", o.Kind)
	}
}

// Slice replays bars from memory.
type Slice struct {
	bars []market.Bar
	i    int
}

func NewSlice(bars []market.Bar) *Slice { return &Slice{bars: bars} }

func (s *Slice) Next(ctx context.Context) (market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return market.Bar{}, err
	}
	if s.i >= len(s.bars) {
		return market.Bar{}, ErrExhausted
	}
	b := s.bars[s.i]
	s.i++
	return b, nil
}

func (s *Slice) Close() error { return nil }

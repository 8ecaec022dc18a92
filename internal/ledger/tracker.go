// Package ledger is the performance tracker of one trading book: a single
// signed futures position with realized/unrealized PnL, equity, peak equity
// and drawdown. PnL = (exit-entry)/tickSize * tickValue * signedQty.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chidi150c/vwaplive/internal/market"
)

// Contract is the tick economics of the traded future.
type Contract struct {
	TickSize  float64
	TickValue float64
}

// Validate rejects non-positive tick settings.
func (c Contract) Validate() error {
	if !(c.TickSize > 0) || !(c.TickValue > 0) {
		return fmt.Errorf("ledger: tick size/value must be > 0 (got %v/%v)", c.TickSize, c.TickValue)
	}
	return nil
}

// PnL is the signed PnL of qty contracts moved from a to b (qty > 0 long).
func (c Contract) PnL(a, b, qty float64) float64 {
	return (b - a) / c.TickSize * c.TickValue * qty
}

// Snapshot is an immutable view of the tracker. It is the only read path for
// risk checks, journals and metrics.
type Snapshot struct {
	Equity        float64
	RealizedPnL   float64
	UnrealizedPnL float64
	Drawdown      float64
	MaxEquity     float64
	Trades        int
	PositionQty   float64 // >0 long, <0 short
	EntryPrice    float64 // 0 when flat
	LastPrice     float64
	HasLastPrice  bool
}

// Flat reports whether the book holds no position.
func (s Snapshot) Flat() bool { return s.PositionQty == 0 }

// Side returns the side of the open position.
func (s Snapshot) Side() (market.Side, bool) {
	switch {
	case s.PositionQty > 0:
		return market.SideBuy, true
	case s.PositionQty < 0:
		return market.SideSell, true
	default:
		return "", false
	}
}

// eps absorbs float residue when quantities net to flat.
const eps = 1e-9

var ErrInvalidFill = errors.New("ledger: invalid fill")

// Tracker is owned by one goroutine; it is not safe for concurrent use.
type Tracker struct {
	c Contract

	pos       float64
	entry     float64
	realized  float64
	unreal    float64
	equity    float64
	maxEquity float64
	drawdown  float64
	trades    int
	last      float64
	hasLast   bool
	asOf      time.Time
}

func NewTracker(c Contract) *Tracker { return &Tracker{c: c} }

// Contract returns the tick economics the tracker was built with.
func (t *Tracker) Contract() Contract { return t.c }

// OnFill applies a fill of qty (>0) contracts on side at price, then marks
// to price.
func (t *Tracker) OnFill(price, qty float64, side market.Side) error {
	dir := side.Sign()
	if dir == 0 || !(qty > 0) || !finite(price) || !finite(qty) {
		return fmt.Errorf("%w: price=%v qty=%v side=%q", ErrInvalidFill, price, qty, side)
	}
	fill := qty * dir

	switch {
	case t.pos == 0:
		t.pos, t.entry = fill, price

	case sameSign(t.pos, fill):
		total := t.pos + fill
		t.entry = (t.entry*math.Abs(t.pos) + price*math.Abs(fill)) / math.Abs(total)
		t.pos = total

	default:
		remaining := t.pos + fill
		switch {
		case math.Abs(remaining) < eps:
			t.realized += t.c.PnL(t.entry, price, t.pos)
			t.pos, t.entry = 0, 0
		case sameSign(t.pos, remaining):
			closed := t.pos - remaining
			t.realized += t.c.PnL(t.entry, price, closed)
			t.pos = remaining
		default:
			t.realized += t.c.PnL(t.entry, price, t.pos)
			t.pos, t.entry = remaining, price
		}
	}
	t.trades++
	t.OnMark(price)
	return nil
}

// OnMark revalues the open position at price. Realized PnL is untouched.
func (t *Tracker) OnMark(price float64) {
	if !finite(price) {
		return
	}
	t.last, t.hasLast = price, true
	if t.pos != 0 {
		t.unreal = t.c.PnL(t.entry, price, t.pos)
	} else {
		t.unreal = 0
	}
	t.equity = t.realized + t.unreal
	if t.equity > t.maxEquity {
		t.maxEquity = t.equity
	}
	t.drawdown = math.Max(0, t.maxEquity-t.equity)
}

// Snapshot returns the current view by value.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Equity:        t.equity,
		RealizedPnL:   t.realized,
		UnrealizedPnL: t.unreal,
		Drawdown:      t.drawdown,
		MaxEquity:     t.maxEquity,
		Trades:        t.trades,
		PositionQty:   t.pos,
		EntryPrice:    t.entry,
		LastPrice:     t.last,
		HasLastPrice:  t.hasLast,
	}
}

// SetAsOf stamps the sample time the tracker state corresponds to.
func (t *Tracker) SetAsOf(ts time.Time) { t.asOf = ts.UTC() }

// AsOf is the last stamped sample time (zero when never stamped).
func (t *Tracker) AsOf() time.Time { return t.asOf }

func sameSign(a, b float64) bool { return (a > 0) == (b > 0) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

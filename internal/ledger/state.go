package ledger

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chidi150c/vwaplive/internal/util"
)

// State is the durable form of a Tracker. Unrealized PnL, equity and
// drawdown are derived again on restore by marking to LastPrice.
type State struct {
	AsOf         string  `json:"as_of,omitempty"`
	PositionQty  float64 `json:"position_qty"`
	EntryPrice   float64 `json:"entry_price"`
	RealizedPnL  float64 `json:"realized_pnl_usd"`
	MaxEquity    float64 `json:"max_equity_usd"`
	Trades       int     `json:"n_trades"`
	LastPrice    float64 `json:"last_price"`
	HasLastPrice bool    `json:"has_last_price"`
	TickSize     float64 `json:"tick_size"`
	TickValue    float64 `json:"tick_value"`
}

// State exports the tracker.
func (t *Tracker) State() State {
	s := State{
		PositionQty:  t.pos,
		EntryPrice:   t.entry,
		RealizedPnL:  t.realized,
		MaxEquity:    t.maxEquity,
		Trades:       t.trades,
		LastPrice:    t.last,
		HasLastPrice: t.hasLast,
		TickSize:     t.c.TickSize,
		TickValue:    t.c.TickValue,
	}
	if !t.asOf.IsZero() {
		s.AsOf = util.FormatTimestamp(t.asOf)
	}
	return s
}

// Restore replaces the tracker contents with s. A state recorded under a
// different contract is refused.
func (t *Tracker) Restore(s State) error {
	if (s.TickSize != 0 && s.TickSize != t.c.TickSize) || (s.TickValue != 0 && s.TickValue != t.c.TickValue) {
		return fmt.Errorf("ledger: state tick %v/%v does not match contract %v/%v",
			s.TickSize, s.TickValue, t.c.TickSize, t.c.TickValue)
	}
	var asOf time.Time
	if s.AsOf != "" {
		ts, err := util.ParseTimestamp(s.AsOf)
		if err != nil {
			return fmt.Errorf("ledger: as_of: %w", err)
		}
		asOf = ts
	}
	*t = Tracker{
		c:         t.c,
		pos:       s.PositionQty,
		entry:     s.EntryPrice,
		realized:  s.RealizedPnL,
		maxEquity: s.MaxEquity,
		trades:    s.Trades,
		asOf:      asOf,
	}
	if t.pos == 0 {
		t.entry = 0
	}
	if s.HasLastPrice {
		t.OnMark(s.LastPrice)
	} else {
		t.equity = t.realized
		t.drawdown = max(0, t.maxEquity-t.equity)
	}
	return nil
}

// Store persists tracker state as JSON next to the checkpoint.
type Store struct {
	Path string
}

// Load restores tr from the store. It reports false when no state exists yet.
func (s Store) Load(tr *Tracker) (bool, error) {
	if s.Path == "" {
		return false, nil
	}
	var st State
	if err := util.LoadJSON(s.Path, &st); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := tr.Restore(st); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes tr atomically, keeping the previous copy as .bak.
func (s Store) Save(tr *Tracker) error {
	if s.Path == "" {
		return nil
	}
	return util.SaveJSON(s.Path, tr.State(), true)
}

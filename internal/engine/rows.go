package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/chidi150c/vwaplive/internal/journal"
	"github.com/chidi150c/vwaplive/internal/ledger"
	"github.com/chidi150c/vwaplive/internal/market"
	"github.com/chidi150c/vwaplive/internal/util"
)

const (
	kindEntry = "entry"
	kindExit  = "exit"
)

var intentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("vwaplive/order-intent"))

// IntentKey derives the idempotency key of an order from what it is, so a
// bar replayed after a crash reuses the key of the order it already sent.
func IntentKey(symbol, kind string, side market.Side, qty float64, ts time.Time) string {
	name := symbol + "|" + kind + "|" + string(side) + "|" +
		strconv.FormatFloat(qty, 'f', -1, 64) + "|" + util.FormatTimestamp(ts)
	return uuid.NewSHA1(intentNamespace, []byte(name)).String()
}

// FillPrice reads the executed price from a broker response, falling back to
// the price the order was sent at.
func FillPrice(resp map[string]any, fallback float64) float64 {
	for _, k := range []string{"fillPrice", "avgPrice", "averagePrice", "executedPrice"} {
		switch v := resp[k].(type) {
		case float64:
			if v > 0 && !math.IsInf(v, 0) {
				return v
			}
		case json.Number:
			if f, err := v.Float64(); err == nil && f > 0 && !math.IsInf(f, 0) {
				return f
			}
		}
	}
	return fallback
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (e *Engine) signalRow(b *Book, s sample, out outcome) journal.SignalRow {
	r := journal.SignalRow{
		Timestamp: s.tsString,
		Symbol:    e.cfg.Symbol,
		Action:    string(out.action),
		Price:     journal.Float(s.candle.Close),
		Reason:    out.reason,
		Session:   out.schedule,
	}
	if finite(s.prob) {
		r.Prob = journal.Float(s.prob)
	}
	if out.qty > 0 {
		r.Qty = journal.Float(out.qty)
	}
	if s.candle.HasVWAP {
		r.VWAP = journal.Float(s.candle.VWAP)
		r.SpreadToVWAP = journal.Float(s.candle.Close - s.candle.VWAP)
	}

	feats := make(map[string]float64, len(s.names))
	for i, n := range s.names {
		feats[n] = float64(s.vector[i])
	}
	r.Features = mustJSON(feats)

	extra := map[string]any{
		"book":     b.Name,
		"mode":     string(e.cfg.Mode),
		"shadow":   b != e.books[0],
		"executed": out.executed,
	}
	if out.kind != "" {
		extra["kind"] = out.kind
	}
	if len(s.missing) > 0 {
		extra["missing_features"] = s.missing
	}
	if o := out.order; o != nil {
		extra["order_status"] = o.Status
		extra["attempts"] = o.Attempts
		extra["idempotency_key"] = o.IdempotencyKey
		if o.LastStatus != nil {
			extra["last_status"] = *o.LastStatus
		}
	}
	r.Extra = mustJSON(extra)
	return r
}

func perfRow(ts string, snap ledger.Snapshot) journal.PerfRow {
	r := journal.PerfRow{
		Timestamp:     ts,
		Equity:        snap.Equity,
		RealizedPnL:   snap.RealizedPnL,
		UnrealizedPnL: snap.UnrealizedPnL,
		Drawdown:      snap.Drawdown,
		MaxEquity:     snap.MaxEquity,
		Trades:        int64(snap.Trades),
		PositionSize:  snap.PositionQty,
	}
	if snap.HasLastPrice {
		r.LastPrice = journal.Float(snap.LastPrice)
	}
	return r
}

// mustJSON encodes values that are finite by construction.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

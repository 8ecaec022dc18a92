// Package market holds the value types shared by the feed, the strategy
// engines and the ledger. Everything here is immutable once produced.
package market

import (
	"math"
	"time"
)

// Side is the side of an order or of an open position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for BUY, -1 for SELL and 0 otherwise.
func (s Side) Sign() float64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Bar is one raw OHLCV sample as delivered by a feed.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Candle is a Bar plus the derived VWAP and ATR. HasVWAP/HasATR are false
// while the enricher is still warming up.
type Candle struct {
	Bar
	VWAP    float64
	ATR     float64
	HasVWAP bool
	HasATR  bool
}

// Features is the enriched record the decision engine consumes.
// Values carries every named feature (including the ones above) so the model
// vector can be built in any configured order.
type Features struct {
	NormDistToVWAP float64
	VWAP           float64
	ATR            float64
	Close          float64
	High           float64
	Low            float64
	Values         map[string]float64
}

// Finite reports whether every core field is a usable number.
func (f Features) Finite() bool {
	for _, v := range []float64{f.NormDistToVWAP, f.VWAP, f.ATR, f.Close, f.High, f.Low} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

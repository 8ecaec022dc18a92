// Package features turns raw bars into the enriched record the strategy and
// the model consume: rolling VWAP, Wilder ATR, the normalized distance to
// VWAP and a handful of context features.
package features

import (
	"math"

	"github.com/chidi150c/vwaplive/internal/market"
)

// Feature names.
const (
	NormDistToVWAP   = "normalized_dist_to_vwap"
	DistToVWAP       = "dist_to_vwap"
	VWAP             = "vwap"
	ATR              = "atr"
	Close            = "close"
	High             = "high"
	Low              = "low"
	Open             = "open"
	Volume           = "volume"
	Hour             = "hour"
	Minute           = "minute"
	Ret3             = "ret_3"
	Ret6             = "ret_6"
	Ret12            = "ret_12"
	Volatility6      = "volatility_6"
	Volatility12     = "volatility_12"
	Range6           = "range_6"
	VWAPSlope5       = "vwap_slope_5"
	VolumeRelative10 = "volume_relative_10"
)

// DefaultNames is the model input order used when neither the rule set nor
// the config names one.
var DefaultNames = []string{NormDistToVWAP, VWAP, ATR, Close, High, Low}

// Source enriches one bar at a time. Implementations keep whatever history
// they need.
type Source interface {
	Push(b market.Bar) (market.Candle, market.Features)
}

// Enricher is the reference Source. Not safe for concurrent use.
type Enricher struct {
	vwapPeriod int
	atrPeriod  int
	tickSize   float64

	bars   []market.Bar
	vwaps  []float64
	trs    []float64
	atr    float64
	hasATR bool
	keep   int
}

// NewEnricher uses a rolling VWAP over vwapPeriod bars and a Wilder ATR over
// atrPeriod bars. Non-positive periods default to 14. The normalized distance
// is (close-vwap)/(atr*tickSize), the scale the optimizer's entry thresholds
// are fitted on; a non-positive tickSize leaves it in ATR units.
func NewEnricher(vwapPeriod, atrPeriod int, tickSize float64) *Enricher {
	if vwapPeriod <= 0 {
		vwapPeriod = 14
	}
	if atrPeriod <= 0 {
		atrPeriod = 14
	}
	if tickSize <= 0 {
		tickSize = 1
	}
	return &Enricher{
		vwapPeriod: vwapPeriod,
		atrPeriod:  atrPeriod,
		tickSize:   tickSize,
		keep:       max(vwapPeriod, atrPeriod, 13),
	}
}

// Push appends b and returns the enriched candle and features. Until enough
// history exists VWAP/ATR are absent and the distance is NaN, which the
// entry gate rejects as invalid.
func (e *Enricher) Push(b market.Bar) (market.Candle, market.Features) {
	var prevClose float64
	hasPrev := len(e.bars) > 0
	if hasPrev {
		prevClose = e.bars[len(e.bars)-1].Close
	}
	e.bars = append(e.bars, b)
	if len(e.bars) > e.keep {
		e.bars = e.bars[len(e.bars)-e.keep:]
	}

	c := market.Candle{Bar: b}
	if len(e.bars) >= e.vwapPeriod {
		c.VWAP, c.HasVWAP = rollingVWAP(e.bars[len(e.bars)-e.vwapPeriod:]), true
	}

	tr := b.High - b.Low
	if hasPrev {
		tr = math.Max(tr, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	e.pushATR(tr)
	c.ATR, c.HasATR = e.atr, e.hasATR

	vw := math.NaN()
	if c.HasVWAP {
		vw = c.VWAP
	}
	e.vwaps = append(e.vwaps, vw)
	if len(e.vwaps) > 6 {
		e.vwaps = e.vwaps[len(e.vwaps)-6:]
	}

	return c, e.features(c)
}

func (e *Enricher) pushATR(tr float64) {
	if e.hasATR {
		n := float64(e.atrPeriod)
		e.atr = (e.atr*(n-1) + tr) / n
		return
	}
	e.trs = append(e.trs, tr)
	if len(e.trs) == e.atrPeriod {
		var sum float64
		for _, v := range e.trs {
			sum += v
		}
		e.atr, e.hasATR = sum/float64(e.atrPeriod), true
		e.trs = nil
	}
}

func rollingVWAP(bars []market.Bar) float64 {
	var pv, vol, closes float64
	for _, b := range bars {
		pv += b.Close * b.Volume
		vol += b.Volume
		closes += b.Close
	}
	if vol == 0 {
		return closes / float64(len(bars))
	}
	return pv / vol
}

func (e *Enricher) features(c market.Candle) market.Features {
	nan := math.NaN()
	f := market.Features{
		NormDistToVWAP: nan,
		VWAP:           nan,
		ATR:            nan,
		Close:          c.Close,
		High:           c.High,
		Low:            c.Low,
	}
	if c.HasVWAP {
		f.VWAP = c.VWAP
	}
	if c.HasATR {
		f.ATR = c.ATR
	}
	if c.HasVWAP && c.HasATR && c.ATR > 0 {
		f.NormDistToVWAP = (c.Close - c.VWAP) / (c.ATR * e.tickSize)
	}

	v := map[string]float64{
		NormDistToVWAP:   f.NormDistToVWAP,
		DistToVWAP:       c.Close - f.VWAP,
		VWAP:             f.VWAP,
		ATR:              f.ATR,
		Close:            c.Close,
		High:             c.High,
		Low:              c.Low,
		Open:             c.Open,
		Volume:           c.Volume,
		Hour:             float64(c.Time.UTC().Hour()),
		Minute:           float64(c.Time.UTC().Minute()),
		Ret3:             e.ret(3),
		Ret6:             e.ret(6),
		Ret12:            e.ret(12),
		Volatility6:      e.stdClose(6),
		Volatility12:     e.stdClose(12),
		Range6:           e.rangeN(6),
		VWAPSlope5:       e.vwapSlope5(),
		VolumeRelative10: e.volumeRelative(10),
	}
	f.Values = v
	return f
}

func (e *Enricher) ret(n int) float64 {
	if len(e.bars) <= n {
		return math.NaN()
	}
	prev := e.bars[len(e.bars)-1-n].Close
	if prev == 0 {
		return math.NaN()
	}
	return e.bars[len(e.bars)-1].Close/prev - 1
}

// stdClose is the sample standard deviation of the last n closes.
func (e *Enricher) stdClose(n int) float64 {
	if len(e.bars) < n || n < 2 {
		return math.NaN()
	}
	w := e.bars[len(e.bars)-n:]
	var mean float64
	for _, b := range w {
		mean += b.Close
	}
	mean /= float64(n)
	var ss float64
	for _, b := range w {
		d := b.Close - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

func (e *Enricher) rangeN(n int) float64 {
	if len(e.bars) < n {
		return math.NaN()
	}
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, b := range e.bars[len(e.bars)-n:] {
		hi, lo = math.Max(hi, b.High), math.Min(lo, b.Low)
	}
	return hi - lo
}

func (e *Enricher) vwapSlope5() float64 {
	if len(e.vwaps) < 6 {
		return math.NaN()
	}
	return e.vwaps[len(e.vwaps)-1] - e.vwaps[0]
}

func (e *Enricher) volumeRelative(n int) float64 {
	if len(e.bars) < n {
		return math.NaN()
	}
	var sum float64
	for _, b := range e.bars[len(e.bars)-n:] {
		sum += b.Volume
	}
	if sum == 0 {
		return math.NaN()
	}
	return e.bars[len(e.bars)-1].Volume / (sum / float64(n))
}

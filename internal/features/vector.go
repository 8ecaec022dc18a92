package features

import (
	"math"

	"github.com/chidi150c/vwaplive/internal/market"
)

// FallbackValue fills features the enricher did not produce.
const FallbackValue = 0.0

// Names picks the model input order: the rule set's list, else the global
// list, else DefaultNames.
func Names(ruleSet, global []string) []string {
	switch {
	case len(ruleSet) > 0:
		return ruleSet
	case len(global) > 0:
		return global
	default:
		return DefaultNames
	}
}

// Vector lays f out in names order for the model. Missing or non-finite
// values become FallbackValue and are reported in missing.
func Vector(f market.Features, names []string) (vec []float32, missing []string) {
	vec = make([]float32, len(names))
	for i, n := range names {
		v, ok := lookup(f, n)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			vec[i] = FallbackValue
			missing = append(missing, n)
			continue
		}
		vec[i] = float32(v)
	}
	return vec, missing
}

func lookup(f market.Features, name string) (float64, bool) {
	if v, ok := f.Values[name]; ok {
		return v, true
	}
	switch name {
	case NormDistToVWAP:
		return f.NormDistToVWAP, true
	case VWAP:
		return f.VWAP, true
	case ATR:
		return f.ATR, true
	case Close:
		return f.Close, true
	case High:
		return f.High, true
	case Low:
		return f.Low, true
	}
	return 0, false
}

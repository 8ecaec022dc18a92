// Package schedule maps a UTC hour onto the optimizer's ordered rule sets.
//
// Selection is first-match-wins in configuration order. There is no
// best-fit scoring: overlapping ranges resolve to whichever rule set was
// declared first, and downstream schedule files are authored against that.
package schedule

import "errors"

// ErrNoSchedules is returned when a schedule source defines no rule sets.
var ErrNoSchedules = errors.New("schedule: no rule sets defined")

// InRange reports whether hour h falls in [start, end).
// start > end wraps past midnight; a zero span (start == end, or 0 -> 24)
// covers the whole day.
func InRange(h, start, end int) bool {
	if mod24(end-start) == 0 {
		return true
	}
	h, start, end = mod24(h), mod24(start), mod24(end)
	if start < end {
		return start <= h && h < end
	}
	return h >= start || h < end
}

func mod24(v int) int {
	v %= 24
	if v < 0 {
		v += 24
	}
	return v
}

// SelectActive returns the first rule set in ruleSets active at hourUTC, or
// nil when trading is not permitted this hour.
func SelectActive(hourUTC int, ruleSets []RuleSet) *RuleSet {
	for i := range ruleSets {
		if ruleSets[i].Active(hourUTC) {
			rs := ruleSets[i]
			return &rs
		}
	}
	return nil
}

// Registry is the immutable, ordered rule set table plus the global
// constants that came with it.
type Registry struct {
	ruleSets []RuleSet

	// GlobalMaxDrawdownUSD is GLOBAL_CONSTANTS.MAX_EQUITY_DD_USD_LIMIT.
	GlobalMaxDrawdownUSD *float64
}

// NewRegistry copies ruleSets, keeping their order.
func NewRegistry(ruleSets []RuleSet, globalMaxDD *float64) (*Registry, error) {
	if len(ruleSets) == 0 {
		return nil, ErrNoSchedules
	}
	cp := make([]RuleSet, len(ruleSets))
	copy(cp, ruleSets)
	return &Registry{ruleSets: cp, GlobalMaxDrawdownUSD: globalMaxDD}, nil
}

// Active is SelectActive over the registry's rule sets.
func (r *Registry) Active(hourUTC int) *RuleSet { return SelectActive(hourUTC, r.ruleSets) }

// RuleSets returns a copy of the ordered table.
func (r *Registry) RuleSets() []RuleSet {
	out := make([]RuleSet, len(r.ruleSets))
	copy(out, r.ruleSets)
	return out
}

// Names returns the rule set names in order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.ruleSets))
	for _, rs := range r.ruleSets {
		out = append(out, rs.Name)
	}
	return out
}

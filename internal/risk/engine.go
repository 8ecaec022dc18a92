package risk

import (
	"fmt"

	"github.com/chidi150c/vwaplive/internal/schedule"
)

// ReasonDrawdownLimit is the denial reason when the ceiling is breached.
const ReasonDrawdownLimit = "drawdown_limit"

// ResolveCeiling picks the drawdown ceiling for rs.
// Precedence: schedule-level > global > fallback > unconstrained.
func ResolveCeiling(rs *schedule.RuleSet, src Sources) Ceiling {
	if rs != nil && rs.MaxDrawdownUSD != nil {
		return Ceiling{USD: *rs.MaxDrawdownUSD, Source: SourceSchedule, Limited: true}
	}
	if src.Global != nil {
		return Ceiling{USD: *src.Global, Source: SourceGlobal, Limited: true}
	}
	if src.Fallback != nil {
		return Ceiling{USD: *src.Fallback, Source: SourceFallback, Limited: true}
	}
	return Ceiling{Source: SourceNone}
}

// AllowNewEntry reports whether drawdown leaves room for a new entry.
// Drawdown equal to the ceiling blocks.
func AllowNewEntry(drawdown float64, c Ceiling) bool {
	if !c.Limited {
		return true
	}
	return drawdown < c.USD
}

// Guard bundles the ceiling sources so callers only pass the rule set and a
// drawdown figure. It holds no mutable state.
type Guard struct {
	Sources Sources
}

// NewGuard returns a Guard over the given global and fallback ceilings.
func NewGuard(global, fallback *float64) Guard {
	return Guard{Sources: Sources{Global: global, Fallback: fallback}}
}

// Check evaluates a prospective entry under rs at the given drawdown.
func (g Guard) Check(rs *schedule.RuleSet, drawdown float64) Decision {
	c := ResolveCeiling(rs, g.Sources)
	d := Decision{Allow: AllowNewEntry(drawdown, c), Drawdown: drawdown, Ceiling: c}
	if !d.Allow {
		d.Reason = fmt.Sprintf("%s (dd=%.2f >= %.2f %s)", ReasonDrawdownLimit, drawdown, c.USD, c.Source)
	}
	return d
}

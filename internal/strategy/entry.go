package strategy

import (
	"fmt"
	"math"

	"github.com/chidi150c/vwaplive/internal/market"
	"github.com/chidi150c/vwaplive/internal/risk"
	"github.com/chidi150c/vwaplive/internal/schedule"
)

// EntryInput is everything DecideEntry looks at. Drawdown is the current
// drawdown of the book the decision is for.
type EntryInput struct {
	Features    market.Features
	Probability float64
	RuleSet     *schedule.RuleSet
	Guard       risk.Guard
	Drawdown    float64
}

// DecideEntry applies, in order: feature validity, the drawdown ceiling, the
// ML threshold and the VWAP distance threshold. Direction is mean reversion:
// price above VWAP sells, below buys.
func DecideEntry(in EntryInput) Decision {
	dist := in.Features.NormDistToVWAP
	d := Decision{Action: ActionFlat, Probability: in.Probability, NormDist: dist}

	rs := in.RuleSet
	if rs == nil {
		d.RejectReason = ReasonNoSchedule
		return d
	}
	d.Schedule = rs.Name

	if !in.Features.Finite() || math.IsNaN(in.Probability) || math.IsInf(in.Probability, 0) {
		d.RejectReason = ReasonInvalidFeatures
		return d
	}

	if rd := in.Guard.Check(rs, in.Drawdown); !rd.Allow {
		d.RejectReason = risk.ReasonDrawdownLimit
		return d
	}

	if in.Probability < rs.MLThreshold {
		d.RejectReason = fmt.Sprintf("prob<%g", rs.MLThreshold)
		return d
	}
	if math.Abs(dist) < rs.EntryThreshold {
		d.RejectReason = fmt.Sprintf("dist<%g", rs.EntryThreshold)
		return d
	}

	switch {
	case dist > 0:
		d.Action = ActionSell
	case dist < 0:
		d.Action = ActionBuy
	default:
		d.RejectReason = ReasonNoDivergence
		return d
	}
	d.Quantity = rs.FixedLots
	return d
}

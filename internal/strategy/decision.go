// Package strategy holds the two pure decision functions of the engine:
// DecideEntry (VWAP mean-reversion entry gate) and DecideExit (stop,
// take-profit and VWAP exits in fixed priority). Neither reads global state
// nor mutates its inputs.
package strategy

import "github.com/chidi150c/vwaplive/internal/market"

// Action is the outcome of an entry decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionFlat Action = "FLAT"
)

// Side maps a trading action to the order side. FLAT has no side.
func (a Action) Side() (market.Side, bool) {
	switch a {
	case ActionBuy:
		return market.SideBuy, true
	case ActionSell:
		return market.SideSell, true
	default:
		return "", false
	}
}

// Entry reject reasons.
const (
	ReasonNoSchedule      = "no_active_schedule"
	ReasonInvalidFeatures = "invalid_features"
	ReasonNoDivergence    = "no_divergence"
)

// Decision is the entry verdict for one sample.
type Decision struct {
	Action       Action
	Probability  float64
	NormDist     float64
	Schedule     string
	Quantity     float64
	RejectReason string // empty when Action is BUY or SELL
}

// Actionable reports whether the decision asks for an order.
func (d Decision) Actionable() bool { return d.Action == ActionBuy || d.Action == ActionSell }

// Exit reasons, in priority order.
const (
	ExitReasonStopATR    = "sl_atr"
	ExitReasonFixedTicks = "fixed_ticks"
	ExitReasonCross      = "cross"
	ExitReasonVWAPLevel  = "vwap_level"
)

// ExitDecision is the exit verdict for an open position.
type ExitDecision struct {
	Exit   bool
	Reason string
	Price  float64
}

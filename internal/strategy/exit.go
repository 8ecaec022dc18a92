package strategy

import (
	"github.com/chidi150c/vwaplive/internal/market"
	"github.com/chidi150c/vwaplive/internal/schedule"
)

// PrevBar is the previous sample's close and VWAP, used by the cross exit.
type PrevBar struct {
	Close float64
	VWAP  float64
}

// ExitInput describes an open position against the current candle.
type ExitInput struct {
	Side       market.Side
	EntryPrice float64
	Candle     market.Candle
	RuleSet    *schedule.RuleSet
	TickSize   float64
	Prev       *PrevBar // nil after a restart or when the previous sample had no VWAP
}

// DecideExit checks, first hit wins:
//  1. ATR stop (intrabar, exit at the stop)
//  2. fixed-tick take profit (intrabar, exit at the target)
//  3. VWAP cross on close
//  4. VWAP level on close
//
// Steps 3 and 4 only run when the rule set's exit_type / tp_type ask for them.
func DecideExit(in ExitInput) ExitDecision {
	rs := in.RuleSet
	if rs == nil {
		return ExitDecision{}
	}
	c := in.Candle
	dir := in.Side.Sign()
	if dir == 0 {
		return ExitDecision{}
	}

	if rs.UsesATRStop() && c.HasATR {
		sl := in.EntryPrice - dir*c.ATR*rs.ATRMultiplier
		if (dir > 0 && c.Low <= sl) || (dir < 0 && c.High >= sl) {
			return ExitDecision{Exit: true, Reason: ExitReasonStopATR, Price: sl}
		}
	}

	if rs.TPType == schedule.TPFixedTicks {
		target := in.EntryPrice + dir*rs.TPTicks*in.TickSize
		if (dir > 0 && c.High >= target) || (dir < 0 && c.Low <= target) {
			return ExitDecision{Exit: true, Reason: ExitReasonFixedTicks, Price: target}
		}
	}

	if rs.ExitType == schedule.ExitCross && in.Prev != nil && c.HasVWAP {
		p := in.Prev
		if (dir > 0 && p.Close < p.VWAP && c.Close >= c.VWAP) ||
			(dir < 0 && p.Close > p.VWAP && c.Close <= c.VWAP) {
			return ExitDecision{Exit: true, Reason: ExitReasonCross, Price: c.Close}
		}
	}

	if rs.TPType == schedule.TPVWAPLevel && c.HasVWAP {
		if (dir > 0 && c.Close >= c.VWAP) || (dir < 0 && c.Close <= c.VWAP) {
			return ExitDecision{Exit: true, Reason: ExitReasonVWAPLevel, Price: c.Close}
		}
	}

	return ExitDecision{}
}

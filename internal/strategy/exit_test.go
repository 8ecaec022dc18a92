package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chidi150c/vwaplive/internal/market"
	"github.com/chidi150c/vwaplive/internal/schedule"
)

const tick = 0.03125

func candle(o, h, l, c, vwap, atr float64) market.Candle {
	return market.Candle{
		Bar:  market.Bar{Open: o, High: h, Low: l, Close: c},
		VWAP: vwap, ATR: atr, HasVWAP: true, HasATR: true,
	}
}

func fullRules() *schedule.RuleSet {
	return &schedule.RuleSet{
		Name: "ALL", RiskMethod: schedule.RiskMethodATR, ATRMultiplier: 1,
		TPType: schedule.TPFixedTicks, TPTicks: 4, ExitType: schedule.ExitCross,
	}
}

func TestDecideExitStopWinsWhenEverythingFires(t *testing.T) {
	// Long from 100: stop at 99, target at 100.125, cross and level both true.
	in := ExitInput{
		Side: market.SideBuy, EntryPrice: 100, TickSize: tick,
		Candle:  candle(100, 101, 98.5, 100.5, 100.2, 1),
		RuleSet: fullRules(),
		Prev:    &PrevBar{Close: 99.5, VWAP: 100},
	}
	got := DecideExit(in)
	assert.Equal(t, ExitDecision{Exit: true, Reason: ExitReasonStopATR, Price: 99}, got)

	rs := fullRules()
	rs.TPType = schedule.TPVWAPLevel
	in.RuleSet = rs
	assert.Equal(t, ExitReasonStopATR, DecideExit(in).Reason)
}

func TestDecideExitFixedTicksBeatsCross(t *testing.T) {
	rs := fullRules()
	rs.RiskMethod = ""
	in := ExitInput{
		Side: market.SideBuy, EntryPrice: 100, TickSize: tick,
		Candle:  candle(100, 101, 98.5, 100.5, 100.2, 1),
		RuleSet: rs,
		Prev:    &PrevBar{Close: 99.5, VWAP: 100},
	}
	got := DecideExit(in)
	assert.True(t, got.Exit)
	assert.Equal(t, ExitReasonFixedTicks, got.Reason)
	assert.InDelta(t, 100.125, got.Price, 1e-12)
}

func TestDecideExitShortSide(t *testing.T) {
	rs := fullRules()
	// Short from 100: stop at 101, target at 99.875.
	got := DecideExit(ExitInput{
		Side: market.SideSell, EntryPrice: 100, TickSize: tick,
		Candle: candle(100, 101.2, 99.95, 100, 100, 1), RuleSet: rs,
	})
	assert.Equal(t, ExitDecision{Exit: true, Reason: ExitReasonStopATR, Price: 101}, got)

	got = DecideExit(ExitInput{
		Side: market.SideSell, EntryPrice: 100, TickSize: tick,
		Candle: candle(100, 100.5, 99.8, 99.9, 99.5, 1), RuleSet: rs,
	})
	assert.Equal(t, ExitReasonFixedTicks, got.Reason)
	assert.InDelta(t, 99.875, got.Price, 1e-12)
}

func TestDecideExitCross(t *testing.T) {
	rs := &schedule.RuleSet{ExitType: schedule.ExitCross}
	c := candle(99, 100.2, 98.9, 100.1, 100, 1)

	got := DecideExit(ExitInput{Side: market.SideBuy, EntryPrice: 99, Candle: c, RuleSet: rs, Prev: &PrevBar{Close: 99.8, VWAP: 100}})
	assert.Equal(t, ExitDecision{Exit: true, Reason: ExitReasonCross, Price: 100.1}, got)

	got = DecideExit(ExitInput{Side: market.SideBuy, EntryPrice: 99, Candle: c, RuleSet: rs})
	assert.False(t, got.Exit, "cross needs the previous bar")

	got = DecideExit(ExitInput{Side: market.SideBuy, EntryPrice: 99, Candle: c, RuleSet: rs, Prev: &PrevBar{Close: 100.3, VWAP: 100}})
	assert.False(t, got.Exit, "already above vwap is not a cross")

	short := candle(101, 101.1, 99.8, 99.9, 100, 1)
	got = DecideExit(ExitInput{Side: market.SideSell, EntryPrice: 101, Candle: short, RuleSet: rs, Prev: &PrevBar{Close: 100.4, VWAP: 100}})
	assert.Equal(t, ExitReasonCross, got.Reason)
}

func TestDecideExitVWAPLevel(t *testing.T) {
	rs := &schedule.RuleSet{TPType: schedule.TPVWAPLevel, ExitType: schedule.ExitVWAPLevel}

	got := DecideExit(ExitInput{Side: market.SideBuy, EntryPrice: 99, Candle: candle(99, 100, 99, 100, 100, 1), RuleSet: rs})
	assert.Equal(t, ExitDecision{Exit: true, Reason: ExitReasonVWAPLevel, Price: 100}, got)

	got = DecideExit(ExitInput{Side: market.SideBuy, EntryPrice: 99, Candle: candle(99, 100, 99, 99.9, 100, 1), RuleSet: rs})
	assert.False(t, got.Exit)

	noVWAP := candle(99, 100, 99, 100, 0, 1)
	noVWAP.HasVWAP = false
	got = DecideExit(ExitInput{Side: market.SideBuy, EntryPrice: 99, Candle: noVWAP, RuleSet: rs})
	assert.False(t, got.Exit)
}

func TestDecideExitStopNeedsATR(t *testing.T) {
	rs := &schedule.RuleSet{RiskMethod: schedule.RiskMethodATR, ATRMultiplier: 1}
	c := candle(100, 100, 90, 95, 100, 0)
	c.HasATR = false
	assert.False(t, DecideExit(ExitInput{Side: market.SideBuy, EntryPrice: 100, Candle: c, RuleSet: rs}).Exit)
}

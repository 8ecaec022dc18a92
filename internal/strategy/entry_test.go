package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chidi150c/vwaplive/internal/market"
	"github.com/chidi150c/vwaplive/internal/risk"
	"github.com/chidi150c/vwaplive/internal/schedule"
)

func asian() *schedule.RuleSet {
	return &schedule.RuleSet{
		Name: "ASIAN02", HourStart: 0, HourEnd: 2,
		MLThreshold: 0.5, EntryThreshold: 0.5, FixedLots: 2,
	}
}

func feats(dist float64) market.Features {
	return market.Features{NormDistToVWAP: dist, VWAP: 100, ATR: 1, Close: 100 + dist, High: 101 + dist, Low: 99 + dist}
}

func TestDecideEntryDirection(t *testing.T) {
	d := DecideEntry(EntryInput{Features: feats(-2.1), Probability: 0.96, RuleSet: asian()})
	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, 2.0, d.Quantity)
	assert.Equal(t, "ASIAN02", d.Schedule)
	assert.Empty(t, d.RejectReason)

	d = DecideEntry(EntryInput{Features: feats(2.1), Probability: 0.96, RuleSet: asian()})
	assert.Equal(t, ActionSell, d.Action)
	assert.True(t, d.Actionable())
}

func TestDecideEntryGates(t *testing.T) {
	ceiling := 100.0
	guard := risk.NewGuard(&ceiling, nil)

	cases := []struct {
		name   string
		in     EntryInput
		reason string
	}{
		{"no schedule", EntryInput{Features: feats(2), Probability: 0.9}, ReasonNoSchedule},
		{"low probability", EntryInput{Features: feats(2), Probability: 0.4, RuleSet: asian()}, "prob<0.5"},
		{"probability at threshold passes to dist gate", EntryInput{Features: feats(0.3), Probability: 0.5, RuleSet: asian()}, "dist<0.5"},
		{"zero distance", EntryInput{Features: feats(0), Probability: 0.9, RuleSet: &schedule.RuleSet{Name: "Z", MLThreshold: 0.5}}, ReasonNoDivergence},
		{"nan feature", EntryInput{Features: market.Features{NormDistToVWAP: math.NaN()}, Probability: 0.9, RuleSet: asian()}, ReasonInvalidFeatures},
		{"inf probability", EntryInput{Features: feats(2), Probability: math.Inf(1), RuleSet: asian()}, ReasonInvalidFeatures},
		{"drawdown before thresholds", EntryInput{Features: feats(2), Probability: 0.1, RuleSet: asian(), Guard: guard, Drawdown: 100}, risk.ReasonDrawdownLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := DecideEntry(tc.in)
			assert.Equal(t, ActionFlat, d.Action)
			assert.False(t, d.Actionable())
			assert.Equal(t, tc.reason, d.RejectReason)
		})
	}
}

func TestDecideEntryDrawdownBelowCeilingAllows(t *testing.T) {
	ceiling := 100.0
	d := DecideEntry(EntryInput{
		Features: feats(-1), Probability: 0.9, RuleSet: asian(),
		Guard: risk.NewGuard(&ceiling, nil), Drawdown: 99.99,
	})
	assert.Equal(t, ActionBuy, d.Action)
}

func TestDecideEntryPure(t *testing.T) {
	in := EntryInput{Features: feats(1.7), Probability: 0.77, RuleSet: asian()}
	first := DecideEntry(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, DecideEntry(in))
	}
	assert.Equal(t, asian(), in.RuleSet)
}

package schedule

// ExitType selects the close-based exit rule.
type ExitType string

const (
	ExitCross     ExitType = "cross"
	ExitVWAPLevel ExitType = "vwap_level"
)

// TPType selects the take-profit rule.
type TPType string

const (
	TPFixedTicks TPType = "fixed_ticks"
	TPVWAPLevel  TPType = "vwap_level"
)

// RiskMethodATR enables the ATR stop loss. An empty method disables it.
const RiskMethodATR = "ATR"

// RuleSet is one named, hour-ranged bundle of thresholds and risk parameters.
// Loaded once at startup and never mutated afterwards.
type RuleSet struct {
	Name      string
	HourStart int // inclusive, UTC
	HourEnd   int // exclusive, UTC; may wrap past midnight

	MLThreshold    float64
	EntryThreshold float64
	VWAPPeriod     string

	ExitType ExitType
	TPType   TPType
	TPTicks  float64

	RiskMethod    string
	ATRPeriod     int
	ATRMultiplier float64

	FixedLots float64

	// MaxDrawdownUSD is the schedule-level drawdown ceiling; nil when unset.
	MaxDrawdownUSD *float64

	// Features is the model input order for this schedule; empty means the
	// global list applies.
	Features []string
}

// UsesATRStop reports whether the stop loss is sized by ATR.
func (r RuleSet) UsesATRStop() bool { return r.RiskMethod == RiskMethodATR }

// Active reports whether r is active at hourUTC.
func (r RuleSet) Active(hourUTC int) bool { return InRange(hourUTC, r.HourStart, r.HourEnd) }

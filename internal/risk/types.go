package risk

// Ceiling sources, in precedence order.
const (
	SourceSchedule = "schedule"
	SourceGlobal   = "global"
	SourceFallback = "fallback"
	SourceNone     = "none"
)

// Sources holds the non-schedule drawdown ceilings.
type Sources struct {
	Global   *float64 // GLOBAL_CONSTANTS.MAX_EQUITY_DD_USD_LIMIT
	Fallback *float64 // app config risk.max_drawdown_usd
}

// Ceiling is a resolved drawdown ceiling in USD.
type Ceiling struct {
	USD     float64 // meaningful only when Limited
	Source  string  // which layer supplied it
	Limited bool    // false = unconstrained
}

// Decision is returned when evaluating a new entry against the ceiling.
type Decision struct {
	Allow    bool    // true if a new entry may open
	Reason   string  // denial reason
	Drawdown float64 // drawdown the check ran against
	Ceiling  Ceiling
}

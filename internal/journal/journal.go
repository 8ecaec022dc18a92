// Package journal records what a book saw and did: one signal row and one
// performance row per processed sample. Two formats share the same rows:
// append-only CSV and Parquet.
package journal

import (
	"fmt"
	"strings"
)

// SignalRow is one decision of one book. Pointer fields are empty in CSV and
// null in Parquet when absent.
type SignalRow struct {
	Timestamp    string   `parquet:"timestamp"`
	Symbol       string   `parquet:"symbol"`
	Action       string   `parquet:"action"`
	Prob         *float64 `parquet:"prob,optional"`
	Price        *float64 `parquet:"price,optional"`
	Qty          *float64 `parquet:"qty,optional"`
	Reason       string   `parquet:"reason"`
	Session      string   `parquet:"session"`
	VWAP         *float64 `parquet:"vwap,optional"`
	SpreadToVWAP *float64 `parquet:"spread_to_vwap,optional"`
	Features     string   `parquet:"features"` // JSON object
	Extra        string   `parquet:"extra"`    // JSON object
}

// PerfRow is a tracker snapshot at one sample.
type PerfRow struct {
	Timestamp     string   `parquet:"timestamp"`
	Equity        float64  `parquet:"equity"`
	RealizedPnL   float64  `parquet:"realized_pnl"`
	UnrealizedPnL float64  `parquet:"unrealized_pnl"`
	Drawdown      float64  `parquet:"drawdown"`
	MaxEquity     float64  `parquet:"max_equity"`
	Trades        int64    `parquet:"n_trades"`
	PositionSize  float64  `parquet:"position_size"`
	LastPrice     *float64 `parquet:"last_price,optional"`
}

var (
	signalHeader = []string{"timestamp", "symbol", "action", "prob", "price", "qty", "reason", "session", "vwap", "spread_to_vwap", "features", "extra"}
	perfHeader   = []string{"timestamp", "equity", "realized_pnl", "unrealized_pnl", "drawdown", "max_equity", "n_trades", "position_size", "last_price"}
)

// Journal is the per-book sink. Flush makes rows durable; Close flushes.
type Journal interface {
	Signal(SignalRow) error
	Perf(PerfRow) error
	Flush() error
	Close() error
}

// Paths are the two files of one journal.
type Paths struct {
	Signals     string
	Performance string
}

// Open creates a journal by format (csv, parquet).
func Open(format string, p Paths) (Journal, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return OpenCSV(p)
	case "parquet":
		return OpenParquet(p)
	default:
		return nil, fmt.Errorf("journal: unsupported format %q (use: csv, parquet)", format)
	}
}

// Float wraps v for the optional row fields.
func Float(v float64) *float64 { return &v }

// Discard drops everything.
type Discard struct{}

func (Discard) Signal(SignalRow) error { return nil }
func (Discard) Perf(PerfRow) error     { return nil }
func (Discard) Flush() error           { return nil }
func (Discard) Close() error           { return nil }

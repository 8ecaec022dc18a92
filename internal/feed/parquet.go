package feed

import (
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/chidi150c/vwaplive/internal/market"
)

// ParquetBar is the on-disk bar layout (t in unix milliseconds), the same
// columns the crawler's parquet saver writes.
type ParquetBar struct {
	Timestamp    int64   `parquet:"t"`
	Open         float64 `parquet:"o"`
	High         float64 `parquet:"h"`
	Low          float64 `parquet:"l"`
	Close        float64 `parquet:"c"`
	Volume       int64   `parquet:"v"`
	VWAP         float64 `parquet:"vw,optional"`
	Transactions int64   `parquet:"n,optional"`
}

// Parquet replays a parquet file loaded into memory at open.
type Parquet struct {
	*Slice
}

func OpenParquet(path string) (*Parquet, error) {
	rows, err := parquet.ReadFile[ParquetBar](path)
	if err != nil {
		return nil, fmt.Errorf("feed: parquet %s: %w", path, err)
	}
	bars := make([]market.Bar, len(rows))
	for i, r := range rows {
		bars[i] = market.Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: float64(r.Volume),
		}
	}
	return &Parquet{Slice: NewSlice(bars)}, nil
}

// WriteParquet stores bars in the layout OpenParquet reads.
func WriteParquet(path string, bars []market.Bar) error {
	rows := make([]ParquetBar, len(bars))
	for i, b := range bars {
		rows[i] = ParquetBar{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    int64(b.Volume),
		}
	}
	return parquet.WriteFile(path, rows)
}

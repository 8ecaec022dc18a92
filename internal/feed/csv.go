package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chidi150c/vwaplive/internal/market"
	"github.com/chidi150c/vwaplive/internal/util"
)

// CSV reads time,open,high,low,close[,volume] rows. Column order comes from
// the header; time may also be called timestamp or t.
type CSV struct {
	f    *os.File
	r    *csv.Reader
	col  map[string]int
	line int
}

func OpenCSV(path string) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	c, err := newCSV(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("feed: %s: %w", path, err)
	}
	c.f = f
	return c, nil
}

func newCSV(r io.Reader) (*CSV, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, alias := range []string{"timestamp", "t", "datetime"} {
		if _, ok := col["time"]; ok {
			break
		}
		if i, ok := col[alias]; ok {
			col["time"] = i
		}
	}
	for _, need := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("missing column %q", need)
		}
	}
	return &CSV{r: cr, col: col, line: 1}, nil
}

func (c *CSV) Next(ctx context.Context) (market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return market.Bar{}, err
	}
	rec, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return market.Bar{}, ErrExhausted
	}
	if err != nil {
		return market.Bar{}, fmt.Errorf("feed: csv: %w", err)
	}
	c.line++

	get := func(name string) string {
		i, ok := c.col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	var b market.Bar
	if b.Time, err = util.ParseTimestamp(get("time")); err != nil {
		return market.Bar{}, fmt.Errorf("feed: csv line %d: %w", c.line, err)
	}
	for _, fld := range []struct {
		name string
		dst  *float64
	}{{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}} {
		if *fld.dst, err = strconv.ParseFloat(get(fld.name), 64); err != nil {
			return market.Bar{}, fmt.Errorf("feed: csv line %d: %s: %w", c.line, fld.name, err)
		}
	}
	if v := get("volume"); v != "" {
		if b.Volume, err = strconv.ParseFloat(v, 64); err != nil {
			return market.Bar{}, fmt.Errorf("feed: csv line %d: volume: %w", c.line, err)
		}
	}
	return b, nil
}

func (c *CSV) Close() error {
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	return err
}

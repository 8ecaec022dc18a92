package journal

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/chidi150c/vwaplive/internal/util"
)

// ParquetJournal keeps the rows in memory and rewrites both files atomically
// on Flush. Existing files are read back on open so a restart continues the
// same journal.
type ParquetJournal struct {
	p     Paths
	sigs  []SignalRow
	perfs []PerfRow
	dirty bool
}

func OpenParquet(p Paths) (*ParquetJournal, error) {
	sigs, err := readRows[SignalRow](p.Signals)
	if err != nil {
		return nil, err
	}
	perfs, err := readRows[PerfRow](p.Performance)
	if err != nil {
		return nil, err
	}
	return &ParquetJournal{p: p, sigs: sigs, perfs: perfs}, nil
}

func readRows[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("journal: read %s: %w", path, err)
	}
	return rows, nil
}

func writeRows[T any](path string, rows []T) error {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return fmt.Errorf("journal: encode %s: %w", path, err)
	}
	return util.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

func (j *ParquetJournal) Signal(r SignalRow) error {
	j.sigs = append(j.sigs, r)
	j.dirty = true
	return nil
}

func (j *ParquetJournal) Perf(r PerfRow) error {
	j.perfs = append(j.perfs, r)
	j.dirty = true
	return nil
}

func (j *ParquetJournal) Flush() error {
	if !j.dirty {
		return nil
	}
	if err := writeRows(j.p.Signals, j.sigs); err != nil {
		return err
	}
	if err := writeRows(j.p.Performance, j.perfs); err != nil {
		return err
	}
	j.dirty = false
	return nil
}

func (j *ParquetJournal) Close() error { return j.Flush() }

// Rows returns the buffered rows (including those read back on open).
func (j *ParquetJournal) Rows() ([]SignalRow, []PerfRow) {
	return append([]SignalRow(nil), j.sigs...), append([]PerfRow(nil), j.perfs...)
}

package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

// CSVJournal appends rows to two CSV files. A header is written only when a
// file is new or empty, so restarts keep appending to the same log.
type CSVJournal struct {
	sigF, perfF *os.File
	sig, perf   *csv.Writer
}

func OpenCSV(p Paths) (*CSVJournal, error) {
	sigF, sig, err := openAppend(p.Signals, signalHeader)
	if err != nil {
		return nil, err
	}
	perfF, perf, err := openAppend(p.Performance, perfHeader)
	if err != nil {
		sigF.Close()
		return nil, err
	}
	return &CSVJournal{sigF: sigF, perfF: perfF, sig: sig, perf: perf}, nil
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

func (j *CSVJournal) Signal(r SignalRow) error {
	rec := []string{
		r.Timestamp,
		r.Symbol,
		r.Action,
		optStr(r.Prob),
		optStr(r.Price),
		optStr(r.Qty),
		r.Reason,
		r.Session,
		optStr(r.VWAP),
		optStr(r.SpreadToVWAP),
		r.Features,
		r.Extra,
	}
	if err := j.sig.Write(rec); err != nil {
		return err
	}
	j.sig.Flush()
	return j.sig.Error()
}

func (j *CSVJournal) Perf(r PerfRow) error {
	rec := []string{
		r.Timestamp,
		floatStr(r.Equity),
		floatStr(r.RealizedPnL),
		floatStr(r.UnrealizedPnL),
		floatStr(r.Drawdown),
		floatStr(r.MaxEquity),
		strconv.FormatInt(r.Trades, 10),
		floatStr(r.PositionSize),
		optStr(r.LastPrice),
	}
	if err := j.perf.Write(rec); err != nil {
		return err
	}
	j.perf.Flush()
	return j.perf.Error()
}

// Flush fsyncs both files; rows are already handed to the OS on write.
func (j *CSVJournal) Flush() error {
	return errors.Join(j.sigF.Sync(), j.perfF.Sync())
}

func (j *CSVJournal) Close() error {
	return errors.Join(j.Flush(), j.sigF.Close(), j.perfF.Close())
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', 6, 64) }

func optStr(f *float64) string {
	if f == nil {
		return ""
	}
	return floatStr(*f)
}

// Package engine is the live orchestrator. It pulls one bar at a time,
// selects the active rule set, runs the exit and entry engines against the
// main book, applies that one decision to every book (through the broker or
// as a simulated fill depending on the mode), marks the books and only then
// advances the checkpoint.
//
// Everything runs on the caller's goroutine. A bar is either fully applied
// (journals flushed, ledgers saved, checkpoint written) or, on error, left
// for reprocessing on the next start.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/chidi150c/vwaplive/internal/broker"
	"github.com/chidi150c/vwaplive/internal/features"
	"github.com/chidi150c/vwaplive/internal/feed"
	"github.com/chidi150c/vwaplive/internal/market"
	"github.com/chidi150c/vwaplive/internal/metrics"
	"github.com/chidi150c/vwaplive/internal/model"
	"github.com/chidi150c/vwaplive/internal/risk"
	"github.com/chidi150c/vwaplive/internal/schedule"
	"github.com/chidi150c/vwaplive/internal/strategy"
	"github.com/chidi150c/vwaplive/internal/util"
)

// Executor places one order and reports its terminal outcome.
// *guards.SafeBroker satisfies it.
type Executor interface {
	PlaceOrder(ctx context.Context, intent broker.OrderIntent) (broker.OrderResult, error)
}

// EntryFunc decides entries. strategy.DecideEntry unless replaced.
type EntryFunc func(strategy.EntryInput) strategy.Decision

// Config is the static part of the engine.
type Config struct {
	Mode           Mode
	Symbol         string
	CheckpointPath string
	// Features is the global model input order used when the active rule
	// set lists none.
	Features     []string
	PollInterval time.Duration
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Feed     feed.Feed
	Source   features.Source
	Model    model.Predictor
	Registry *schedule.Registry
	Guard    risk.Guard
	Executor Executor // required unless Mode is dry_run
	Main     *Book
	Shadow   *Book // required for shadow_dual
}

type Engine struct {
	cfg      Config
	feed     feed.Feed
	src      features.Source
	model    model.Predictor
	registry *schedule.Registry
	guard    risk.Guard
	exec     Executor
	books    []*Book

	decide EntryFunc
	sleep  func(context.Context, time.Duration) error
	log    *slog.Logger

	last time.Time // resume point
	prev *strategy.PrevBar
}

// Option customises an Engine.
type Option func(*Engine)

// WithEntryFunc replaces the entry decision.
func WithEntryFunc(f EntryFunc) Option { return func(e *Engine) { e.decide = f } }

// WithSleep replaces the no-data wait.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(e *Engine) { e.sleep = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

func New(cfg Config, d Deps, opts ...Option) (*Engine, error) {
	switch {
	case d.Feed == nil:
		return nil, errors.New("engine: feed is required")
	case d.Source == nil:
		return nil, errors.New("engine: feature source is required")
	case d.Model == nil:
		return nil, errors.New("engine: model is required")
	case d.Registry == nil:
		return nil, errors.New("engine: schedule registry is required")
	case d.Main == nil:
		return nil, errors.New("engine: main book is required")
	case cfg.Mode.UsesBroker() && d.Executor == nil:
		return nil, fmt.Errorf("engine: mode %s needs an executor", cfg.Mode)
	case cfg.Mode.HasShadow() && d.Shadow == nil:
		return nil, errors.New("engine: shadow_dual needs a shadow book")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDryRun
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	d.Main.simulated = !cfg.Mode.UsesBroker()
	books := []*Book{d.Main}
	if cfg.Mode.HasShadow() {
		d.Shadow.simulated = true
		books = append(books, d.Shadow)
	}

	e := &Engine{
		cfg:      cfg,
		feed:     d.Feed,
		src:      d.Source,
		model:    d.Model,
		registry: d.Registry,
		guard:    d.Guard,
		exec:     d.Executor,
		books:    books,
		decide:   strategy.DecideEntry,
		sleep:    sleepCtx,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Books returns the main book followed by the shadow book, if any.
func (e *Engine) Books() []*Book { return e.books }

// ResumePoint is the timestamp at or before which bars are skipped.
func (e *Engine) ResumePoint() time.Time { return e.last }

// Restore loads every book's ledger and the checkpoint. The resume point is
// the later of the checkpoint and the newest ledger stamp, so a crash
// between saving ledgers and writing the checkpoint does not apply the same
// bar twice.
func (e *Engine) Restore() (time.Time, error) {
	var last time.Time
	if e.cfg.CheckpointPath != "" {
		cp, err := util.LoadCheckpoint(e.cfg.CheckpointPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return time.Time{}, fmt.Errorf("engine: checkpoint: %w", err)
		default:
			ts, err := cp.Time()
			if err != nil {
				return time.Time{}, fmt.Errorf("engine: checkpoint: %w", err)
			}
			last = ts
		}
	}
	for _, b := range e.books {
		if err := b.restore(); err != nil {
			return time.Time{}, err
		}
		if asOf := b.Tracker.AsOf(); asOf.After(last) {
			last = asOf
		}
	}
	e.last = last
	if !last.IsZero() {
		e.log.Info("[checkpoint] resuming", "after", util.FormatTimestamp(last))
	}
	return last, nil
}

// Run restores state and processes bars until the feed is exhausted (nil),
// ctx is cancelled (ctx.Err()) or an iteration fails.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.Restore(); err != nil {
		return err
	}
	src := feed.Resume(e.feed, e.last)
	e.log.Info("[engine] started", "mode", e.cfg.Mode, "symbol", e.cfg.Symbol, "schedules", e.registry.Names())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		bar, err := src.Next(ctx)
		switch {
		case errors.Is(err, feed.ErrExhausted):
			e.log.Info("[engine] feed exhausted", "last", util.FormatTimestamp(e.last))
			return nil
		case errors.Is(err, feed.ErrNoData):
			if err := e.sleep(ctx, e.cfg.PollInterval); err != nil {
				return err
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("engine: feed: %w", err)
		}
		if err := e.Step(ctx, bar); err != nil {
			return err
		}
	}
}

// sample is what every book sees for one bar.
type sample struct {
	ts       time.Time
	candle   market.Candle
	feats    market.Features
	rules    *schedule.RuleSet
	prob     float64
	names    []string
	vector   []float32
	missing  []string
	prev     *strategy.PrevBar
	tsString string
}

// Step applies one bar. Bars at or before the resume point are skipped.
// The checkpoint moves to bar.Time only when every book has been updated,
// journaled and saved.
func (e *Engine) Step(ctx context.Context, bar market.Bar) error {
	bar.Time = bar.Time.UTC()
	if !e.last.IsZero() && !bar.Time.After(e.last) {
		e.log.Debug("[engine] skipping replayed bar", "ts", util.FormatTimestamp(bar.Time))
		return nil
	}

	s := e.prepare(bar)
	p := e.plan(s)
	for _, b := range e.books {
		if err := e.apply(ctx, b, s, p); err != nil {
			return err
		}
	}

	for _, b := range e.books {
		b.Tracker.SetAsOf(s.ts)
		if err := b.persist(); err != nil {
			return err
		}
	}
	if e.cfg.CheckpointPath != "" {
		if err := util.SaveCheckpoint(e.cfg.CheckpointPath, s.ts); err != nil {
			return fmt.Errorf("engine: save checkpoint: %w", err)
		}
	}
	e.last = s.ts
	if s.candle.HasVWAP {
		e.prev = &strategy.PrevBar{Close: s.candle.Close, VWAP: s.candle.VWAP}
	} else {
		e.prev = nil
	}
	return nil
}

func (e *Engine) prepare(bar market.Bar) sample {
	candle, feats := e.src.Push(bar)
	rs := e.registry.Active(util.HourUTC(bar.Time))

	var listed []string
	if rs != nil {
		listed = rs.Features
	}
	names := features.Names(listed, e.cfg.Features)
	vec, missing := features.Vector(feats, names)

	// An incomplete vector is never scored; the NaN probability makes the
	// entry gate reject the bar as invalid_features.
	prob := math.NaN()
	if len(missing) > 0 {
		e.log.Debug("[engine] features missing, entry rejected", "missing", missing)
	} else if p, err := e.model.Predict(vec); err != nil {
		e.log.Warn("[engine] model prediction failed", "error", err)
	} else {
		prob = p
	}
	return sample{
		ts:       bar.Time,
		candle:   candle,
		feats:    feats,
		rules:    rs,
		prob:     prob,
		names:    names,
		vector:   vec,
		missing:  missing,
		prev:     e.prev,
		tsString: util.FormatTimestamp(bar.Time),
	}
}

// outcome is what happened to one book on one bar, for the journal.
type outcome struct {
	action   strategy.Action
	reason   string
	qty      float64
	kind     string // entry | exit | ""
	executed bool
	order    *broker.OrderResult
	schedule string
}

// Rejections added when a decision cannot be applied to a book.
const (
	// ReasonPositionOpen rejects an entry signal while the book holds a position.
	ReasonPositionOpen = "position_open"
	// ReasonNoPosition marks an exit a book has nothing to close for.
	ReasonNoPosition = "no_position"
)

// decision is taken once per bar from the main book and applied unchanged
// to every book, so the shadow book replays the same signals.
type decision struct {
	action   strategy.Action
	reason   string
	qty      float64
	kind     string
	side     market.Side
	price    float64
	schedule string
}

// plan runs the exit engine when the main book holds a position, else the
// entry engine against the main book's drawdown. An exit wins; entries are
// only taken flat.
func (e *Engine) plan(s sample) decision {
	main := e.books[0]
	snap := main.Tracker.Snapshot()
	d := decision{action: strategy.ActionFlat}
	if s.rules != nil {
		d.schedule = s.rules.Name
	}

	if side, open := snap.Side(); open {
		rs := main.openedBy
		if rs == nil {
			rs = s.rules
		}
		ex := strategy.DecideExit(strategy.ExitInput{
			Side:       side,
			EntryPrice: snap.EntryPrice,
			Candle:     s.candle,
			RuleSet:    rs,
			TickSize:   main.Tracker.Contract().TickSize,
			Prev:       s.prev,
		})
		if ex.Exit {
			d.side = side.Opposite()
			d.action = strategy.Action(d.side)
			d.reason = ex.Reason
			d.qty = math.Abs(snap.PositionQty)
			d.kind = kindExit
			d.price = ex.Price
			if rs != nil {
				d.schedule = rs.Name
			}
			return d
		}
	}

	dec := e.decide(strategy.EntryInput{
		Features:    s.feats,
		Probability: s.prob,
		RuleSet:     s.rules,
		Guard:       e.guard,
		Drawdown:    snap.Drawdown,
	})
	d.action = dec.Action
	d.reason = dec.RejectReason
	d.qty = dec.Quantity
	if dec.Schedule != "" {
		d.schedule = dec.Schedule
	}
	if dec.Actionable() {
		if !snap.Flat() {
			d.reason = ReasonPositionOpen
			return d
		}
		d.side, _ = dec.Action.Side()
		d.kind = kindEntry
		d.price = s.candle.Close
	}
	return d
}

// apply executes d on b, marks b and journals the bar. A book never holds
// more than one position: entries need it flat and exits close only the
// side it holds.
func (e *Engine) apply(ctx context.Context, b *Book, s sample, d decision) error {
	out := outcome{action: d.action, reason: d.reason, qty: d.qty, kind: d.kind, schedule: d.schedule}
	snap := b.Tracker.Snapshot()

	switch d.kind {
	case kindExit:
		side, open := snap.Side()
		if !open || side != d.side.Opposite() {
			out.reason = joinReason(out.reason, ReasonNoPosition)
			break
		}
		out.qty = math.Abs(snap.PositionQty)
		if err := e.execute(ctx, b, s, d.side, d.price, &out); err != nil {
			return err
		}
		if b.Tracker.Snapshot().Flat() {
			b.openedBy = nil
		}
	case kindEntry:
		if !snap.Flat() {
			out.reason = ReasonPositionOpen
			break
		}
		if err := e.execute(ctx, b, s, d.side, d.price, &out); err != nil {
			return err
		}
		if out.executed {
			b.openedBy = s.rules
		}
	}
	return e.finish(b, s, out)
}

// execute fills a simulated book directly or sends the order through the
// executor. Broker failures are recorded on out, not returned: a failed order
// never moves the book.
func (e *Engine) execute(ctx context.Context, b *Book, s sample, side market.Side, price float64, out *outcome) error {
	if !(out.qty > 0) {
		out.reason = "zero_quantity"
		return nil
	}
	if b.simulated {
		if err := b.Tracker.OnFill(price, out.qty, side); err != nil {
			return fmt.Errorf("engine: %s book fill: %w", b.Name, err)
		}
		out.executed = true
		e.log.Info("[engine] simulated fill", "book", b.Name, "kind", out.kind, "side", side, "qty", out.qty, "price", price, "reason", out.reason)
		return nil
	}

	intent := broker.OrderIntent{
		Symbol:         e.cfg.Symbol,
		Side:           side,
		Quantity:       out.qty,
		IdempotencyKey: IntentKey(e.cfg.Symbol, out.kind, side, out.qty, s.ts),
	}
	res, err := e.exec.PlaceOrder(ctx, intent)
	out.order = &res
	if b == e.books[0] {
		metrics.IncOrder(res.Status)
	}
	if err != nil || !res.OK() {
		msg := res.Err
		if msg == "" && err != nil {
			msg = err.Error()
		}
		out.reason = joinReason(out.reason, "order_failed: "+msg)
		e.log.Warn("[engine] order not filled", "book", b.Name, "kind", out.kind, "key", res.IdempotencyKey, "error", msg)
		return nil
	}

	fill := FillPrice(res.Response, price)
	if err := b.Tracker.OnFill(fill, out.qty, side); err != nil {
		return fmt.Errorf("engine: %s book fill: %w", b.Name, err)
	}
	out.executed = true
	return nil
}

func joinReason(a, b string) string {
	if a == "" {
		return b
	}
	return a + ";" + b
}

// finish marks the book at the bar close and journals the bar.
func (e *Engine) finish(b *Book, s sample, out outcome) error {
	b.Tracker.OnMark(s.candle.Close)
	snap := b.Tracker.Snapshot()

	if err := b.Journal.Signal(e.signalRow(b, s, out)); err != nil {
		return fmt.Errorf("engine: %s journal: %w", b.Name, err)
	}
	if err := b.Journal.Perf(perfRow(s.tsString, snap)); err != nil {
		return fmt.Errorf("engine: %s journal: %w", b.Name, err)
	}

	if b == e.books[0] {
		metrics.RecordSignal(string(out.action), out.executed, out.schedule)
		metrics.SetPerf(snap)
	}
	return nil
}

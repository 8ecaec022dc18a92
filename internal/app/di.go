// Package app turns a Config into the engine and its collaborators. The
// Provide* functions are the Wire providers used by cmd/bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chidi150c/vwaplive/internal/audit"
	"github.com/chidi150c/vwaplive/internal/broker"
	"github.com/chidi150c/vwaplive/internal/config"
	"github.com/chidi150c/vwaplive/internal/engine"
	"github.com/chidi150c/vwaplive/internal/features"
	"github.com/chidi150c/vwaplive/internal/feed"
	"github.com/chidi150c/vwaplive/internal/guards"
	"github.com/chidi150c/vwaplive/internal/journal"
	"github.com/chidi150c/vwaplive/internal/ledger"
	"github.com/chidi150c/vwaplive/internal/model"
	"github.com/chidi150c/vwaplive/internal/risk"
	"github.com/chidi150c/vwaplive/internal/schedule"
	"github.com/chidi150c/vwaplive/internal/slogx"
	"github.com/chidi150c/vwaplive/internal/util"
)

// Flags are the command-line inputs the providers need.
type Flags struct {
	ConfigPath string
	EnvFile    string
}

// ProvideConfig loads config.yaml and .env (for Wire).
func ProvideConfig(f Flags) (config.Config, error) {
	return config.Load(f.ConfigPath, f.EnvFile)
}

// ProvideLogger builds the process logger and makes it the slog default.
func ProvideLogger(cfg config.Config) *slog.Logger {
	l := slogx.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(l)
	return l
}

// ProvidePidLock takes the single-writer lock on the state directory. An
// empty pid_file disables it.
func ProvidePidLock(cfg config.Config) (*util.PidLock, func(), error) {
	if cfg.State.PidFile == "" {
		return nil, func() {}, nil
	}
	l, err := util.AcquirePidLock(cfg.State.PidFile)
	if err != nil {
		return nil, nil, err
	}
	return l, l.Release, nil
}

// ProvideRegistry loads the optimizer schedule. Any invalid schedule is fatal.
func ProvideRegistry(cfg config.Config) (*schedule.Registry, error) {
	return schedule.LoadFile(cfg.Schedule.Path, schedule.LoadOptions{DefaultLots: cfg.General.DefaultLots})
}

// ProvideGuard resolves drawdown ceilings against the schedule's global
// constant and the config fallback.
func ProvideGuard(cfg config.Config, reg *schedule.Registry) risk.Guard {
	return risk.NewGuard(reg.GlobalMaxDrawdownUSD, cfg.General.MaxDrawdownUSD)
}

// ProvideFeed opens the configured market data feed.
func ProvideFeed(ctx context.Context, cfg config.Config) (feed.Feed, func(), error) {
	f, err := feed.Open(ctx, feed.Options{
		Kind:        cfg.Data.Kind,
		Path:        cfg.Data.Path,
		URL:         cfg.Data.URL,
		Subscribe:   cfg.Data.Subscribe,
		PollTimeout: cfg.Data.PollTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// ProvideSource builds the reference VWAP/ATR enricher, scaled to the
// contract's tick size.
func ProvideSource(cfg config.Config) features.Source {
	return features.NewEnricher(cfg.Features.VWAPPeriod, cfg.Features.ATRPeriod, cfg.General.TickSize)
}

// ProvideModel opens the probability model. ONNX models take the global
// feature list as their input width.
func ProvideModel(cfg config.Config) (model.Predictor, func(), error) {
	m := cfg.Model
	p, err := model.Open(model.Options{
		Kind:        m.Kind,
		Constant:    m.Constant,
		Path:        m.Path,
		LibPath:     m.LibPath,
		InputName:   m.InputName,
		OutputName:  m.OutputName,
		NumFeatures: len(features.Names(nil, cfg.Features.Names)),
		OutputSize:  m.OutputSize,
		OutputIndex: m.OutputIndex,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}

// ProvideAudit opens the NDJSON audit log, or discards when no path is set.
func ProvideAudit(cfg config.Config) (audit.Sink, func(), error) {
	if cfg.API.AuditLog == "" {
		return audit.Discard{}, func() {}, nil
	}
	l, err := audit.Open(cfg.API.AuditLog)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

// ProvideBrokerClient talks HTTP in live modes and stays local in dry_run.
func ProvideBrokerClient(cfg config.Config) broker.Client {
	if cfg.Trading.Mode == string(engine.ModeDryRun) || cfg.API.BaseURL == "" {
		return broker.NewPaperClient()
	}
	return broker.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token)
}

// ProvideSafeBroker wraps the client with retries, idempotency and audit.
func ProvideSafeBroker(cfg config.Config, c broker.Client, sink audit.Sink, l *slog.Logger) *guards.SafeBroker {
	policy := guards.RetryPolicy{
		Timeout:           cfg.API.Timeout(),
		MaxRetries:        cfg.API.MaxRetries,
		BackoffInitial:    time.Duration(cfg.API.BackoffInitialMS) * time.Millisecond,
		BackoffMax:        time.Duration(cfg.API.BackoffMaxMS) * time.Millisecond,
		RetryableStatuses: cfg.API.RetryableStatuses,
	}
	opts := broker.PayloadOptions{
		AccountID:   cfg.API.AccountID,
		OrderType:   cfg.Trading.OrderType,
		TimeInForce: cfg.Trading.TimeInForce,
		TickSize:    cfg.General.TickSize,
		QtyDecimals: cfg.Trading.QtyDecimals,
	}
	return guards.NewSafeBroker(c, sink, policy, opts, guards.WithLogger(l))
}

// Books are the ledgers the engine owns. Shadow is nil outside shadow_dual.
type Books struct {
	Main   *engine.Book
	Shadow *engine.Book
}

// ProvideBooks opens the journals and builds the trackers. Ledger state is
// restored by the engine, not here.
func ProvideBooks(cfg config.Config) (Books, func(), error) {
	contract := ledger.Contract{TickSize: cfg.General.TickSize, TickValue: cfg.General.TickValue}
	if err := contract.Validate(); err != nil {
		return Books{}, nil, err
	}
	mode, err := engine.ParseMode(cfg.Trading.Mode)
	if err != nil {
		return Books{}, nil, err
	}

	mainJ, err := journal.Open(cfg.Logging.JournalFormat, journal.Paths{
		Signals:     cfg.Logging.SignalCSV,
		Performance: cfg.Logging.PerformanceCSV,
	})
	if err != nil {
		return Books{}, nil, fmt.Errorf("main journal: %w", err)
	}
	books := Books{
		Main: engine.NewBook("main", ledger.NewTracker(contract), mainJ, ledger.Store{Path: cfg.State.Ledger}),
	}
	closers := []journal.Journal{mainJ}

	if mode.HasShadow() {
		shadowJ, err := journal.Open(cfg.Logging.JournalFormat, journal.Paths{
			Signals:     cfg.Logging.ShadowSignalCSV,
			Performance: cfg.Logging.ShadowPerformanceCSV,
		})
		if err != nil {
			_ = mainJ.Close()
			return Books{}, nil, fmt.Errorf("shadow journal: %w", err)
		}
		books.Shadow = engine.NewBook("shadow", ledger.NewTracker(contract), shadowJ, ledger.Store{Path: cfg.State.ShadowLedger})
		closers = append(closers, shadowJ)
	}

	cleanup := func() {
		var errs []error
		for _, j := range closers {
			errs = append(errs, j.Close())
		}
		if err := errors.Join(errs...); err != nil {
			slog.Warn("[app] closing journals", "error", err)
		}
	}
	return books, cleanup, nil
}

// ProvideEngine assembles the orchestrator.
func ProvideEngine(
	cfg config.Config,
	l *slog.Logger,
	f feed.Feed,
	src features.Source,
	p model.Predictor,
	reg *schedule.Registry,
	g risk.Guard,
	exec engine.Executor,
	books Books,
) (*engine.Engine, error) {
	mode, err := engine.ParseMode(cfg.Trading.Mode)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Mode:           mode,
		Symbol:         cfg.Trading.Symbol,
		CheckpointPath: cfg.State.Checkpoint,
		Features:       cfg.Features.Names,
		PollInterval:   cfg.Data.PollInterval(),
	}, engine.Deps{
		Feed:     f,
		Source:   src,
		Model:    p,
		Registry: reg,
		Guard:    g,
		Executor: exec,
		Main:     books.Main,
		Shadow:   books.Shadow,
	}, engine.WithLogger(l))
}

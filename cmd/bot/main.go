// Package main is the live VWAP mean-reversion bot.
//
// Boot sequence:
//  1. load config.yaml and .env
//  2. take the pid lock on the state directory
//  3. build schedule, feed, model, broker and books via Wire
//  4. optionally serve /metrics and /healthz
//  5. run the engine until the feed is exhausted or a signal arrives
//
// Flags:
//
//	-config <path>  YAML config (default config.yaml)
//	-env <path>     dotenv file; process env wins (default .env)
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chidi150c/vwaplive/internal/app"
	"github.com/chidi150c/vwaplive/internal/slogx"
)

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	var flags app.Flags
	flag.StringVar(&flags.ConfigPath, "config", "config.yaml", "path to config.yaml")
	flag.StringVar(&flags.EnvFile, "env", ".env", "path to dotenv file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, cleanup, err := InitializeApp(ctx, flags)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	os.Exit(run(ctx, a, cleanup))
}

func run(ctx context.Context, a *App, cleanup func()) int {
	defer cleanup()
	cfg := a.Config
	log := a.Logger

	var srv *http.Server
	if p := cfg.Monitoring.Prometheus; p.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok\n"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		srv = &http.Server{Addr: p.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("[metrics] serving", "addr", p.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("[metrics] server", "error", err)
			}
		}()
	}

	log.Info("[bot] starting", "mode", cfg.Trading.Mode, "symbol", cfg.Trading.Symbol, "data", cfg.Data.Kind)
	code := 0
	if err := a.Engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("[bot] engine stopped", "error", err)
		code = 1
	} else {
		log.Info("[bot] stopped", "resume_point", a.Engine.ResumePoint())
	}

	if srv != nil {
		shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
		defer c()
		_ = srv.Shutdown(shutdownCtx)
	}
	return code
}

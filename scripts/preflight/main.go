package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chidi150c/vwaplive/internal/config"
	"github.com/chidi150c/vwaplive/internal/engine"
	"github.com/chidi150c/vwaplive/internal/schedule"
)

func fail(msg string) { log.Fatalf("FAIL: %s", msg) }
func pass(msg string) { fmt.Println("PASS:", msg) }

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config.yaml")
	envPath := flag.String("env", ".env", "path to dotenv file")
	flag.Parse()

	// Config + .env (env never overwrites the process environment)
	cfg, err := config.Load(*cfgPath, *envPath)
	if err != nil {
		fail(err.Error())
	}
	pass("config valid: " + *cfgPath)

	mode, err := engine.ParseMode(cfg.Trading.Mode)
	if err != nil {
		fail(err.Error())
	}
	pass("MODE is " + string(mode))

	reg, err := schedule.LoadFile(cfg.Schedule.Path, schedule.LoadOptions{DefaultLots: cfg.General.DefaultLots})
	if err != nil {
		fail(err.Error())
	}
	pass("schedule loaded: " + strings.Join(reg.Names(), ","))

	var gaps []string
	for h := 0; h < 24; h++ {
		if reg.Active(h) == nil {
			gaps = append(gaps, fmt.Sprintf("%02d", h))
		}
	}
	if len(gaps) > 0 {
		fmt.Println("NOTE: no schedule active at UTC hours", strings.Join(gaps, ","), "(bars there are journaled FLAT)")
	} else {
		pass("every UTC hour has a schedule")
	}

	if reg.GlobalMaxDrawdownUSD == nil && cfg.General.MaxDrawdownUSD == nil {
		fmt.Println("NOTE: no MAX_EQUITY_DD_USD_LIMIT in schedule or config; drawdown guard is off")
	} else {
		pass("drawdown ceiling configured")
	}

	if cfg.Data.Kind != "ws" {
		if _, err := os.Stat(cfg.Data.Path); err != nil {
			fail("data file: " + err.Error())
		}
		pass("data file present: " + cfg.Data.Path)
	}

	if mode.UsesBroker() {
		if cfg.API.Token == "" {
			fail("BROKER_TOKEN missing for " + string(mode))
		}
		pass("broker endpoint and account present")
		if cfg.API.AuditLog == "" {
			fmt.Println("NOTE: api.audit_log empty; order attempts will not be recorded")
		}
	} else if cfg.API.Token != "" {
		fmt.Println("NOTE: broker token present in dry_run. Ensure .env is gitignored.")
	}

	pass("Preflight completed")
}

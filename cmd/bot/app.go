package main

import (
	"log/slog"

	"github.com/chidi150c/vwaplive/internal/config"
	"github.com/chidi150c/vwaplive/internal/engine"
	"github.com/chidi150c/vwaplive/internal/util"
)

// App holds the process dependencies built by Wire.
type App struct {
	Lock   *util.PidLock
	Config config.Config
	Logger *slog.Logger
	Engine *engine.Engine
}

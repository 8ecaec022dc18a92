// Package config builds the single Config value the binary runs with:
// config.yaml, then .env (never overriding the process environment), then
// environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type General struct {
	TickSize       float64  `yaml:"TICK_SIZE" validate:"gt=0"`
	TickValue      float64  `yaml:"TICK_VALUE" validate:"gt=0"`
	DefaultLots    float64  `yaml:"DEFAULT_FIXED_LOTS" validate:"gt=0"`
	MaxDrawdownUSD *float64 `yaml:"MAX_EQUITY_DD_USD_LIMIT" validate:"omitempty,gt=0"` // fallback ceiling
}

type Trading struct {
	Mode        string `yaml:"mode" validate:"oneof=dry_run prod shadow_dual"`
	Symbol      string `yaml:"symbol" validate:"required"`
	OrderType   string `yaml:"order_type" validate:"oneof=MARKET LIMIT"`
	TimeInForce string `yaml:"time_in_force" validate:"required"`
	QtyDecimals int32  `yaml:"qty_decimals" validate:"gte=0,lte=8"`
}

type API struct {
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	AccountID         string  `yaml:"account_id"`
	Token             string  `yaml:"token"`
	TimeoutSeconds    float64 `yaml:"timeout_seconds" validate:"gt=0"`
	MaxRetries        int     `yaml:"max_retries" validate:"gte=0,lte=10"`
	BackoffInitialMS  int     `yaml:"backoff_initial_ms" validate:"gt=0"`
	BackoffMaxMS      int     `yaml:"backoff_max_ms" validate:"gtefield=BackoffInitialMS"`
	RetryableStatuses []int   `yaml:"retryable_statuses" validate:"dive,min=100,max=599"`
	AuditLog          string  `yaml:"audit_log"`
}

type Schedule struct {
	Path string `yaml:"path" validate:"required"`
}

type Data struct {
	Kind           string `yaml:"kind" validate:"oneof=csv parquet ws"`
	Path           string `yaml:"path" validate:"required_unless=Kind ws"`
	URL            string `yaml:"url" validate:"required_if=Kind ws,omitempty,url"`
	Subscribe      string `yaml:"subscribe"`
	PollTimeoutMS  int    `yaml:"poll_timeout_ms" validate:"gte=0"`
	PollIntervalMS int    `yaml:"poll_interval_ms" validate:"gte=0"`
}

type Features struct {
	VWAPPeriod int      `yaml:"vwap_period" validate:"min=1"`
	ATRPeriod  int      `yaml:"atr_period" validate:"min=1"`
	Names      []string `yaml:"names" validate:"dive,required"`
}

type Model struct {
	Kind        string  `yaml:"kind" validate:"oneof=constant onnx"`
	Constant    float64 `yaml:"constant" validate:"gte=0,lte=1"`
	Path        string  `yaml:"path" validate:"required_if=Kind onnx"`
	LibPath     string  `yaml:"lib_path"`
	InputName   string  `yaml:"input_name"`
	OutputName  string  `yaml:"output_name"`
	OutputSize  int     `yaml:"output_size" validate:"gte=0"`
	OutputIndex int     `yaml:"output_index" validate:"gte=0"`
}

type Logging struct {
	Level                string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format               string `yaml:"format" validate:"oneof=text json"`
	JournalFormat        string `yaml:"journal_format" validate:"oneof=csv parquet"`
	SignalCSV            string `yaml:"signal_csv" validate:"required"`
	PerformanceCSV       string `yaml:"performance_csv" validate:"required"`
	ShadowSignalCSV      string `yaml:"shadow_signal_csv" validate:"required"`
	ShadowPerformanceCSV string `yaml:"shadow_performance_csv" validate:"required"`
}

type Prometheus struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

type Monitoring struct {
	Prometheus Prometheus `yaml:"prometheus"`
}

type State struct {
	Checkpoint   string `yaml:"checkpoint" validate:"required"`
	Ledger       string `yaml:"ledger" validate:"required"`
	ShadowLedger string `yaml:"shadow_ledger" validate:"required"`
	PidFile      string `yaml:"pid_file"`
}

// Config is built once at startup and passed by value.
type Config struct {
	General    General    `yaml:"general"`
	Trading    Trading    `yaml:"trading"`
	API        API        `yaml:"api"`
	Schedule   Schedule   `yaml:"config_horaire"`
	Data       Data       `yaml:"data"`
	Features   Features   `yaml:"features"`
	Model      Model      `yaml:"model"`
	Logging    Logging    `yaml:"logging"`
	Monitoring Monitoring `yaml:"monitoring"`
	State      State      `yaml:"state"`
}

// Default is the configuration before any file is read.
func Default() Config {
	return Config{
		General: General{TickSize: 0.03125, TickValue: 31.25, DefaultLots: 1},
		Trading: Trading{Mode: "dry_run", OrderType: "MARKET", TimeInForce: "DAY"},
		API: API{
			TimeoutSeconds:    5,
			MaxRetries:        3,
			BackoffInitialMS:  200,
			BackoffMaxMS:      2000,
			RetryableStatuses: []int{429, 500, 502, 503, 504},
			AuditLog:          "logs/audit.ndjson",
		},
		Data:     Data{Kind: "csv", PollTimeoutMS: 5000, PollIntervalMS: 1000},
		Features: Features{VWAPPeriod: 20, ATRPeriod: 14},
		Model:    Model{Kind: "constant", Constant: 0.5, OutputSize: 1},
		Logging: Logging{
			Level:                "info",
			Format:               "text",
			JournalFormat:        "csv",
			SignalCSV:            "logs/signals_log.csv",
			PerformanceCSV:       "logs/performance_log.csv",
			ShadowSignalCSV:      "logs/shadow_signals_log.csv",
			ShadowPerformanceCSV: "logs/shadow_performance_log.csv",
		},
		Monitoring: Monitoring{Prometheus: Prometheus{Addr: ":9108"}},
		State: State{
			Checkpoint:   "state/checkpoint.json",
			Ledger:       "state/ledger.json",
			ShadowLedger: "state/shadow_ledger.json",
			PidFile:      "state/bot.pid",
		},
	}
}

// Load reads path over Default, loads envFile (if present) into the process
// environment without overriding it, applies overrides and validates.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
			}
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv
// outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("MODE", &c.Trading.Mode)
	set("SYMBOL", &c.Trading.Symbol)
	set("ACCOUNT_ID", &c.API.AccountID)
	set("BROKER_BASE_URL", &c.API.BaseURL)
	set("BROKER_TOKEN", &c.API.Token)
	set("CHECKPOINT_PATH", &c.State.Checkpoint)
	set("LOG_LEVEL", &c.Logging.Level)
	set("SCHEDULE_PATH", &c.Schedule.Path)

	for key, dst := range map[string]*float64{
		"TICK_SIZE":  &c.General.TickSize,
		"TICK_VALUE": &c.General.TickValue,
	} {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", key, v, err)
		}
		*dst = f
	}
	return nil
}

func (c *Config) normalize() {
	c.Trading.Mode = strings.ToLower(strings.TrimSpace(c.Trading.Mode))
	c.Trading.OrderType = strings.ToUpper(strings.TrimSpace(c.Trading.OrderType))
	c.Data.Kind = strings.ToLower(strings.TrimSpace(c.Data.Kind))
	c.Model.Kind = strings.ToLower(strings.TrimSpace(c.Model.Kind))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.JournalFormat = strings.ToLower(strings.TrimSpace(c.Logging.JournalFormat))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate reports every violation at once. Live modes also need a broker
// endpoint and an account.
func (c Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range ve {
			ns := fe.Namespace()
			if i := strings.IndexByte(ns, '.'); i >= 0 {
				ns = ns[i+1:]
			}
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			problems = append(problems, fmt.Sprintf("%s failed %s", ns, rule))
		}
	}
	if c.Trading.Mode == "prod" || c.Trading.Mode == "shadow_dual" {
		if c.API.BaseURL == "" {
			problems = append(problems, "api.base_url is required in "+c.Trading.Mode+" mode")
		}
		if c.API.AccountID == "" {
			problems = append(problems, "api.account_id is required in "+c.Trading.Mode+" mode")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: invalid:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func (a API) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds * float64(time.Second))
}

func (d Data) PollTimeout() time.Duration {
	return time.Duration(d.PollTimeoutMS) * time.Millisecond
}

func (d Data) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMS) * time.Millisecond
}

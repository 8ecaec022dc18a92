package schedule

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Top-level keys of the optimizer document.
const (
	keyGlobals   = "GLOBAL_CONSTANTS"
	keySchedules = "CONFIGURATIONS_BY_SCHEDULE"
)

type globalsDoc struct {
	MaxDrawdownUSD *float64 `yaml:"MAX_EQUITY_DD_USD_LIMIT" validate:"omitempty,gt=0"`
}

type vwapDoc struct {
	Period         string   `yaml:"vwap_period"`
	EntryThreshold *float64 `yaml:"entry_threshold" validate:"required,gte=0"`
	ExitType       string   `yaml:"exit_type" validate:"required,oneof=cross vwap_level"`
	TPType         string   `yaml:"tp_type"` // older documents keep TP_TYPE here
}

type riskDoc struct {
	Method        string   `yaml:"METHOD" validate:"omitempty,oneof=ATR NONE"`
	ATRPeriod     int      `yaml:"ATR_PERIOD" validate:"required_if=Method ATR,omitempty,min=1"`
	ATRMultiplier float64  `yaml:"ATR_MULTIPLIER" validate:"required_if=Method ATR,omitempty,gt=0"`
	TPType        string   `yaml:"TP_TYPE" validate:"required,oneof=fixed_ticks vwap_level"`
	TPTicks       float64  `yaml:"TP_TICKS" validate:"required_if=TPType fixed_ticks,omitempty,gt=0"`
	FixedLots     *float64 `yaml:"FIXED_LOTS" validate:"omitempty,gt=0"`
}

type constraintsDoc struct {
	MaxDrawdownUSD *float64 `yaml:"MAX_EQUITY_DD_USD_LIMIT" validate:"omitempty,gt=0"`
}

type scheduleDoc struct {
	HourStart   *int           `yaml:"HOUR_RANGE_START" validate:"required,min=0,max=24"`
	HourEnd     *int           `yaml:"HOUR_RANGE_END" validate:"required,min=0,max=24"`
	MLThreshold *float64       `yaml:"ML_THRESHOLD" validate:"required,gte=0,lte=1"`
	VWAP        vwapDoc        `yaml:"VWAP_CONFIG"`
	Risk        riskDoc        `yaml:"RISK_MANAGEMENT"`
	Constraints constraintsDoc `yaml:"CONSTRAINTS"`
	Features    []string       `yaml:"features" validate:"dive,required"`
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

// LoadOptions carries the app-level defaults a schedule may omit.
type LoadOptions struct {
	DefaultLots float64
}

// LoadFile reads an optimizer schedule document (JSON or YAML) and returns
// the registry with rule sets in file order.
func LoadFile(path string, opts LoadOptions) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: read %s: %w", path, err)
	}
	reg, err := Parse(b, opts)
	if err != nil {
		return nil, fmt.Errorf("schedule: %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes an optimizer document. The schedules mapping is walked node
// by node so declaration order survives decoding.
func Parse(data []byte, opts LoadOptions) (*Registry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, errors.New("document root must be a mapping")
	}

	var (
		globals   globalsDoc
		schedules *yaml.Node
	)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		k, v := doc.Content[i], doc.Content[i+1]
		switch k.Value {
		case keyGlobals:
			if err := v.Decode(&globals); err != nil {
				return nil, fmt.Errorf("%s: %w", keyGlobals, err)
			}
		case keySchedules:
			schedules = v
		}
	}
	if schedules == nil {
		return nil, fmt.Errorf("%s missing", keySchedules)
	}
	if schedules.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping", keySchedules)
	}

	var problems []string
	if err := validate.Struct(globals); err != nil {
		problems = append(problems, describe(keyGlobals, err)...)
	}

	ruleSets := make([]RuleSet, 0, len(schedules.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(schedules.Content); i += 2 {
		name := strings.TrimSpace(schedules.Content[i].Value)
		if name == "" {
			problems = append(problems, "schedule with empty name")
			continue
		}
		if seen[name] {
			problems = append(problems, fmt.Sprintf("%s: duplicate schedule name", name))
			continue
		}
		seen[name] = true

		var sd scheduleDoc
		if err := schedules.Content[i+1].Decode(&sd); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		sd.Risk.Method = strings.ToUpper(strings.TrimSpace(sd.Risk.Method))
		sd.VWAP.ExitType = strings.ToLower(strings.TrimSpace(sd.VWAP.ExitType))
		if strings.TrimSpace(sd.Risk.TPType) == "" {
			sd.Risk.TPType = sd.VWAP.TPType
		}
		sd.Risk.TPType = strings.ToLower(strings.TrimSpace(sd.Risk.TPType))
		if err := validate.Struct(sd); err != nil {
			problems = append(problems, describe(name, err)...)
			continue
		}
		ruleSets = append(ruleSets, sd.toRuleSet(name, opts))
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid schedules:\n- %s", strings.Join(problems, "\n- "))
	}
	return NewRegistry(ruleSets, globals.MaxDrawdownUSD)
}

func (sd scheduleDoc) toRuleSet(name string, opts LoadOptions) RuleSet {
	lots := opts.DefaultLots
	if sd.Risk.FixedLots != nil {
		lots = *sd.Risk.FixedLots
	}
	if lots <= 0 {
		lots = 1
	}
	method := sd.Risk.Method
	if method == "NONE" {
		method = ""
	}
	return RuleSet{
		Name:           name,
		HourStart:      *sd.HourStart,
		HourEnd:        *sd.HourEnd,
		MLThreshold:    *sd.MLThreshold,
		EntryThreshold: *sd.VWAP.EntryThreshold,
		VWAPPeriod:     sd.VWAP.Period,
		ExitType:       ExitType(sd.VWAP.ExitType),
		TPType:         TPType(sd.Risk.TPType),
		TPTicks:        sd.Risk.TPTicks,
		RiskMethod:     method,
		ATRPeriod:      sd.Risk.ATRPeriod,
		ATRMultiplier:  sd.Risk.ATRMultiplier,
		FixedLots:      lots,
		MaxDrawdownUSD: sd.Constraints.MaxDrawdownUSD,
		Features:       append([]string(nil), sd.Features...),
	}
}

func describe(scope string, err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("%s: %v", scope, err)}
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out = append(out, fmt.Sprintf("%s: %s failed %s", scope, ns, rule))
	}
	return out
}

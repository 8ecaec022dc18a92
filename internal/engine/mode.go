package engine

import (
	"fmt"
	"strings"
)

// Mode selects where decisions are executed.
type Mode string

const (
	// ModeDryRun fills every decision straight into one simulated book.
	ModeDryRun Mode = "dry_run"
	// ModeProd routes decisions to the broker; the book moves only on ok.
	ModeProd Mode = "prod"
	// ModeShadowDual is prod plus an isolated simulated book.
	ModeShadowDual Mode = "shadow_dual"
)

// ParseMode accepts the three mode names, case-insensitive. "paper" and
// "dry-run" are read as dry_run, "live" as prod.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dry_run", "dry-run", "dryrun", "paper", "":
		return ModeDryRun, nil
	case "prod", "live":
		return ModeProd, nil
	case "shadow_dual", "shadow-dual", "shadow":
		return ModeShadowDual, nil
	default:
		return "", fmt.Errorf("engine: unknown mode %q (use: dry_run, prod, shadow_dual)", s)
	}
}

// UsesBroker reports whether the main book trades through the broker.
func (m Mode) UsesBroker() bool { return m == ModeProd || m == ModeShadowDual }

// HasShadow reports whether a simulated shadow book runs alongside.
func (m Mode) HasShadow() bool { return m == ModeShadowDual }

package alert

import (
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/probe"
	"github.com/hamed0406/uptimeguard/internal/schedule"
)

type Kind string

const (
	None      Kind = "none"
	Down      Kind = "down"
	Recovered Kind = "recovered"
	Slow      Kind = "slow"
)

// Decide picks at most one alert for a check. Status transitions win over SLOW.
// cfg must be normalized so its threshold is set.
//
//   - DOWN: the target went down from anything but down (unknown included).
//   - RECOVERED: the target is up and was not up before (unknown included).
//   - SLOW: the target is up but slower than the threshold.
func Decide(prev domain.Status, res probe.Result, cfg domain.AlertConfig) Kind {
	switch {
	case res.Status == domain.StatusDown && prev != domain.StatusDown:
		return Down
	case res.Status == domain.StatusUp && prev != domain.StatusUp:
		return Recovered
	case res.Status == domain.StatusUp && res.ResponseTimeMs != nil && *res.ResponseTimeMs > cfg.ResponseTimeThresholdMs:
		return Slow
	}
	return None
}

// Allowed reports whether an alert may be sent now: alerts are enabled, at
// least one enabled channel has a contact, and localNow is inside the alert window.
func Allowed(cfg domain.AlertConfig, c domain.Contacts, localNow time.Time) bool {
	if !cfg.Enabled || !HasChannel(cfg, c) {
		return false
	}
	if cfg.TimeWindow == nil {
		return true
	}
	return schedule.InWindow(*cfg.TimeWindow, schedule.ClockMinutes(localNow))
}

func HasChannel(cfg domain.AlertConfig, c domain.Contacts) bool {
	return (cfg.Email && len(c.Emails) > 0) || (cfg.Phone && len(c.Phones) > 0)
}

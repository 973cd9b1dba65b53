package domain

import (
	"strconv"
	"strings"
)

const (
	DefaultCheckIntervalMinutes = 5
	DefaultResponseThresholdMs  = 1000
)

// NormalizeMonitoring returns a copy of cfg with defaults applied and invalid
// entries dropped. Evaluators rely on this and never default fields themselves.
func NormalizeMonitoring(cfg MonitoringConfig) MonitoringConfig {
	out := MonitoringConfig{
		CheckIntervalMinutes: cfg.CheckIntervalMinutes,
		Alerts:               cfg.Alerts,
	}
	if out.CheckIntervalMinutes <= 0 {
		out.CheckIntervalMinutes = DefaultCheckIntervalMinutes
	}
	for _, d := range cfg.Weekdays {
		if d >= 0 && d <= 6 {
			out.Weekdays = append(out.Weekdays, d)
		}
	}
	for _, w := range cfg.TimeWindows {
		if ValidWindow(w) {
			out.TimeWindows = append(out.TimeWindows, w)
		}
	}
	if out.Alerts.ResponseTimeThresholdMs <= 0 {
		out.Alerts.ResponseTimeThresholdMs = DefaultResponseThresholdMs
	}
	if w := out.Alerts.TimeWindow; w != nil {
		if ValidWindow(*w) {
			cp := *w
			out.Alerts.TimeWindow = &cp
		} else {
			out.Alerts.TimeWindow = nil
		}
	}
	return out
}

// EffectiveMonitoring returns the normalized config of t and whether t had one at all.
func EffectiveMonitoring(t *MonitoredTarget) (MonitoringConfig, bool) {
	if t.Monitoring == nil {
		return NormalizeMonitoring(MonitoringConfig{}), false
	}
	return NormalizeMonitoring(*t.Monitoring), true
}

// ValidWindow reports whether both bounds parse as HH:MM.
func ValidWindow(w TimeWindow) bool {
	_, ok1 := ParseClock(w.Start)
	_, ok2 := ParseClock(w.End)
	return ok1 && ok2
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, bool) {
	hh, mm, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

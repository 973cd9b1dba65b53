package domain

import (
	"testing"
	"time"
)

func TestNormalizeMonitoring_AppliesDefaults(t *testing.T) {
	got := NormalizeMonitoring(MonitoringConfig{})
	if got.CheckIntervalMinutes != DefaultCheckIntervalMinutes {
		t.Fatalf("interval default: got %d", got.CheckIntervalMinutes)
	}
	if got.Alerts.ResponseTimeThresholdMs != DefaultResponseThresholdMs {
		t.Fatalf("threshold default: got %d", got.Alerts.ResponseTimeThresholdMs)
	}
	if len(got.Weekdays) != 0 || len(got.TimeWindows) != 0 || got.Alerts.TimeWindow != nil {
		t.Fatalf("expected empty schedule, got %+v", got)
	}
}

func TestNormalizeMonitoring_DropsInvalidEntries(t *testing.T) {
	in := MonitoringConfig{
		CheckIntervalMinutes: 15,
		Weekdays:             []int{-1, 1, 7, 3},
		TimeWindows: []TimeWindow{
			{Start: "09:00", End: "17:00"},
			{Start: "9am", End: "17:00"},
			{Start: "24:00", End: "01:00"},
		},
		Alerts: AlertConfig{
			Enabled:                 true,
			ResponseTimeThresholdMs: 2500,
			TimeWindow:              &TimeWindow{Start: "bad", End: "06:00"},
		},
	}
	got := NormalizeMonitoring(in)
	if got.CheckIntervalMinutes != 15 {
		t.Fatalf("interval: got %d", got.CheckIntervalMinutes)
	}
	if len(got.Weekdays) != 2 || got.Weekdays[0] != 1 || got.Weekdays[1] != 3 {
		t.Fatalf("weekdays: got %v", got.Weekdays)
	}
	if len(got.TimeWindows) != 1 || got.TimeWindows[0].Start != "09:00" {
		t.Fatalf("windows: got %v", got.TimeWindows)
	}
	if got.Alerts.ResponseTimeThresholdMs != 2500 {
		t.Fatalf("threshold: got %d", got.Alerts.ResponseTimeThresholdMs)
	}
	if got.Alerts.TimeWindow != nil {
		t.Fatalf("malformed alert window should collapse to always, got %+v", got.Alerts.TimeWindow)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"06:30", 390, true},
		{"23:59", 1439, true},
		{" 7:05 ", 425, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"1200", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseClock(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Fatalf("ParseClock(%q)=%d,%v want %d,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestOwner_HasPaidPlan(t *testing.T) {
	now := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	var missing *Owner
	if missing.HasPaidPlan(now) {
		t.Fatalf("nil owner must not be paid")
	}
	if (&Owner{Plan: "free"}).HasPaidPlan(now) {
		t.Fatalf("free plan must not be paid")
	}
	if (&Owner{Plan: "pro", PlanEndsAt: &past}).HasPaidPlan(now) {
		t.Fatalf("expired plan must not be paid")
	}
	if !(&Owner{Plan: "pro", PlanEndsAt: &future}).HasPaidPlan(now) {
		t.Fatalf("active plan should be paid")
	}
	if !(&Owner{Plan: "pro"}).HasPaidPlan(now) {
		t.Fatalf("open-ended plan should be paid")
	}
}

func TestStatusPatch_Apply_KeepsStatusChangeWhenUnchanged(t *testing.T) {
	before := time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC)
	now := before.Add(24 * time.Hour)
	tgt := &MonitoredTarget{Status: StatusUp, LastStatusChange: &before}

	ms := 42
	StatusPatch{TargetID: "T1", Status: StatusUp, ResponseTimeMs: &ms, CheckedAt: now}.Apply(tgt)

	if tgt.LastStatusChange == nil || !tgt.LastStatusChange.Equal(before) {
		t.Fatalf("status change must stay at %v, got %v", before, tgt.LastStatusChange)
	}
	if tgt.LastCheckedAt == nil || !tgt.LastCheckedAt.Equal(now) {
		t.Fatalf("checked-at not applied: %v", tgt.LastCheckedAt)
	}
	if tgt.LastResponseMs == nil || *tgt.LastResponseMs != 42 {
		t.Fatalf("response time not applied")
	}
}

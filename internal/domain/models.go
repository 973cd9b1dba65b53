package domain

import "time"

type TargetID string

type TargetType string

const (
	TypeHTTP     TargetType = "http"
	TypeHTTPS    TargetType = "https"
	TypeAPI      TargetType = "api"
	TypeDatabase TargetType = "database"
	TypeTCP      TargetType = "tcp"
)

type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

// TimeWindow is a local-time range in "HH:MM". End before Start wraps past midnight.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AlertConfig struct {
	Enabled                 bool        `json:"enabled"`
	Email                   bool        `json:"email"`
	Phone                   bool        `json:"phone"`
	ResponseTimeThresholdMs int         `json:"response_time_threshold_ms"`
	TimeWindow              *TimeWindow `json:"time_window,omitempty"` // nil = always
}

// MonitoringConfig is the per-target schedule. Empty Weekdays means every day,
// empty TimeWindows means all day.
type MonitoringConfig struct {
	CheckIntervalMinutes int          `json:"check_interval_minutes"`
	Weekdays             []int        `json:"weekdays,omitempty"`
	TimeWindows          []TimeWindow `json:"time_windows,omitempty"`
	Alerts               AlertConfig  `json:"alerts"`
}

type Contacts struct {
	Emails []string `json:"emails,omitempty"`
	Phones []string `json:"phones,omitempty"`
}

type MonitoredTarget struct {
	ID      TargetID   `json:"id"`
	Name    string     `json:"name"`
	Address string     `json:"address"`
	Type    TargetType `json:"type"`

	OwnerID   string `json:"owner_id"`
	OwnerRole string `json:"owner_role"` // snapshot at creation
	OwnerPlan string `json:"owner_plan"` // snapshot at creation

	// Monitoring is nil for targets created before schedules existed.
	Monitoring *MonitoringConfig `json:"monitoring,omitempty"`
	Contacts   Contacts          `json:"contacts"`

	Status           Status     `json:"status"`
	LastResponseMs   *int       `json:"last_response_ms,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	LastCheckedAt    *time.Time `json:"last_checked_at,omitempty"`
	LastStatusChange *time.Time `json:"last_status_change,omitempty"`

	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsAdmin reports whether the owner snapshot marks the target as admin-owned.
func (t *MonitoredTarget) IsAdmin() bool {
	return t.OwnerRole == "admin" || t.OwnerPlan == "admin"
}

// Owner is the live subscription record of a target owner.
type Owner struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Plan       string     `json:"plan"`
	PlanEndsAt *time.Time `json:"plan_ends_at,omitempty"`
}

// HasPaidPlan reports whether the owner holds a non-free plan that has not ended at now.
func (o *Owner) HasPaidPlan(now time.Time) bool {
	if o == nil || o.Plan == "" || o.Plan == "free" {
		return false
	}
	if o.PlanEndsAt != nil && o.PlanEndsAt.Before(now) {
		return false
	}
	return true
}

// CheckRecord is one executed check. Never mutated after creation.
type CheckRecord struct {
	ID             string    `json:"id"`
	TargetID       TargetID  `json:"target_id"`
	Status         Status    `json:"status"`
	ResponseTimeMs *int      `json:"response_time_ms"`
	ErrorMessage   *string   `json:"error_message"`
	Timestamp      time.Time `json:"timestamp"`

	Date   string `json:"date"` // YYYY-MM-DD, server-local
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Slot15 int    `json:"slot15"`
}

type DailySummary struct {
	TargetID      TargetID  `json:"target_id"`
	Date          string    `json:"date"`
	TotalChecks   int       `json:"total_checks"`
	UpChecks      int       `json:"up_checks"`
	UptimePercent float64   `json:"uptime_percent"`
	AvgResponseMs float64   `json:"avg_response_ms"`
	MinResponseMs int       `json:"min_response_ms"`
	MaxResponseMs int       `json:"max_response_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// StatusPatch is the explicit set of runtime fields a check writes back.
// StatusChangedAt is nil when the status did not change.
type StatusPatch struct {
	TargetID        TargetID
	Status          Status
	ResponseTimeMs  *int
	ErrorMessage    string
	CheckedAt       time.Time
	StatusChangedAt *time.Time
}

// Apply copies the patch onto t.
func (p StatusPatch) Apply(t *MonitoredTarget) {
	t.Status = p.Status
	t.LastResponseMs = p.ResponseTimeMs
	t.LastError = p.ErrorMessage
	checked := p.CheckedAt
	t.LastCheckedAt = &checked
	if p.StatusChangedAt != nil {
		changed := *p.StatusChangedAt
		t.LastStatusChange = &changed
	}
}

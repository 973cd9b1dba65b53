package probe

import (
	"context"
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

// DefaultTimeout bounds every outbound check.
const DefaultTimeout = 10 * time.Second

// Result is the unified outcome of a single check. Every checker returns one,
// including on failure.
//
// Fields:
//   - ResponseTimeMs: nil when no response was received at all.
//   - StatusCode: HTTP status code when available; 0 for TCP and transport errors.
//   - DNSClass: set only when a transport error triggered DNS diagnostics.
type Result struct {
	Status         domain.Status `json:"status"`
	ResponseTimeMs *int          `json:"response_time_ms,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	StatusCode     int           `json:"status_code,omitempty"`
	CheckedAt      time.Time     `json:"checked_at"`
	DNSClass       string        `json:"dns_class,omitempty"`
}

// Up reports whether the result classified the target as reachable.
func (r Result) Up() bool { return r.Status == domain.StatusUp }

// Checker performs a single check for a given target.
type Checker interface {
	Check(ctx context.Context, t *domain.MonitoredTarget) Result
}

func millis(d time.Duration) *int {
	ms := int(d / time.Millisecond)
	return &ms
}

func down(msg string, checkedAt time.Time) Result {
	return Result{Status: domain.StatusDown, ErrorMessage: msg, CheckedAt: checkedAt}
}

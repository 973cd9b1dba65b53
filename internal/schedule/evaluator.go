package schedule

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

// Reasons reported with a Decision.
const (
	ReasonAdmin        = "admin"
	ReasonNoOwner      = "no_owner"
	ReasonTrialExpired = "trial_expired"
	ReasonNoSchedule   = "no_schedule"
	ReasonWeekday      = "weekday"
	ReasonTimeWindow   = "time_window"
	ReasonInterval     = "interval"
	ReasonDue          = "due"
)

type Decision struct {
	Run    bool   `json:"run"`
	Reason string `json:"reason"`
}

// OwnerLookup resolves the live subscription of an owner. A missing owner is (nil, nil).
type OwnerLookup interface {
	GetOwner(ctx context.Context, ownerID string) (*domain.Owner, error)
}

// Evaluator decides whether a target is due for a check.
type Evaluator struct {
	Owners   OwnerLookup
	Location *time.Location
}

func NewEvaluator(owners OwnerLookup, loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{Owners: owners, Location: loc}
}

// ShouldCheckNow short-circuits through admin, trial, weekday, time-window and
// interval checks, in that order. Only the trial step performs I/O.
func (e *Evaluator) ShouldCheckNow(ctx context.Context, t *domain.MonitoredTarget, now time.Time) (Decision, error) {
	if t.IsAdmin() {
		return Decision{Run: true, Reason: ReasonAdmin}, nil
	}

	if t.TrialEndsAt != nil && t.TrialEndsAt.Before(now) {
		if e.Owners == nil {
			return Decision{Reason: ReasonNoOwner}, nil
		}
		owner, err := e.Owners.GetOwner(ctx, t.OwnerID)
		if err != nil {
			return Decision{}, fmt.Errorf("resolve owner %s: %w", t.OwnerID, err)
		}
		if owner == nil {
			return Decision{Reason: ReasonNoOwner}, nil
		}
		if !owner.HasPaidPlan(now) {
			return Decision{Reason: ReasonTrialExpired}, nil
		}
	}

	cfg, ok := domain.EffectiveMonitoring(t)
	if !ok {
		return Decision{Run: true, Reason: ReasonNoSchedule}, nil
	}

	local := now.In(e.Location)
	if len(cfg.Weekdays) > 0 && !slices.Contains(cfg.Weekdays, int(local.Weekday())) {
		return Decision{Reason: ReasonWeekday}, nil
	}
	if !AnyWindow(cfg.TimeWindows, local) {
		return Decision{Reason: ReasonTimeWindow}, nil
	}

	if t.LastCheckedAt != nil {
		elapsed := now.Sub(*t.LastCheckedAt)
		if elapsed < time.Duration(cfg.CheckIntervalMinutes)*time.Minute {
			return Decision{Reason: ReasonInterval}, nil
		}
	}
	return Decision{Run: true, Reason: ReasonDue}, nil
}

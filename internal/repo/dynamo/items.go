package dynamo

import (
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

const (
	attrID       = "id"
	attrTargetID = "target_id"
	attrSortKey  = "sk"
	attrDate     = "date"

	// Fixed width so lexical order of sort keys is time order.
	sortKeyLayout = "2006-01-02T15:04:05.000000000Z"
)

type targetItem struct {
	ID               string                   `dynamodbav:"id"`
	Name             string                   `dynamodbav:"name"`
	Address          string                   `dynamodbav:"address"`
	Type             string                   `dynamodbav:"type"`
	OwnerID          string                   `dynamodbav:"owner_id"`
	OwnerRole        string                   `dynamodbav:"owner_role"`
	OwnerPlan        string                   `dynamodbav:"owner_plan"`
	Monitoring       *domain.MonitoringConfig `dynamodbav:"monitoring,omitempty"`
	Contacts         domain.Contacts          `dynamodbav:"contacts"`
	Status           string                   `dynamodbav:"status"`
	LastResponseMs   *int                     `dynamodbav:"last_response_ms,omitempty"`
	LastError        string                   `dynamodbav:"last_error"`
	LastCheckedAt    *time.Time               `dynamodbav:"last_checked_at,omitempty"`
	LastStatusChange *time.Time               `dynamodbav:"last_status_change,omitempty"`
	TrialEndsAt      *time.Time               `dynamodbav:"trial_ends_at,omitempty"`
	CreatedAt        time.Time                `dynamodbav:"created_at"`
}

func toTargetItem(t *domain.MonitoredTarget) targetItem {
	return targetItem{
		ID:               string(t.ID),
		Name:             t.Name,
		Address:          t.Address,
		Type:             string(t.Type),
		OwnerID:          t.OwnerID,
		OwnerRole:        t.OwnerRole,
		OwnerPlan:        t.OwnerPlan,
		Monitoring:       t.Monitoring,
		Contacts:         t.Contacts,
		Status:           string(t.Status),
		LastResponseMs:   t.LastResponseMs,
		LastError:        t.LastError,
		LastCheckedAt:    t.LastCheckedAt,
		LastStatusChange: t.LastStatusChange,
		TrialEndsAt:      t.TrialEndsAt,
		CreatedAt:        t.CreatedAt,
	}
}

func (it targetItem) domain() *domain.MonitoredTarget {
	return &domain.MonitoredTarget{
		ID:               domain.TargetID(it.ID),
		Name:             it.Name,
		Address:          it.Address,
		Type:             domain.TargetType(it.Type),
		OwnerID:          it.OwnerID,
		OwnerRole:        it.OwnerRole,
		OwnerPlan:        it.OwnerPlan,
		Monitoring:       it.Monitoring,
		Contacts:         it.Contacts,
		Status:           domain.Status(it.Status),
		LastResponseMs:   it.LastResponseMs,
		LastError:        it.LastError,
		LastCheckedAt:    it.LastCheckedAt,
		LastStatusChange: it.LastStatusChange,
		TrialEndsAt:      it.TrialEndsAt,
		CreatedAt:        it.CreatedAt,
	}
}

type recordItem struct {
	TargetID       string    `dynamodbav:"target_id"`
	SortKey        string    `dynamodbav:"sk"`
	ID             string    `dynamodbav:"id"`
	Status         string    `dynamodbav:"status"`
	ResponseTimeMs *int      `dynamodbav:"response_time_ms,omitempty"`
	ErrorMessage   *string   `dynamodbav:"error_message,omitempty"`
	Timestamp      time.Time `dynamodbav:"ts"`
	Date           string    `dynamodbav:"date"`
	Hour           int       `dynamodbav:"hour"`
	Minute         int       `dynamodbav:"minute"`
	Slot15         int       `dynamodbav:"slot15"`
}

func toRecordItem(r domain.CheckRecord) recordItem {
	return recordItem{
		TargetID:       string(r.TargetID),
		SortKey:        recordSortKey(r.Timestamp, r.ID),
		ID:             r.ID,
		Status:         string(r.Status),
		ResponseTimeMs: r.ResponseTimeMs,
		ErrorMessage:   r.ErrorMessage,
		Timestamp:      r.Timestamp,
		Date:           r.Date,
		Hour:           r.Hour,
		Minute:         r.Minute,
		Slot15:         r.Slot15,
	}
}

func (it recordItem) domain() domain.CheckRecord {
	return domain.CheckRecord{
		ID:             it.ID,
		TargetID:       domain.TargetID(it.TargetID),
		Status:         domain.Status(it.Status),
		ResponseTimeMs: it.ResponseTimeMs,
		ErrorMessage:   it.ErrorMessage,
		Timestamp:      it.Timestamp,
		Date:           it.Date,
		Hour:           it.Hour,
		Minute:         it.Minute,
		Slot15:         it.Slot15,
	}
}

// recordSortKey orders records of one target by time; the id breaks ties.
func recordSortKey(ts time.Time, id string) string {
	return timeKey(ts) + "#" + id
}

func timeKey(ts time.Time) string {
	return ts.UTC().Format(sortKeyLayout)
}

type summaryItem struct {
	TargetID      string    `dynamodbav:"target_id"`
	Date          string    `dynamodbav:"date"`
	TotalChecks   int       `dynamodbav:"total_checks"`
	UpChecks      int       `dynamodbav:"up_checks"`
	UptimePercent float64   `dynamodbav:"uptime_percent"`
	AvgResponseMs float64   `dynamodbav:"avg_response_ms"`
	MinResponseMs int       `dynamodbav:"min_response_ms"`
	MaxResponseMs int       `dynamodbav:"max_response_ms"`
	CreatedAt     time.Time `dynamodbav:"created_at"`
}

type ownerItem struct {
	ID         string     `dynamodbav:"id"`
	Role       string     `dynamodbav:"role"`
	Plan       string     `dynamodbav:"plan"`
	PlanEndsAt *time.Time `dynamodbav:"plan_ends_at,omitempty"`
}

package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/probe"
	"github.com/hamed0406/uptimeguard/internal/repo"
)

// RollupTrigger is the part of Aggregator the recorder needs.
type RollupTrigger interface {
	TriggerIfDue(ctx context.Context, now time.Time) bool
}

// Recorder appends one CheckRecord per executed check. Writes are best effort.
type Recorder struct {
	Records  repo.RecordStore
	Rollup   RollupTrigger // optional
	Location *time.Location
	Log      *zap.Logger
	Now      func() time.Time
}

func NewRecorder(rs repo.RecordStore, rollup RollupTrigger, loc *time.Location, log *zap.Logger) *Recorder {
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{Records: rs, Rollup: rollup, Location: loc, Log: log, Now: time.Now}
}

// NewRecord builds the record for res, bucketed in loc.
func NewRecord(id domain.TargetID, res probe.Result, loc *time.Location) domain.CheckRecord {
	ts := res.CheckedAt.UTC()
	local := ts.In(loc)
	rec := domain.CheckRecord{
		ID:             uuid.NewString(),
		TargetID:       id,
		Status:         res.Status,
		ResponseTimeMs: res.ResponseTimeMs,
		Timestamp:      ts,
		Date:           local.Format(dateLayout),
		Hour:           local.Hour(),
		Minute:         local.Minute(),
		Slot15:         local.Minute() / 15,
	}
	if res.ErrorMessage != "" {
		msg := res.ErrorMessage
		rec.ErrorMessage = &msg
	}
	return rec
}

// Record stores the outcome of one check and then gives the daily rollup a
// chance to run. Failures are logged, never returned.
func (r *Recorder) Record(ctx context.Context, id domain.TargetID, res probe.Result) {
	if res.CheckedAt.IsZero() {
		res.CheckedAt = r.now()
	}
	rec := NewRecord(id, res, r.Location)
	if err := r.Records.Append(ctx, rec); err != nil {
		r.Log.Warn("history_write_failed", zap.String("target_id", string(id)), zap.Error(err))
	}
	if r.Rollup != nil {
		r.Rollup.TriggerIfDue(ctx, r.now())
	}
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

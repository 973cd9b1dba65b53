package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/alert"
	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/history"
	"github.com/hamed0406/uptimeguard/internal/probe"
	"github.com/hamed0406/uptimeguard/internal/repo"
)

// SingleResult is the outcome of a manual check.
type SingleResult struct {
	TargetID       domain.TargetID       `json:"target_id"`
	Result         probe.Result          `json:"result"`
	Status         domain.Status         `json:"status"`
	PreviousStatus domain.Status         `json:"previous_status"`
	Alert          alert.Kind            `json:"alert"`
	AlertSent      bool                  `json:"alert_sent"`
	Hourly         []history.HourlyStats `json:"hourly"`
}

// RunSingle checks one target now, ignoring its schedule, then alerts, writes
// its status and returns the last 24 hours of hourly stats.
func (o *Orchestrator) RunSingle(ctx context.Context, id domain.TargetID) (SingleResult, error) {
	o.passMu.Lock()
	defer o.passMu.Unlock()

	t, err := o.d.Targets.Get(ctx, id)
	if err != nil {
		return SingleResult{}, fmt.Errorf("get target %s: %w", id, err)
	}

	res := o.probe(ctx, t)
	o.d.Recorder.Record(ctx, t.ID, res)

	s := slot{result: res}
	s.decide(t)
	var sent bool
	if s.kind != alert.None {
		var vanished bool
		sent, vanished = o.dispatch(ctx, &s, o.d.Now().UTC())
		if vanished {
			return SingleResult{}, fmt.Errorf("update target %s: %w", id, repo.ErrNotFound)
		}
	}
	out := SingleResult{
		TargetID:       t.ID,
		Result:         res,
		Status:         res.Status,
		PreviousStatus: s.target.Status,
		Alert:          s.kind,
		AlertSent:      sent,
		Hourly:         []history.HourlyStats{},
	}

	if err := o.d.Targets.UpdateStatus(ctx, s.patch); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return SingleResult{}, fmt.Errorf("update target %s: %w", id, err)
		}
		o.d.Log.Error("status_update_failed", zap.String("target_id", string(id)), zap.Error(err))
	}

	if o.d.Records != nil {
		hourly, err := history.RecentHourly(ctx, o.d.Records, t.ID, o.d.Now().UTC())
		if err != nil {
			o.d.Log.Warn("hourly_failed", zap.String("target_id", string(id)), zap.Error(err))
		} else {
			out.Hourly = hourly
		}
	}
	o.d.Log.Info("manual_check_complete",
		zap.String("target_id", string(id)),
		zap.String("status", string(res.Status)),
		zap.String("alert", string(out.Alert)),
		zap.Bool("alert_sent", out.AlertSent),
	)
	return out, nil
}

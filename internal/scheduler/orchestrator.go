package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/alert"
	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/history"
	"github.com/hamed0406/uptimeguard/internal/metrics"
	"github.com/hamed0406/uptimeguard/internal/notify"
	"github.com/hamed0406/uptimeguard/internal/probe"
	"github.com/hamed0406/uptimeguard/internal/repo"
	"github.com/hamed0406/uptimeguard/internal/schedule"
)

const DefaultMaxConcurrent = 32

type Evaluator interface {
	ShouldCheckNow(ctx context.Context, t *domain.MonitoredTarget, now time.Time) (schedule.Decision, error)
}

type Recorder interface {
	Record(ctx context.Context, id domain.TargetID, res probe.Result)
}

type Notifier interface {
	Notify(ctx context.Context, a notify.Alert) bool
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Targets  repo.TargetStore
	Records  repo.RecordStore
	Schedule Evaluator
	Checker  probe.Checker
	Recorder Recorder
	Rollup   history.RollupTrigger
	Notifier Notifier
	Location *time.Location
	Log      *zap.Logger
	Metrics  *metrics.Metrics

	MaxConcurrent int
	Timeout       time.Duration
	Now           func() time.Time
}

// Orchestrator runs check passes: a bounded concurrent check phase, then a
// sequential alert phase, then a single status commit.
type Orchestrator struct {
	d Deps

	// one pass or manual check at a time, so overlapping triggers can't
	// double-alert a transition or commit over each other
	passMu sync.Mutex
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.MaxConcurrent < 1 {
		d.MaxConcurrent = DefaultMaxConcurrent
	}
	if d.Timeout <= 0 {
		d.Timeout = probe.DefaultTimeout
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Orchestrator{d: d}
}

// Summary is the per-pass counter set returned to the trigger.
type Summary struct {
	Total      int   `json:"total"`
	Checked    int   `json:"checked"`
	Up         int   `json:"up"`
	Down       int   `json:"down"`
	Error      int   `json:"error"`
	Skipped    int   `json:"skipped"`
	AlertsSent int   `json:"alertsSent"`
	DurationMs int64 `json:"durationMs"`
}

// slot is the result of one target's task. Each goroutine writes only its own.
type slot struct {
	target  *domain.MonitoredTarget
	skipped bool
	errored bool
	result  probe.Result
	patch   domain.StatusPatch
	kind    alert.Kind
	cfg     domain.AlertConfig
}

// RunPass checks every due target once. Only a failed bulk read of the
// targets is returned as an error.
func (o *Orchestrator) RunPass(ctx context.Context) (Summary, error) {
	o.passMu.Lock()
	defer o.passMu.Unlock()

	start := time.Now()
	now := o.d.Now().UTC()

	targets, err := o.d.Targets.List(ctx)
	if err != nil {
		o.d.Log.Error("pass_list_failed", zap.Error(err))
		return Summary{}, fmt.Errorf("list targets: %w", err)
	}

	slots := make([]slot, len(targets))
	sem := make(chan struct{}, o.d.MaxConcurrent)
	var wg sync.WaitGroup
	for i, t := range targets {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, t *domain.MonitoredTarget) {
			defer func() { <-sem }()
			defer wg.Done()
			slots[i] = o.checkTarget(ctx, t, now)
		}(i, t)
	}
	wg.Wait()

	sum := Summary{Total: len(targets)}
	var patches []domain.StatusPatch
	for _, s := range slots {
		switch {
		case s.errored:
			sum.Error++
			o.d.Metrics.RecordTarget(metrics.OutcomeErrored)
			continue
		case s.skipped:
			sum.Skipped++
			o.d.Metrics.RecordTarget(metrics.OutcomeSkipped)
			continue
		}
		sum.Checked++
		o.d.Metrics.RecordTarget(metrics.OutcomeChecked)
		if s.result.Up() {
			sum.Up++
		} else {
			sum.Down++
		}

		// alerts go out one at a time to keep the mail transport's load flat
		if s.kind != alert.None {
			sent, vanished := o.dispatch(ctx, &s, now)
			if vanished {
				continue
			}
			if sent {
				sum.AlertsSent++
			}
		}
		patches = append(patches, s.patch)
	}

	if len(patches) > 0 {
		if err := o.d.Targets.ApplyStatusBatch(ctx, patches); err != nil {
			o.d.Log.Error("status_commit_failed", zap.Int("patches", len(patches)), zap.Error(err))
		}
	}

	if o.d.Rollup != nil {
		o.d.Rollup.TriggerIfDue(ctx, now)
	}

	sum.DurationMs = time.Since(start).Milliseconds()
	o.d.Metrics.RecordPass(time.Since(start))
	o.d.Log.Info("pass_complete",
		zap.Int("total", sum.Total),
		zap.Int("checked", sum.Checked),
		zap.Int("up", sum.Up),
		zap.Int("down", sum.Down),
		zap.Int("error", sum.Error),
		zap.Int("skipped", sum.Skipped),
		zap.Int("alerts_sent", sum.AlertsSent),
		zap.Int64("duration_ms", sum.DurationMs),
	)
	return sum, nil
}

func (o *Orchestrator) checkTarget(ctx context.Context, t *domain.MonitoredTarget, now time.Time) (s slot) {
	s.target = t
	defer func() {
		if r := recover(); r != nil {
			o.d.Log.Error("target_errored", zap.String("target_id", string(t.ID)), zap.Any("panic", r))
			s = slot{target: t, errored: true}
		}
	}()

	d, err := o.d.Schedule.ShouldCheckNow(ctx, t, now)
	if err != nil {
		o.d.Log.Error("target_errored", zap.String("target_id", string(t.ID)), zap.Error(err))
		s.errored = true
		return s
	}
	if !d.Run {
		o.d.Log.Debug("check_skipped", zap.String("target_id", string(t.ID)), zap.String("reason", d.Reason))
		s.skipped = true
		return s
	}

	s.result = o.probe(ctx, t)
	o.d.Recorder.Record(ctx, t.ID, s.result)
	s.decide(t)
	return s
}

// decide derives the alert, its gating config and the status patch from t.
func (s *slot) decide(t *domain.MonitoredTarget) {
	cfg, _ := domain.EffectiveMonitoring(t)
	s.target = t
	s.cfg = cfg.Alerts
	s.patch = newPatch(t, s.result)
	s.kind = alert.Decide(t.Status, s.result, s.cfg)
}

func (o *Orchestrator) probe(ctx context.Context, t *domain.MonitoredTarget) probe.Result {
	cctx, cancel := context.WithTimeout(ctx, o.d.Timeout)
	defer cancel()

	began := time.Now()
	res := o.d.Checker.Check(cctx, t)
	if res.CheckedAt.IsZero() {
		res.CheckedAt = o.d.Now().UTC()
	}
	o.d.Metrics.RecordCheck(string(t.Type), string(res.Status), time.Since(began))
	o.d.Log.Debug("target_checked",
		zap.String("target_id", string(t.ID)),
		zap.String("address", t.Address),
		zap.String("status", string(res.Status)),
		zap.Int("status_code", res.StatusCode),
		zap.String("error", res.ErrorMessage),
		zap.String("dns_class", res.DNSClass),
	)
	return res
}

// dispatch sends the alert of s if its gating allows it. The target is re-read
// first; if it no longer exists the alert and its status patch are dropped.
// Otherwise the alert, gating config and patch are decided again against the
// stored status and config, which may have moved since the check started.
func (o *Orchestrator) dispatch(ctx context.Context, s *slot, now time.Time) (sent, vanished bool) {
	id := s.target.ID
	fresh, err := o.d.Targets.Get(ctx, id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		o.d.Log.Info("target_vanished", zap.String("target_id", string(id)), zap.String("kind", string(s.kind)))
		return false, true
	case err != nil:
		o.d.Log.Warn("target_reread_failed", zap.String("target_id", string(id)), zap.Error(err))
	default:
		before := s.kind
		s.decide(fresh)
		if s.kind != before {
			o.d.Log.Info("alert_redecided", zap.String("target_id", string(id)),
				zap.String("from", string(before)), zap.String("to", string(s.kind)))
		}
	}
	if s.kind == alert.None {
		return false, false
	}

	t := s.target
	if !alert.Allowed(s.cfg, t.Contacts, now.In(o.d.Location)) {
		o.d.Metrics.RecordAlert(string(s.kind), metrics.AlertSuppressed)
		return false, false
	}
	ok := o.d.Notifier.Notify(ctx, notify.Alert{
		Target:      t,
		Kind:        s.kind,
		Result:      s.result,
		ThresholdMs: s.cfg.ResponseTimeThresholdMs,
		At:          s.result.CheckedAt,
	})
	if ok {
		o.d.Metrics.RecordAlert(string(s.kind), metrics.AlertSent)
	} else {
		o.d.Metrics.RecordAlert(string(s.kind), metrics.AlertFailed)
	}
	return ok, false
}

func newPatch(t *domain.MonitoredTarget, res probe.Result) domain.StatusPatch {
	p := domain.StatusPatch{
		TargetID:       t.ID,
		Status:         res.Status,
		ResponseTimeMs: res.ResponseTimeMs,
		ErrorMessage:   res.ErrorMessage,
		CheckedAt:      res.CheckedAt,
	}
	if res.Status != t.Status {
		changed := res.CheckedAt
		p.StatusChangedAt = &changed
	}
	return p
}

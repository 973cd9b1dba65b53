package history

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/metrics"
	"github.com/hamed0406/uptimeguard/internal/repo"
)

// DefaultBatchLimit keeps each delete under the store's per-batch operation ceiling.
const DefaultBatchLimit = 450

// rollupWindow is how long after local midnight TriggerIfDue still fires.
const rollupWindow = 5 * time.Minute

const dateLayout = "2006-01-02"

// RollupReport counts what one RunDailyRollup did, per target.
type RollupReport struct {
	Date              string `json:"date"`
	Summarized        int    `json:"summarized"`
	AlreadySummarized int    `json:"already_summarized"`
	Empty             int    `json:"empty"`
	Deleted           int    `json:"deleted"`
	Failed            int    `json:"failed"`
}

// Aggregator folds a day of CheckRecords into one DailySummary per target and
// removes the raw records.
type Aggregator struct {
	Targets    repo.TargetStore
	Records    repo.RecordStore
	Summaries  repo.SummaryStore
	Location   *time.Location
	Log        *zap.Logger
	Metrics    *metrics.Metrics
	BatchLimit int
	Now        func() time.Time

	mu   sync.Mutex
	done map[string]bool
}

func NewAggregator(s repo.Store, loc *time.Location, log *zap.Logger, m *metrics.Metrics) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		Targets:    s,
		Records:    s,
		Summaries:  s,
		Location:   loc,
		Log:        log,
		Metrics:    m,
		BatchLimit: DefaultBatchLimit,
		Now:        time.Now,
		done:       make(map[string]bool),
	}
}

// TriggerIfDue runs the rollup for the previous local day when now falls in the
// first minutes after local midnight. A given date runs at most once per process
// unless the run failed.
func (a *Aggregator) TriggerIfDue(ctx context.Context, now time.Time) bool {
	local := now.In(a.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.Location)
	if local.Sub(midnight) >= rollupWindow {
		return false
	}
	date := midnight.AddDate(0, 0, -1).Format(dateLayout)

	a.mu.Lock()
	if a.done == nil {
		a.done = make(map[string]bool)
	}
	if a.done[date] {
		a.mu.Unlock()
		return false
	}
	a.done[date] = true
	a.mu.Unlock()

	rep, err := a.RunDailyRollup(ctx, date)
	if err != nil || rep.Failed > 0 {
		a.mu.Lock()
		delete(a.done, date)
		a.mu.Unlock()
		a.Log.Warn("rollup_incomplete", zap.String("date", date), zap.Int("failed", rep.Failed), zap.Error(err))
		return true
	}
	a.Log.Info("rollup_complete",
		zap.String("date", date),
		zap.Int("summarized", rep.Summarized),
		zap.Int("already_summarized", rep.AlreadySummarized),
		zap.Int("empty", rep.Empty),
		zap.Int("deleted", rep.Deleted),
	)
	return true
}

// RunDailyRollup summarizes date for every target. Only the target listing can
// fail the run; per-target faults are logged and counted.
func (a *Aggregator) RunDailyRollup(ctx context.Context, date string) (RollupReport, error) {
	rep := RollupReport{Date: date}
	targets, err := a.Targets.List(ctx)
	if err != nil {
		return rep, fmt.Errorf("list targets: %w", err)
	}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		result, deleted, err := a.rollupTarget(ctx, t.ID, date)
		rep.Deleted += deleted
		if err != nil {
			rep.Failed++
			a.Metrics.RecordRollup(metrics.RollupFailed)
			a.Log.Error("rollup_failed", zap.String("target_id", string(t.ID)), zap.String("date", date), zap.Error(err))
			continue
		}
		a.Metrics.RecordRollup(result)
		switch result {
		case metrics.RollupSummarized:
			rep.Summarized++
		case metrics.RollupExisting:
			rep.AlreadySummarized++
		case metrics.RollupEmpty:
			rep.Empty++
		}
	}
	return rep, nil
}

func (a *Aggregator) rollupTarget(ctx context.Context, id domain.TargetID, date string) (string, int, error) {
	exists, err := a.Summaries.HasSummary(ctx, id, date)
	if err != nil {
		return "", 0, fmt.Errorf("has summary: %w", err)
	}
	recs, err := a.Records.ByDate(ctx, id, date)
	if err != nil {
		return "", 0, fmt.Errorf("records by date: %w", err)
	}
	if exists {
		// an earlier run may have written the summary and died mid-delete
		n, err := a.deleteAll(ctx, recs)
		return metrics.RollupExisting, n, err
	}
	if len(recs) == 0 {
		return metrics.RollupEmpty, 0, nil
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	if err := a.Summaries.PutSummary(ctx, Summarize(id, date, recs, now().UTC())); err != nil {
		return "", 0, fmt.Errorf("put summary: %w", err)
	}
	n, err := a.deleteAll(ctx, recs)
	return metrics.RollupSummarized, n, err
}

func (a *Aggregator) deleteAll(ctx context.Context, recs []domain.CheckRecord) (int, error) {
	limit := a.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	deleted := 0
	for start := 0; start < len(recs); start += limit {
		end := min(start+limit, len(recs))
		if err := a.Records.Delete(ctx, recs[start:end]); err != nil {
			return deleted, fmt.Errorf("delete records: %w", err)
		}
		deleted += end - start
	}
	return deleted, nil
}

// Summarize computes the daily summary of recs. Response-time stats only use
// records that have a response time and are zero when none do.
func Summarize(id domain.TargetID, date string, recs []domain.CheckRecord, createdAt time.Time) domain.DailySummary {
	s := domain.DailySummary{TargetID: id, Date: date, TotalChecks: len(recs), CreatedAt: createdAt}
	var sum, timed int
	for _, r := range recs {
		if r.Status == domain.StatusUp {
			s.UpChecks++
		}
		if r.ResponseTimeMs == nil {
			continue
		}
		ms := *r.ResponseTimeMs
		if timed == 0 || ms < s.MinResponseMs {
			s.MinResponseMs = ms
		}
		if ms > s.MaxResponseMs {
			s.MaxResponseMs = ms
		}
		sum += ms
		timed++
	}
	if s.TotalChecks > 0 {
		s.UptimePercent = round2(float64(s.UpChecks) / float64(s.TotalChecks) * 100)
	}
	if timed > 0 {
		s.AvgResponseMs = round2(float64(sum) / float64(timed))
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

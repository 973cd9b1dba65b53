package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/probe"
	"github.com/hamed0406/uptimeguard/internal/repo"
	"github.com/hamed0406/uptimeguard/internal/repo/memory"
)

// countingStore counts writes and can fail deletes.
type countingStore struct {
	repo.Store
	puts, deletes int
	deleteErr     error
}

func (c *countingStore) PutSummary(ctx context.Context, s domain.DailySummary) error {
	c.puts++
	return c.Store.PutSummary(ctx, s)
}

func (c *countingStore) Delete(ctx context.Context, recs []domain.CheckRecord) error {
	c.deletes++
	if c.deleteErr != nil {
		return c.deleteErr
	}
	return c.Store.Delete(ctx, recs)
}

func ms(v int) *int { return &v }

func seedDay(t *testing.T, s repo.Store, id domain.TargetID, date string, statuses []domain.Status) {
	t.Helper()
	day, _ := time.Parse(dateLayout, date)
	for i, st := range statuses {
		rec := NewRecord(id, probe.Result{Status: st, ResponseTimeMs: ms(100 * (i + 1)), CheckedAt: day.Add(time.Duration(i) * time.Minute)}, time.UTC)
		if err := s.Append(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}
}

func newAgg(s repo.Store) *Aggregator {
	a := NewAggregator(s, time.UTC, zap.NewNop(), nil)
	a.Now = func() time.Time { return time.Date(2025, 8, 18, 0, 1, 0, 0, time.UTC) }
	return a
}

func TestRunDailyRollup_SummarizesAndDeletes(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	_ = mem.AddTarget(ctx, &domain.MonitoredTarget{ID: "A", Address: "https://a.example"})
	up, down := domain.StatusUp, domain.StatusDown
	seedDay(t, mem, "A", "2025-08-17", []domain.Status{up, up, down, up, up, down, up, up, down, up})

	rep, err := newAgg(mem).RunDailyRollup(ctx, "2025-08-17")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Summarized != 1 || rep.Deleted != 10 || rep.Failed != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	sums := mem.Summaries("A")
	if len(sums) != 1 {
		t.Fatalf("want 1 summary, got %d", len(sums))
	}
	s := sums[0]
	if s.TotalChecks != 10 || s.UpChecks != 7 || s.UptimePercent != 70 {
		t.Fatalf("counts wrong: %+v", s)
	}
	if s.MinResponseMs != 100 || s.MaxResponseMs != 1000 || s.AvgResponseMs != 550 {
		t.Fatalf("response stats wrong: %+v", s)
	}
	if mem.RecordCount() != 0 {
		t.Fatalf("records should be deleted, %d left", mem.RecordCount())
	}
}

func TestRunDailyRollup_SecondRunWritesNothing(t *testing.T) {
	cs := &countingStore{Store: memory.New()}
	ctx := context.Background()
	_ = cs.AddTarget(ctx, &domain.MonitoredTarget{ID: "A"})
	seedDay(t, cs, "A", "2025-08-17", []domain.Status{domain.StatusUp, domain.StatusDown})
	a := newAgg(cs)

	if _, err := a.RunDailyRollup(ctx, "2025-08-17"); err != nil {
		t.Fatal(err)
	}
	puts, deletes := cs.puts, cs.deletes
	rep, err := a.RunDailyRollup(ctx, "2025-08-17")
	if err != nil {
		t.Fatal(err)
	}
	if cs.puts != puts || cs.deletes != deletes {
		t.Fatalf("second run wrote: puts %d->%d deletes %d->%d", puts, cs.puts, deletes, cs.deletes)
	}
	if rep.AlreadySummarized != 1 {
		t.Fatalf("want already summarized, got %+v", rep)
	}
}

func TestRunDailyRollup_FinishesLeftoverDeletes(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	_ = mem.AddTarget(ctx, &domain.MonitoredTarget{ID: "A"})
	_ = mem.PutSummary(ctx, domain.DailySummary{TargetID: "A", Date: "2025-08-17", TotalChecks: 3})
	seedDay(t, mem, "A", "2025-08-17", []domain.Status{domain.StatusUp})

	rep, err := newAgg(mem).RunDailyRollup(ctx, "2025-08-17")
	if err != nil {
		t.Fatal(err)
	}
	if rep.AlreadySummarized != 1 || rep.Deleted != 1 || mem.RecordCount() != 0 {
		t.Fatalf("leftover not cleaned: %+v, %d records", rep, mem.RecordCount())
	}
	if got := mem.Summaries("A")[0].TotalChecks; got != 3 {
		t.Fatalf("existing summary overwritten: total=%d", got)
	}
}

func TestRunDailyRollup_DeletesInBatches(t *testing.T) {
	cs := &countingStore{Store: memory.New()}
	ctx := context.Background()
	_ = cs.AddTarget(ctx, &domain.MonitoredTarget{ID: "A"})
	sts := make([]domain.Status, 1000)
	for i := range sts {
		sts[i] = domain.StatusUp
	}
	seedDay(t, cs, "A", "2025-08-17", sts)

	rep, err := newAgg(cs).RunDailyRollup(ctx, "2025-08-17")
	if err != nil {
		t.Fatal(err)
	}
	// 450 + 450 + 100
	if cs.deletes != 3 || rep.Deleted != 1000 {
		t.Fatalf("deletes=%d deleted=%d", cs.deletes, rep.Deleted)
	}
}

func TestRunDailyRollup_PerTargetFailureIsCounted(t *testing.T) {
	cs := &countingStore{Store: memory.New(), deleteErr: errors.New("throttled")}
	ctx := context.Background()
	_ = cs.AddTarget(ctx, &domain.MonitoredTarget{ID: "A"})
	_ = cs.AddTarget(ctx, &domain.MonitoredTarget{ID: "B"})
	seedDay(t, cs, "A", "2025-08-17", []domain.Status{domain.StatusUp})

	rep, err := newAgg(cs).RunDailyRollup(ctx, "2025-08-17")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Failed != 1 || rep.Empty != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestRunDailyRollup_ListFailure(t *testing.T) {
	mem := memory.New()
	mem.ListErr = errors.New("unreachable")
	if _, err := newAgg(mem).RunDailyRollup(context.Background(), "2025-08-17"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTriggerIfDue_WindowAndGuard(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	_ = mem.AddTarget(ctx, &domain.MonitoredTarget{ID: "A"})
	seedDay(t, mem, "A", "2025-08-17", []domain.Status{domain.StatusUp})
	a := newAgg(mem)

	if a.TriggerIfDue(ctx, time.Date(2025, 8, 18, 0, 5, 0, 0, time.UTC)) {
		t.Fatal("00:05 is outside the rollup window")
	}
	if a.TriggerIfDue(ctx, time.Date(2025, 8, 17, 23, 59, 0, 0, time.UTC)) {
		t.Fatal("23:59 is outside the rollup window")
	}
	if !a.TriggerIfDue(ctx, time.Date(2025, 8, 18, 0, 2, 0, 0, time.UTC)) {
		t.Fatal("00:02 should trigger")
	}
	if len(mem.Summaries("A")) != 1 {
		t.Fatal("rollup did not run for yesterday")
	}
	if a.TriggerIfDue(ctx, time.Date(2025, 8, 18, 0, 3, 0, 0, time.UTC)) {
		t.Fatal("same date must run once per process")
	}
}

func TestTriggerIfDue_RetriesAfterFailure(t *testing.T) {
	mem := memory.New()
	mem.ListErr = errors.New("down")
	a := newAgg(mem)
	ctx := context.Background()
	at := time.Date(2025, 8, 18, 0, 0, 30, 0, time.UTC)

	if !a.TriggerIfDue(ctx, at) {
		t.Fatal("expected an attempt")
	}
	mem.ListErr = nil
	if !a.TriggerIfDue(ctx, at.Add(time.Minute)) {
		t.Fatal("failed date should be retried")
	}
}

func TestTriggerIfDue_UsesLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	mem := memory.New()
	ctx := context.Background()
	_ = mem.AddTarget(ctx, &domain.MonitoredTarget{ID: "A"})
	_ = mem.Append(ctx, domain.CheckRecord{ID: "r", TargetID: "A", Status: domain.StatusUp, Date: "2025-08-17"})
	a := NewAggregator(mem, loc, zap.NewNop(), nil)

	// 22:01 UTC is 00:01 local on the 18th
	if !a.TriggerIfDue(ctx, time.Date(2025, 8, 17, 22, 1, 0, 0, time.UTC)) {
		t.Fatal("local midnight should trigger")
	}
	if len(mem.Summaries("A")) != 1 {
		t.Fatal("expected summary for local yesterday")
	}
}

func TestSummarize_NoTimedRecords(t *testing.T) {
	recs := []domain.CheckRecord{{Status: domain.StatusDown}, {Status: domain.StatusUp}, {Status: domain.StatusUp}}
	s := Summarize("A", "2025-08-17", recs, time.Now())
	if s.UptimePercent != 66.67 {
		t.Fatalf("uptime should round to 2 decimals, got %v", s.UptimePercent)
	}
	if s.AvgResponseMs != 0 || s.MinResponseMs != 0 || s.MaxResponseMs != 0 {
		t.Fatalf("untimed stats should be zero: %+v", s)
	}
}

type fakeTrigger struct{ calls int }

func (f *fakeTrigger) TriggerIfDue(ctx context.Context, now time.Time) bool {
	f.calls++
	return false
}

type failingRecords struct{ repo.RecordStore }

func (failingRecords) Append(ctx context.Context, r domain.CheckRecord) error {
	return errors.New("write refused")
}

func TestRecorder_BucketsAndTriggers(t *testing.T) {
	mem := memory.New()
	ft := &fakeTrigger{}
	loc := time.FixedZone("UTC-5", -5*3600)
	r := NewRecorder(mem, ft, loc, zap.NewNop())
	at := time.Date(2025, 8, 18, 3, 47, 0, 0, time.UTC)

	r.Record(context.Background(), "A", probe.Result{Status: domain.StatusDown, ErrorMessage: "HTTP 503: Service Unavailable", CheckedAt: at})

	recs, _ := mem.ByDate(context.Background(), "A", "2025-08-17")
	if len(recs) != 1 {
		t.Fatalf("want 1 record on local date, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Hour != 22 || rec.Minute != 47 || rec.Slot15 != 3 {
		t.Fatalf("buckets wrong: %+v", rec)
	}
	if rec.ID == "" || rec.ErrorMessage == nil || *rec.ErrorMessage != "HTTP 503: Service Unavailable" {
		t.Fatalf("record fields wrong: %+v", rec)
	}
	if !rec.Timestamp.Equal(at) || rec.ResponseTimeMs != nil {
		t.Fatalf("timestamp/response wrong: %+v", rec)
	}
	if ft.calls != 1 {
		t.Fatalf("rollup trigger calls=%d", ft.calls)
	}
}

func TestRecorder_WriteFailureIsSwallowed(t *testing.T) {
	ft := &fakeTrigger{}
	r := NewRecorder(failingRecords{}, ft, time.UTC, zap.NewNop())
	r.Record(context.Background(), "A", probe.Result{Status: domain.StatusUp, CheckedAt: time.Now()})
	if ft.calls != 1 {
		t.Fatal("rollup should still be offered after a failed write")
	}
}

func TestRecentHourly(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	now := time.Date(2025, 8, 18, 12, 30, 0, 0, time.UTC)
	add := func(at time.Time, st domain.Status, rt *int) {
		_ = mem.Append(ctx, NewRecord("A", probe.Result{Status: st, ResponseTimeMs: rt, CheckedAt: at}, time.UTC))
	}
	add(now.Add(-25*time.Hour), domain.StatusUp, ms(10)) // outside
	add(time.Date(2025, 8, 18, 11, 5, 0, 0, time.UTC), domain.StatusUp, ms(100))
	add(time.Date(2025, 8, 18, 11, 10, 0, 0, time.UTC), domain.StatusDown, nil)
	add(time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC), domain.StatusUp, ms(300))
	add(now, domain.StatusUp, ms(100))

	got, err := RecentHourly(ctx, mem, "A", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 hours, got %+v", got)
	}
	if got[0].Hour != 11 || got[0].TotalChecks != 2 || got[0].UptimePercent != 50 || got[0].AvgResponseMs != 100 {
		t.Fatalf("hour 11 wrong: %+v", got[0])
	}
	if got[1].Hour != 12 || got[1].TotalChecks != 2 || got[1].AvgResponseMs != 200 {
		t.Fatalf("hour 12 wrong: %+v", got[1])
	}
}

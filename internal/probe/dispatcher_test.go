package probe

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

// fake checker you can control
type fakeChecker struct {
	result Result
	calls  int
	panics bool
}

func (f *fakeChecker) Check(ctx context.Context, t *domain.MonitoredTarget) Result {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.result
}

func ms(v int) *int { return &v }

func TestDispatcher_RoutesByType(t *testing.T) {
	h := &fakeChecker{result: Result{Status: domain.StatusUp, ResponseTimeMs: ms(10)}}
	c := &fakeChecker{result: Result{Status: domain.StatusUp, ResponseTimeMs: ms(10)}}
	d := &Dispatcher{HTTP: h, TCP: c, Log: zap.NewNop()}

	for _, typ := range []domain.TargetType{domain.TypeHTTP, domain.TypeHTTPS, domain.TypeAPI, domain.TypeDatabase} {
		d.Check(context.Background(), &domain.MonitoredTarget{ID: "T", Type: typ})
	}
	d.Check(context.Background(), &domain.MonitoredTarget{ID: "T", Type: domain.TypeTCP})

	if h.calls != 4 || c.calls != 1 {
		t.Fatalf("routing wrong: http=%d tcp=%d", h.calls, c.calls)
	}
}

func TestDispatcher_SlowAnnotationKeepsUp(t *testing.T) {
	h := &fakeChecker{result: Result{Status: domain.StatusUp, ResponseTimeMs: ms(1500)}}
	d := &Dispatcher{HTTP: h, TCP: h, Log: zap.NewNop()}

	out := d.Check(context.Background(), &domain.MonitoredTarget{ID: "T", Type: domain.TypeHTTP})
	if !out.Up() {
		t.Fatalf("slow must stay up, got %+v", out)
	}
	if out.ErrorMessage != "Slow response: 1500ms (threshold: 1000ms)" {
		t.Fatalf("unexpected annotation %q", out.ErrorMessage)
	}
}

func TestDispatcher_UsesConfiguredThreshold(t *testing.T) {
	h := &fakeChecker{result: Result{Status: domain.StatusUp, ResponseTimeMs: ms(1500)}}
	d := &Dispatcher{HTTP: h, TCP: h, Log: zap.NewNop()}
	tgt := &domain.MonitoredTarget{
		ID:   "T",
		Type: domain.TypeHTTP,
		Monitoring: &domain.MonitoringConfig{
			Alerts: domain.AlertConfig{ResponseTimeThresholdMs: 2000},
		},
	}
	if out := d.Check(context.Background(), tgt); out.ErrorMessage != "" {
		t.Fatalf("under threshold should not be annotated, got %q", out.ErrorMessage)
	}
}

func TestDispatcher_DownIsNotAnnotated(t *testing.T) {
	h := &fakeChecker{result: Result{Status: domain.StatusDown, ResponseTimeMs: ms(5000), ErrorMessage: "HTTP 503: Service Unavailable"}}
	d := &Dispatcher{HTTP: h, TCP: h, Log: zap.NewNop()}
	out := d.Check(context.Background(), &domain.MonitoredTarget{ID: "T", Type: domain.TypeHTTP})
	if out.ErrorMessage != "HTTP 503: Service Unavailable" {
		t.Fatalf("down message must be kept, got %q", out.ErrorMessage)
	}
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	h := &fakeChecker{panics: true}
	d := &Dispatcher{HTTP: h, TCP: h, Log: zap.NewNop()}
	out := d.Check(context.Background(), &domain.MonitoredTarget{ID: "T", Type: domain.TypeHTTP})
	if out.Status != domain.StatusDown || out.ErrorMessage == "" {
		t.Fatalf("want down after panic, got %+v", out)
	}
}

package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

// Dispatcher routes a target to the checker for its type and annotates slow successes.
type Dispatcher struct {
	HTTP Checker
	TCP  Checker
	Log  *zap.Logger
}

func NewDispatcher(timeout time.Duration, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		HTTP: NewHTTPChecker(timeout),
		TCP:  NewTCPChecker(timeout),
		Log:  log,
	}
}

// Check never panics: a panicking checker yields a down result.
func (d *Dispatcher) Check(ctx context.Context, t *domain.MonitoredTarget) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.Log.Error("check_panic", zap.String("target_id", string(t.ID)), zap.Any("panic", r))
			res = down(fmt.Sprintf("check panicked: %v", r), time.Now().UTC())
		}
	}()

	c := d.HTTP
	if t.Type == domain.TypeTCP {
		c = d.TCP
	}
	res = c.Check(ctx, t)

	cfg, _ := domain.EffectiveMonitoring(t)
	return AnnotateSlow(res, cfg.Alerts.ResponseTimeThresholdMs)
}

// AnnotateSlow keeps an up result up but records a warning when it took longer
// than thresholdMs.
func AnnotateSlow(res Result, thresholdMs int) Result {
	if !res.Up() || res.ResponseTimeMs == nil || *res.ResponseTimeMs <= thresholdMs {
		return res
	}
	res.ErrorMessage = SlowMessage(*res.ResponseTimeMs, thresholdMs)
	return res
}

func SlowMessage(actualMs, thresholdMs int) string {
	return fmt.Sprintf("Slow response: %dms (threshold: %dms)", actualMs, thresholdMs)
}

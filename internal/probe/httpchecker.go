package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

const UserAgent = "UptimeGuard-Checker/1.0"

type HTTPChecker struct {
	Client    *http.Client
	UserAgent string
	// Diagnose classifies the host after a transport error. Nil disables it.
	Diagnose func(ctx context.Context, host string) DNSStatus
	Now      func() time.Time
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: UserAgent,
		Diagnose:  CheckDNS,
		Now:       time.Now,
	}
}

// Check issues a GET against the target address. Only 200 counts as up.
func (h *HTTPChecker) Check(ctx context.Context, t *domain.MonitoredTarget) Result {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	checkedAt := now().UTC()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Address, nil)
	if err != nil {
		return down(err.Error(), checkedAt)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		res := down(transportMessage(err), checkedAt)
		if h.Diagnose != nil {
			// the check deadline may be spent; the lookup has its own bound
			res.DNSClass = h.Diagnose(context.WithoutCancel(ctx), hostOf(t.Address)).Class
		}
		return res
	}
	defer resp.Body.Close()

	res := Result{
		ResponseTimeMs: millis(elapsed),
		StatusCode:     resp.StatusCode,
		CheckedAt:      checkedAt,
	}
	if resp.StatusCode == http.StatusOK {
		res.Status = domain.StatusUp
		return res
	}
	res.Status = domain.StatusDown
	res.ErrorMessage = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, reasonPhrase(resp))
	return res
}

func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

// transportMessage keeps the client error text and makes timeouts recognisable.
func transportMessage(err error) string {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return "timeout: " + err.Error()
	}
	return err.Error()
}

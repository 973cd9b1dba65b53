package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

const defaultTCPPort = "80"

type TCPChecker struct {
	Dialer *net.Dialer
	Now    func() time.Time
}

func NewTCPChecker(timeout time.Duration) *TCPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TCPChecker{
		Dialer: &net.Dialer{Timeout: timeout},
		Now:    time.Now,
	}
}

// Check opens and immediately closes a TCP connection to host[:port].
func (c *TCPChecker) Check(ctx context.Context, t *domain.MonitoredTarget) Result {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	checkedAt := now().UTC()

	addr, err := TCPAddress(t.Address)
	if err != nil {
		return down(err.Error(), checkedAt)
	}

	start := time.Now()
	conn, err := c.Dialer.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		return down(transportMessage(err), checkedAt)
	}
	_ = conn.Close()

	return Result{
		Status:         domain.StatusUp,
		ResponseTimeMs: millis(elapsed),
		CheckedAt:      checkedAt,
	}
}

// TCPAddress normalises "tcp://host:port", "host:port" and bare "host" into a
// dialable address, defaulting the port to 80.
func TCPAddress(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	addr = strings.TrimPrefix(addr, "tcp://")
	addr = strings.TrimSuffix(addr, "/")
	if addr == "" {
		return "", &net.AddrError{Err: "missing address", Addr: raw}
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), defaultTCPPort), nil
}

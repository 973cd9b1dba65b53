package history

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/repo"
)

const hourlySpan = 24 * time.Hour

// HourlyStats aggregates the records of one local hour.
type HourlyStats struct {
	Date          string  `json:"date"`
	Hour          int     `json:"hour"`
	TotalChecks   int     `json:"total_checks"`
	UpChecks      int     `json:"up_checks"`
	UptimePercent float64 `json:"uptime_percent"`
	AvgResponseMs float64 `json:"avg_response_ms"`
}

// RecentHourly returns per-hour stats for the 24 hours before now, oldest
// first. Hours without records are omitted.
func RecentHourly(ctx context.Context, rs repo.RecordStore, id domain.TargetID, now time.Time) ([]HourlyStats, error) {
	recs, err := rs.Range(ctx, id, now.Add(-hourlySpan), now.Add(time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	return Hourly(recs), nil
}

// Hourly groups time-ordered records by their (Date, Hour) bucket.
func Hourly(recs []domain.CheckRecord) []HourlyStats {
	out := []HourlyStats{}
	var timed, sum int
	flush := func() {
		cur := &out[len(out)-1]
		if cur.TotalChecks > 0 {
			cur.UptimePercent = round2(float64(cur.UpChecks) / float64(cur.TotalChecks) * 100)
		}
		if timed > 0 {
			cur.AvgResponseMs = round2(float64(sum) / float64(timed))
		}
		timed, sum = 0, 0
	}
	for _, r := range recs {
		if n := len(out); n == 0 || out[n-1].Date != r.Date || out[n-1].Hour != r.Hour {
			if n > 0 {
				flush()
			}
			out = append(out, HourlyStats{Date: r.Date, Hour: r.Hour})
		}
		cur := &out[len(out)-1]
		cur.TotalChecks++
		if r.Status == domain.StatusUp {
			cur.UpChecks++
		}
		if r.ResponseTimeMs != nil {
			sum += *r.ResponseTimeMs
			timed++
		}
	}
	if len(out) > 0 {
		flush()
	}
	return out
}

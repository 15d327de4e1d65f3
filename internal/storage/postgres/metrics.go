package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ttracx/vibeanalytics/internal/domain"
)

// SeriesDays is the length of the per-day series in Stats.
const SeriesDays = 7

type StatsTotals struct {
	Events         int64 `json:"totalEvents"`
	UniqueSessions int64 `json:"uniqueUsers"`
	PageViews      int64 `json:"pageViews"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Stats struct {
	ProjectID string      `json:"projectId"`
	Days      int         `json:"days"`
	Totals    StatsTotals `json:"totals"`
	Daily     []DayCount  `json:"daily"`
}

// QueryStats aggregates the project's events since now-days and the event
// count of each of the last SeriesDays UTC days, zero filled.
func (db *DB) QueryStats(ctx context.Context, projectID string, days int, now time.Time) (Stats, error) {
	now = now.UTC()
	res := Stats{ProjectID: projectID, Days: days}
	since := now.AddDate(0, 0, -days)

	err := db.Pool.QueryRow(ctx, `
SELECT
  COUNT(*)::bigint,
  COUNT(DISTINCT session_id)::bigint,
  COUNT(*) FILTER (WHERE name = $3)::bigint
FROM events
WHERE project_id = $1 AND created_at >= $2`, projectID, since, domain.EventPageView).
		Scan(&res.Totals.Events, &res.Totals.UniqueSessions, &res.Totals.PageViews)
	if err != nil {
		return res, errors.Wrap(err, "scan totals")
	}

	seriesFrom := dayStart(now).AddDate(0, 0, -(SeriesDays - 1))
	rows, err := db.Pool.Query(ctx, `
SELECT
  to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
  COUNT(*)::bigint AS cnt
FROM events
WHERE project_id = $1 AND created_at >= $2
GROUP BY 1
ORDER BY 1 ASC`, projectID, seriesFrom)
	if err != nil {
		return res, errors.Wrap(err, "query daily buckets")
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var (
			day string
			n   int64
		)
		if err := rows.Scan(&day, &n); err != nil {
			return res, errors.Wrap(err, "scan bucket")
		}
		counts[day] = n
	}
	if err := rows.Err(); err != nil {
		return res, err
	}
	res.Daily = fillDays(now, SeriesDays, counts)
	return res, nil
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fillDays returns n consecutive days ending with now's day, oldest first.
// Days missing from counts report zero.
func fillDays(now time.Time, n int, counts map[string]int64) []DayCount {
	out := make([]DayCount, 0, n)
	start := dayStart(now.UTC())
	for i := n - 1; i >= 0; i-- {
		date := start.AddDate(0, 0, -i).Format(time.DateOnly)
		out = append(out, DayCount{Date: date, Count: counts[date]})
	}
	return out
}

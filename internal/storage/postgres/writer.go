package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/ttracx/vibeanalytics/internal/domain"
)

// nullable maps the empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// pgText makes s storable in a text column: Postgres rejects NUL and
// invalid UTF-8. Valid input is returned unchanged.
func pgText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// pgJSON applies pgText to every key and string inside a decoded JSON value;
// jsonb rejects \u0000.
func pgJSON(v any) any {
	switch t := v.(type) {
	case string:
		return pgText(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[pgText(k)] = pgJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = pgJSON(e)
		}
		return out
	}
	return v
}

// InsertEvent writes one event row. Events are append-only.
func (db *DB) InsertEvent(ctx context.Context, ev *domain.Event) error {
	props := ev.Properties
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(pgJSON(props))
	if err != nil {
		return errors.Wrap(err, "encode properties")
	}

	_, err = db.Pool.Exec(ctx, `
INSERT INTO events (
  id, project_id, name, session_id, user_id, properties, url, referrer,
  user_agent, ip, device, browser, os, country, city, bot, sent_at, created_at
) VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		ev.ID, ev.ProjectID, pgText(ev.Name), pgText(ev.SessionID), nullable(pgText(ev.UserID)), string(b),
		nullable(pgText(ev.URL)), nullable(pgText(ev.Referrer)), pgText(ev.UserAgent), ev.IP,
		ev.Device, ev.Browser, ev.OS, nullable(pgText(ev.Country)), nullable(pgText(ev.City)),
		ev.Bot, ev.SentAt, ev.Timestamp,
	)
	if err != nil {
		return errors.Wrapf(err, "insert event %s", ev.ID)
	}
	return nil
}

func (db *DB) ProjectExists(ctx context.Context, projectID string) (bool, error) {
	if pgText(projectID) != projectID {
		return false, nil
	}
	var ok bool
	err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&ok)
	if err != nil {
		return false, errors.Wrap(err, "project exists")
	}
	return ok, nil
}

const eventColumns = `id::text, project_id, name, session_id, COALESCE(user_id, ''), properties,
  COALESCE(url, ''), COALESCE(referrer, ''), user_agent, ip, device, browser, os,
  COALESCE(country, ''), COALESCE(city, ''), bot, sent_at, created_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		ev    domain.Event
		props []byte
	)
	err := row.Scan(&ev.ID, &ev.ProjectID, &ev.Name, &ev.SessionID, &ev.UserID, &props,
		&ev.URL, &ev.Referrer, &ev.UserAgent, &ev.IP, &ev.Device, &ev.Browser, &ev.OS,
		&ev.Country, &ev.City, &ev.Bot, &ev.SentAt, &ev.Timestamp)
	if err != nil {
		return ev, err
	}
	ev.Properties = map[string]any{}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &ev.Properties); err != nil {
			return ev, errors.Wrapf(err, "decode properties of %s", ev.ID)
		}
	}
	ev.Timestamp = ev.Timestamp.UTC()
	return ev, nil
}

// ExportEvents returns the project's events created at or after since,
// newest first, at most limit rows.
func (db *DB) ExportEvents(ctx context.Context, projectID string, since time.Time, limit int) ([]domain.Event, error) {
	rows, err := db.Pool.Query(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE project_id = $1 AND created_at >= $2
ORDER BY created_at DESC
LIMIT $3`, projectID, since, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query export")
	}
	defer rows.Close()

	out := make([]domain.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PruneFreeTier deletes events older than cutoff that belong to projects of
// teams on the free plan. It returns the number of rows removed.
func (db *DB) PruneFreeTier(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := db.Pool.Exec(ctx, `
DELETE FROM events e
USING projects p, teams t
WHERE e.project_id = p.id
  AND p.team_id = t.id
  AND t.plan = 'free'
  AND e.created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "prune events")
	}
	return ct.RowsAffected(), nil
}

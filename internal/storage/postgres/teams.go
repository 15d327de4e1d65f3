package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/ttracx/vibeanalytics/internal/domain"
	"github.com/ttracx/vibeanalytics/internal/idgen"
)

const teamColumns = `t.id, t.name, t.plan, COALESCE(t.stripe_customer_id, ''),
  COALESCE(t.stripe_subscription_id, ''), COALESCE(t.stripe_price_id, ''),
  t.stripe_current_period_end, t.created_at`

func scanTeam(row pgx.Row, extra ...any) (domain.Team, error) {
	var t domain.Team
	dest := append([]any{&t.ID, &t.Name, &t.Plan, &t.StripeCustomerID, &t.StripeSubscriptionID,
		&t.StripePriceID, &t.StripeCurrentPeriodEnd, &t.CreatedAt}, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// MembershipForUser resolves the user's first team.
func (db *DB) MembershipForUser(ctx context.Context, userID string) (domain.Membership, error) {
	m := domain.Membership{UserID: userID}
	team, err := scanTeam(db.Pool.QueryRow(ctx, `
SELECT `+teamColumns+`, m.role
FROM team_members m
JOIN teams t ON t.id = m.team_id
WHERE m.user_id = $1
ORDER BY m.created_at ASC
LIMIT 1`, userID), &m.Role)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return m, err
		}
		return m, errors.Wrapf(err, "membership for %s", userID)
	}
	m.Team = team
	return m, nil
}

// TeamByAPIKey resolves the team owning key and stamps the key's last use.
func (db *DB) TeamByAPIKey(ctx context.Context, key string) (domain.Team, error) {
	team, err := scanTeam(db.Pool.QueryRow(ctx, `
WITH used AS (
  UPDATE api_keys SET last_used = now() WHERE key = $1 RETURNING team_id
)
SELECT `+teamColumns+`
FROM used JOIN teams t ON t.id = used.team_id`, key))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return team, errors.Wrap(err, "team by api key")
	}
	return team, err
}

func (db *DB) GetTeam(ctx context.Context, teamID string) (domain.Team, error) {
	team, err := scanTeam(db.Pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams t WHERE t.id = $1`, teamID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return team, errors.Wrapf(err, "get team %s", teamID)
	}
	return team, err
}

// CreateTeam inserts a free-plan team with ownerUserID as its owner.
func (db *DB) CreateTeam(ctx context.Context, name, ownerUserID string) (domain.Team, error) {
	var team domain.Team
	id, err := idgen.NewEntityID()
	if err != nil {
		return team, err
	}
	err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
INSERT INTO teams (id, name) VALUES ($1, $2)
RETURNING id, name, plan, '', '', '', stripe_current_period_end, created_at`,
			id, strings.TrimSpace(name))
		var err error
		if team, err = scanTeam(row); err != nil {
			return errors.Wrap(err, "insert team")
		}
		_, err = tx.Exec(ctx, `INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)`,
			team.ID, ownerUserID, domain.RoleOwner)
		return errors.Wrap(err, "insert owner")
	})
	return team, err
}

func (db *DB) AddMember(ctx context.Context, teamID, userID string, role domain.Role) error {
	_, err := db.Pool.Exec(ctx, `
INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)
ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role`, teamID, userID, role)
	return errors.Wrap(err, "add member")
}

func (db *DB) SetStripeCustomer(ctx context.Context, teamID, customerID string) error {
	ct, err := db.Pool.Exec(ctx, `UPDATE teams SET stripe_customer_id = $2 WHERE id = $1`, teamID, customerID)
	if err != nil {
		return errors.Wrap(err, "set stripe customer")
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) CreateProject(ctx context.Context, teamID, name, domainName string) (domain.Project, error) {
	id, err := idgen.NewEntityID()
	if err != nil {
		return domain.Project{}, err
	}
	p := domain.Project{ID: id, TeamID: teamID, Name: strings.TrimSpace(name), Domain: domainName}
	err = db.Pool.QueryRow(ctx, `
INSERT INTO projects (id, team_id, name, domain) VALUES ($1, $2, $3, $4)
RETURNING created_at`, p.ID, p.TeamID, p.Name, nullable(domainName)).Scan(&p.CreatedAt)
	if err != nil {
		return p, errors.Wrap(err, "insert project")
	}
	return p, nil
}

// TeamHasProject reports whether projectID exists and belongs to teamID.
func (db *DB) TeamHasProject(ctx context.Context, teamID, projectID string) (bool, error) {
	var ok bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND team_id = $2)`, projectID, teamID).Scan(&ok)
	if err != nil {
		return false, errors.Wrap(err, "team has project")
	}
	return ok, nil
}

func (db *DB) ListProjects(ctx context.Context, teamID string) ([]domain.Project, error) {
	rows, err := db.Pool.Query(ctx, `
SELECT id, team_id, name, COALESCE(domain, ''), created_at
FROM projects WHERE team_id = $1 ORDER BY created_at ASC`, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	defer rows.Close()

	out := make([]domain.Project, 0)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.Domain, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan project")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

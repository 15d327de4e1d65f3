package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/ttracx/vibeanalytics/internal/domain"
	"github.com/ttracx/vibeanalytics/internal/idgen"
)

// DefaultAPIKeyName is used when a key is created without a name.
const DefaultAPIKeyName = "API Key"

func (db *DB) ListAPIKeys(ctx context.Context, teamID string) ([]domain.APIKey, error) {
	rows, err := db.Pool.Query(ctx, `
SELECT id, team_id, name, key, last_used, created_at
FROM api_keys WHERE team_id = $1 ORDER BY created_at ASC`, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "list api keys")
	}
	defer rows.Close()

	out := make([]domain.APIKey, 0)
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(&k.ID, &k.TeamID, &k.Name, &k.Key, &k.LastUsed, &k.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan api key")
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (db *DB) CreateAPIKey(ctx context.Context, teamID, name string) (domain.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultAPIKeyName
	}
	id, err := idgen.NewEntityID()
	if err != nil {
		return domain.APIKey{}, err
	}
	secret, err := idgen.NewAPIKey()
	if err != nil {
		return domain.APIKey{}, err
	}
	k := domain.APIKey{ID: id, TeamID: teamID, Name: name, Key: secret}
	err = db.Pool.QueryRow(ctx, `
INSERT INTO api_keys (id, team_id, name, key) VALUES ($1, $2, $3, $4)
RETURNING created_at`, k.ID, k.TeamID, k.Name, k.Key).Scan(&k.CreatedAt)
	if err != nil {
		return k, errors.Wrap(err, "insert api key")
	}
	return k, nil
}

// DeleteAPIKey removes keyID when it belongs to teamID, else ErrNotFound.
func (db *DB) DeleteAPIKey(ctx context.Context, teamID, keyID string) error {
	ct, err := db.Pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1 AND team_id = $2`, keyID, teamID)
	if err != nil {
		return errors.Wrap(err, "delete api key")
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

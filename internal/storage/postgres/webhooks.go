package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ttracx/vibeanalytics/internal/domain"
)

func recordKey(ctx context.Context, tx pgx.Tx, key, eventType string) (bool, error) {
	ct, err := tx.Exec(ctx, `
INSERT INTO processed_webhooks (key, event_type) VALUES ($1, $2)
ON CONFLICT (key) DO NOTHING`, key, eventType)
	if err != nil {
		return false, errors.Wrap(err, "record webhook")
	}
	return ct.RowsAffected() == 1, nil
}

// RecordWebhook adds key to the ledger. recorded is false for a replay.
func (db *DB) RecordWebhook(ctx context.Context, key, eventType string) (bool, error) {
	var recorded bool
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		var err error
		recorded, err = recordKey(ctx, tx, key, eventType)
		return err
	})
	return recorded, err
}

// ApplyPlanChange records key and applies change in one transaction. A key
// already in the ledger applies nothing; a failed change rolls the ledger
// row back so the provider's retry is processed.
func (db *DB) ApplyPlanChange(ctx context.Context, key, eventType string, change domain.PlanChange) (bool, error) {
	var applied bool
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		fresh, err := recordKey(ctx, tx, key, eventType)
		if err != nil || !fresh {
			return err
		}

		var (
			sql  string
			args []any
		)
		switch change.Kind {
		case domain.PlanActivate:
			sql = `UPDATE teams SET plan = $2, stripe_subscription_id = $3, stripe_price_id = $4,
  stripe_current_period_end = $5 WHERE id = $1`
			args = []any{change.TeamID, domain.PlanPro, change.SubscriptionID, nullable(change.PriceID), change.CurrentPeriodEnd}
		case domain.PlanRenew:
			sql = `UPDATE teams SET stripe_current_period_end = $2 WHERE stripe_subscription_id = $1`
			args = []any{change.SubscriptionID, change.CurrentPeriodEnd}
		case domain.PlanCancel:
			sql = `UPDATE teams SET plan = $2, stripe_subscription_id = NULL, stripe_price_id = NULL,
  stripe_current_period_end = NULL WHERE stripe_subscription_id = $1`
			args = []any{change.SubscriptionID, domain.PlanFree}
		default:
			return errors.Errorf("unknown plan change %d", change.Kind)
		}

		ct, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return errors.Wrapf(err, "apply %s", change.Kind)
		}
		if ct.RowsAffected() == 0 {
			log.WithFields(log.Fields{"webhook_key": key, "change": change.Kind.String(),
				"subscription_id": change.SubscriptionID}).Warn("Plan change matched no team.")
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

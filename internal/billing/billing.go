// Package billing keeps a team's plan in sync with the payment provider.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ttracx/vibeanalytics/internal/domain"
	"github.com/ttracx/vibeanalytics/internal/idempotency"
)

// Webhook event types that change a team's plan.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
)

var (
	// ErrInvalidSignature means the payload was not signed with the webhook secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrNotConfigured means no provider credentials were supplied.
	ErrNotConfigured = errors.New("billing is not configured")
)

// WebhookEvent is a verified provider notification reduced to the fields
// the plan sync uses.
type WebhookEvent struct {
	ID             string
	Type           string
	Created        int64
	TeamID         string
	SubscriptionID string
}

type Subscription struct {
	ID               string
	PriceID          string
	CurrentPeriodEnd time.Time
}

type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	TeamID     string
	SuccessURL string
	CancelURL  string
}

// Provider is the payment provider. Its payload formats and signature scheme
// are opaque to this package.
type Provider interface {
	VerifyWebhook(payload []byte, signatureHeader string) (WebhookEvent, error)
	Subscription(ctx context.Context, id string) (Subscription, error)
	CreateCustomer(ctx context.Context, email, name, teamID string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// Store applies plan changes behind a dedup ledger. ApplyPlanChange records
// key and applies change atomically; applied is false when key was already
// recorded, in which case nothing changes.
type Store interface {
	ApplyPlanChange(ctx context.Context, key, eventType string, change domain.PlanChange) (applied bool, err error)
	RecordWebhook(ctx context.Context, key, eventType string) (recorded bool, err error)
	SetStripeCustomer(ctx context.Context, teamID, customerID string) error
}

// Outcome describes what a webhook delivery did.
type Outcome struct {
	Key       string
	Type      string
	Applied   bool
	Duplicate bool
}

type Service struct {
	provider Provider
	store    Store
	appURL   string
}

func NewService(provider Provider, store Store, appURL string) *Service {
	return &Service{provider: provider, store: store, appURL: appURL}
}

// HandleWebhook verifies payload and applies the plan change it implies at
// most once per provider event.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if s.provider == nil {
		return Outcome{}, ErrNotConfigured
	}
	ev, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		return Outcome{}, err
	}

	key, src := idempotency.DeriveKey(idempotency.Delivery{
		EventID:        ev.ID,
		Type:           ev.Type,
		SubscriptionID: ev.SubscriptionID,
		Created:        ev.Created,
	})
	out := Outcome{Key: key, Type: ev.Type}
	logCtx := log.WithFields(log.Fields{"webhook_key": key, "key_source": src, "type": ev.Type})

	change, ok, err := s.planChange(ctx, ev)
	if err != nil {
		return out, err
	}
	if !ok {
		recorded, err := s.store.RecordWebhook(ctx, key, ev.Type)
		if err != nil {
			return out, err
		}
		out.Duplicate = !recorded
		logCtx.Debug("Webhook acknowledged without plan change.")
		return out, nil
	}

	applied, err := s.store.ApplyPlanChange(ctx, key, ev.Type, change)
	if err != nil {
		return out, err
	}
	out.Applied = applied
	out.Duplicate = !applied
	if applied {
		logCtx.WithFields(log.Fields{"team_id": change.TeamID, "subscription_id": change.SubscriptionID,
			"change": change.Kind.String()}).Info("Applied plan change.")
	} else {
		logCtx.Info("Skipped duplicate webhook delivery.")
	}
	return out, nil
}

func (s *Service) planChange(ctx context.Context, ev WebhookEvent) (domain.PlanChange, bool, error) {
	switch ev.Type {
	case EventCheckoutCompleted:
		if ev.TeamID == "" || ev.SubscriptionID == "" {
			return domain.PlanChange{}, false, nil
		}
		sub, err := s.provider.Subscription(ctx, ev.SubscriptionID)
		if err != nil {
			return domain.PlanChange{}, false, fmt.Errorf("retrieve subscription %s: %w", ev.SubscriptionID, err)
		}
		return domain.PlanChange{
			Kind:             domain.PlanActivate,
			TeamID:           ev.TeamID,
			SubscriptionID:   sub.ID,
			PriceID:          sub.PriceID,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		}, true, nil

	case EventInvoicePaymentSucceeded:
		if ev.SubscriptionID == "" {
			return domain.PlanChange{}, false, nil
		}
		sub, err := s.provider.Subscription(ctx, ev.SubscriptionID)
		if err != nil {
			return domain.PlanChange{}, false, fmt.Errorf("retrieve subscription %s: %w", ev.SubscriptionID, err)
		}
		return domain.PlanChange{
			Kind:             domain.PlanRenew,
			SubscriptionID:   ev.SubscriptionID,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		}, true, nil

	case EventSubscriptionDeleted:
		if ev.SubscriptionID == "" {
			return domain.PlanChange{}, false, nil
		}
		return domain.PlanChange{Kind: domain.PlanCancel, SubscriptionID: ev.SubscriptionID}, true, nil
	}
	return domain.PlanChange{}, false, nil
}

// Checkout starts a subscription checkout for team, creating the provider
// customer on first use. It returns the hosted checkout URL.
func (s *Service) Checkout(ctx context.Context, team domain.Team, email, name, priceID string) (string, error) {
	if s.provider == nil {
		return "", ErrNotConfigured
	}
	customerID := team.StripeCustomerID
	if customerID == "" {
		id, err := s.provider.CreateCustomer(ctx, email, name, team.ID)
		if err != nil {
			return "", fmt.Errorf("create customer: %w", err)
		}
		if err := s.store.SetStripeCustomer(ctx, team.ID, id); err != nil {
			return "", err
		}
		customerID = id
	}
	return s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		TeamID:     team.ID,
		SuccessURL: s.appURL + "/dashboard/settings?success=true",
		CancelURL:  s.appURL + "/dashboard/settings?canceled=true",
	})
}

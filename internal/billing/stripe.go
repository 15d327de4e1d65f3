package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe implements Provider with the Stripe API.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api, webhookSecret: webhookSecret}
}

// NewStripeVerifier verifies webhooks only; API calls are unavailable.
func NewStripeVerifier(webhookSecret string) *Stripe {
	return &Stripe{webhookSecret: webhookSecret}
}

// webhookObject covers the fields of checkout sessions, invoices and
// subscriptions that the plan sync reads.
type webhookObject struct {
	Object       string            `json:"object"`
	ID           string            `json:"id"`
	Metadata     map[string]string `json:"metadata"`
	Subscription json.RawMessage   `json:"subscription"`
}

func (s *Stripe) VerifyWebhook(payload []byte, signatureHeader string) (WebhookEvent, error) {
	if s.webhookSecret == "" || signatureHeader == "" {
		return WebhookEvent{}, ErrInvalidSignature
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret,
		webhook.ConstructEventOptions{Tolerance: webhook.DefaultTolerance, IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type), Created: ev.Created}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}
	var obj webhookObject
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return out, fmt.Errorf("decode %s object: %w", ev.Type, err)
	}

	switch out.Type {
	case EventSubscriptionDeleted:
		out.SubscriptionID = obj.ID
	default:
		out.SubscriptionID = expandableID(obj.Subscription)
	}
	out.TeamID = obj.Metadata["teamId"]
	return out, nil
}

// expandableID reads a field Stripe sends either as an id string or as an
// expanded object carrying "id".
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func (s *Stripe) Subscription(ctx context.Context, id string) (Subscription, error) {
	if s.api == nil {
		return Subscription{}, ErrNotConfigured
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := s.api.Subscriptions.Get(id, params)
	if err != nil {
		return Subscription{}, err
	}
	out := Subscription{ID: sub.ID, CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC()}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out, nil
}

func (s *Stripe) CreateCustomer(ctx context.Context, email, name, teamID string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	params.AddMetadata("teamId", teamID)
	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(req.CustomerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("teamId", req.TeamID)
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

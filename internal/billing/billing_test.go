package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttracx/vibeanalytics/internal/domain"
)

type fakeProvider struct {
	events    map[string]WebhookEvent
	subs      map[string]Subscription
	subCalls  int
	customers int
	lastReq   CheckoutRequest
}

func (p *fakeProvider) VerifyWebhook(payload []byte, sig string) (WebhookEvent, error) {
	if sig != "valid" {
		return WebhookEvent{}, ErrInvalidSignature
	}
	ev, ok := p.events[string(payload)]
	if !ok {
		return WebhookEvent{}, errors.New("unknown payload")
	}
	return ev, nil
}

func (p *fakeProvider) Subscription(_ context.Context, id string) (Subscription, error) {
	p.subCalls++
	s, ok := p.subs[id]
	if !ok {
		return Subscription{}, errors.New("no such subscription")
	}
	return s, nil
}

func (p *fakeProvider) CreateCustomer(context.Context, string, string, string) (string, error) {
	p.customers++
	return "cus_new", nil
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (string, error) {
	p.lastReq = req
	return "https://checkout.example/session", nil
}

// memStore mirrors the transactional contract of the postgres store.
type memStore struct {
	mu       sync.Mutex
	ledger   map[string]string
	teams    map[string]*domain.Team
	applyErr error
	applied  int
}

func newMemStore() *memStore {
	return &memStore{
		ledger: map[string]string{},
		teams:  map[string]*domain.Team{"team_1": {ID: "team_1", Plan: domain.PlanFree}},
	}
}

func (m *memStore) ApplyPlanChange(_ context.Context, key, typ string, c domain.PlanChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.ledger[key]; seen {
		return false, nil
	}
	if m.applyErr != nil {
		return false, m.applyErr
	}
	m.ledger[key] = typ
	m.applied++
	for _, t := range m.teams {
		switch c.Kind {
		case domain.PlanActivate:
			if t.ID == c.TeamID {
				end := c.CurrentPeriodEnd
				t.Plan, t.StripeSubscriptionID, t.StripePriceID, t.StripeCurrentPeriodEnd = domain.PlanPro, c.SubscriptionID, c.PriceID, &end
			}
		case domain.PlanRenew:
			if t.StripeSubscriptionID == c.SubscriptionID {
				end := c.CurrentPeriodEnd
				t.StripeCurrentPeriodEnd = &end
			}
		case domain.PlanCancel:
			if t.StripeSubscriptionID == c.SubscriptionID {
				t.Plan, t.StripeSubscriptionID, t.StripePriceID, t.StripeCurrentPeriodEnd = domain.PlanFree, "", "", nil
			}
		}
	}
	return true, nil
}

func (m *memStore) RecordWebhook(_ context.Context, key, typ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.ledger[key]; seen {
		return false, nil
	}
	m.ledger[key] = typ
	return true, nil
}

func (m *memStore) SetStripeCustomer(_ context.Context, teamID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[teamID].StripeCustomerID = customerID
	return nil
}

var periodEnd = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func newFixture() (*Service, *fakeProvider, *memStore) {
	p := &fakeProvider{
		events: map[string]WebhookEvent{
			"checkout": {ID: "evt_1", Type: EventCheckoutCompleted, TeamID: "team_1", SubscriptionID: "sub_1"},
			"invoice":  {ID: "evt_2", Type: EventInvoicePaymentSucceeded, SubscriptionID: "sub_1"},
			"deleted":  {ID: "evt_3", Type: EventSubscriptionDeleted, SubscriptionID: "sub_1"},
			"other":    {ID: "evt_4", Type: "customer.created"},
		},
		subs: map[string]Subscription{"sub_1": {ID: "sub_1", PriceID: "price_pro", CurrentPeriodEnd: periodEnd}},
	}
	s := newMemStore()
	return NewService(p, s, "https://app.example"), p, s
}

func TestCheckoutCompletedUpgradesTeam(t *testing.T) {
	svc, _, store := newFixture()

	out, err := svc.HandleWebhook(context.Background(), []byte("checkout"), "valid")
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.False(t, out.Duplicate)

	team := store.teams["team_1"]
	assert.Equal(t, domain.PlanPro, team.Plan)
	assert.Equal(t, "sub_1", team.StripeSubscriptionID)
	assert.Equal(t, "price_pro", team.StripePriceID)
	require.NotNil(t, team.StripeCurrentPeriodEnd)
	assert.Equal(t, periodEnd, *team.StripeCurrentPeriodEnd)
}

func TestReplayedWebhookAppliesOnce(t *testing.T) {
	svc, _, store := newFixture()
	ctx := context.Background()

	_, err := svc.HandleWebhook(ctx, []byte("checkout"), "valid")
	require.NoError(t, err)
	_, err = svc.HandleWebhook(ctx, []byte("deleted"), "valid")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, store.teams["team_1"].Plan)

	// A late retry of the checkout must not re-upgrade the cancelled team.
	out, err := svc.HandleWebhook(ctx, []byte("checkout"), "valid")
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.False(t, out.Applied)
	assert.Equal(t, domain.PlanFree, store.teams["team_1"].Plan)
	assert.Equal(t, 2, store.applied)
}

func TestInvoiceRenewsPeriod(t *testing.T) {
	svc, p, store := newFixture()
	ctx := context.Background()
	_, err := svc.HandleWebhook(ctx, []byte("checkout"), "valid")
	require.NoError(t, err)

	later := periodEnd.AddDate(0, 1, 0)
	p.subs["sub_1"] = Subscription{ID: "sub_1", PriceID: "price_pro", CurrentPeriodEnd: later}
	out, err := svc.HandleWebhook(ctx, []byte("invoice"), "valid")
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, later, *store.teams["team_1"].StripeCurrentPeriodEnd)
}

func TestInvalidSignature(t *testing.T) {
	svc, _, store := newFixture()
	_, err := svc.HandleWebhook(context.Background(), []byte("checkout"), "forged")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, store.ledger)
}

func TestUnhandledTypeIsRecordedOnly(t *testing.T) {
	svc, p, store := newFixture()
	out, err := svc.HandleWebhook(context.Background(), []byte("other"), "valid")
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.False(t, out.Duplicate)
	assert.Equal(t, 0, p.subCalls)
	assert.Len(t, store.ledger, 1)

	out, err = svc.HandleWebhook(context.Background(), []byte("other"), "valid")
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
}

func TestFailedApplyCanBeRetried(t *testing.T) {
	svc, _, store := newFixture()
	store.applyErr = errors.New("db down")

	_, err := svc.HandleWebhook(context.Background(), []byte("checkout"), "valid")
	require.Error(t, err)
	assert.Empty(t, store.ledger)

	store.applyErr = nil
	out, err := svc.HandleWebhook(context.Background(), []byte("checkout"), "valid")
	require.NoError(t, err)
	assert.True(t, out.Applied)
}

func TestCheckoutCreatesCustomerOnce(t *testing.T) {
	svc, p, store := newFixture()
	ctx := context.Background()

	url, err := svc.Checkout(ctx, *store.teams["team_1"], "owner@example.com", "Owner", "price_pro")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/session", url)
	assert.Equal(t, 1, p.customers)
	assert.Equal(t, "cus_new", store.teams["team_1"].StripeCustomerID)
	assert.Equal(t, "https://app.example/dashboard/settings?success=true", p.lastReq.SuccessURL)
	assert.Equal(t, "team_1", p.lastReq.TeamID)

	_, err = svc.Checkout(ctx, *store.teams["team_1"], "owner@example.com", "Owner", "price_pro")
	require.NoError(t, err)
	assert.Equal(t, 1, p.customers)
}

func TestNotConfigured(t *testing.T) {
	svc := NewService(nil, newMemStore(), "")
	_, err := svc.HandleWebhook(context.Background(), nil, "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

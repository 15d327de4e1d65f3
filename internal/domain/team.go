package domain

import "time"

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	// RoleAPI is assigned to callers authenticated with a team API key.
	RoleAPI Role = "api"
)

type Team struct {
	ID                     string     `json:"id"`
	Name                   string     `json:"name"`
	Plan                   Plan       `json:"plan"`
	StripeCustomerID       string     `json:"-"`
	StripeSubscriptionID   string     `json:"-"`
	StripePriceID          string     `json:"-"`
	StripeCurrentPeriodEnd *time.Time `json:"stripeCurrentPeriodEnd"`
	CreatedAt              time.Time  `json:"createdAt"`
}

type Project struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership is the caller's view of a team, resolved by authentication.
type Membership struct {
	UserID string
	Role   Role
	Team   Team
}

type APIKey struct {
	ID        string     `json:"id"`
	TeamID    string     `json:"-"`
	Name      string     `json:"name"`
	Key       string     `json:"key"`
	LastUsed  *time.Time `json:"lastUsed"`
	CreatedAt time.Time  `json:"createdAt"`
}

// PlanChangeKind enumerates the subscription transitions a billing webhook can apply.
type PlanChangeKind int

const (
	// PlanActivate attaches a subscription to TeamID and upgrades it.
	PlanActivate PlanChangeKind = iota + 1
	// PlanRenew moves the period end of the team holding SubscriptionID.
	PlanRenew
	// PlanCancel clears the subscription and downgrades to free.
	PlanCancel
)

func (k PlanChangeKind) String() string {
	switch k {
	case PlanActivate:
		return "activate"
	case PlanRenew:
		return "renew"
	case PlanCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

type PlanChange struct {
	Kind             PlanChangeKind
	TeamID           string
	SubscriptionID   string
	PriceID          string
	CurrentPeriodEnd time.Time
}

package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type KeySource string

const (
	KeyFromEventID   KeySource = "event_id"
	KeyFromComposite KeySource = "composite"
)

// Delivery identifies one provider webhook delivery.
type Delivery struct {
	EventID        string
	Type           string
	SubscriptionID string
	Created        int64
}

// DeriveKey returns a stable idempotency key and the source used.
// - Prefer the provider's event id when present.
// - Fallback to composite (type, subscription, created) hashed with SHA-256.
func DeriveKey(d Delivery) (key string, src KeySource) {
	if d.EventID != "" {
		return d.EventID, KeyFromEventID
	}
	composite := fmt.Sprintf("%s|%s|%d", d.Type, d.SubscriptionID, d.Created)
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:]), KeyFromComposite
}

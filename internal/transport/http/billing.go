package transporthttp

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ttracx/vibeanalytics/internal/billing"
	"github.com/ttracx/vibeanalytics/internal/domain"
)

// signatureHeader carries the provider's payload signature.
const signatureHeader = "Stripe-Signature"

func (d *ServerDeps) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	sig := r.Header.Get(signatureHeader)
	if sig == "" || d.Cfg.StripeWebhookSecret == "" || d.Billing == nil {
		writeError(w, http.StatusBadRequest, "Missing signature")
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		status, msg := decodeStatus(err)
		writeError(w, status, msg)
		return
	}

	_, err = d.Billing.HandleWebhook(r.Context(), payload, sig)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, billing.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "Invalid signature")
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, "Missing signature")
	default:
		writeInternal(w, r, "Webhook handler failed", err)
	}
}

type checkoutReq struct {
	PriceID string `json:"priceId"`
}

func (d *ServerDeps) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	caller, _ := CallerFromContext(r.Context())
	if caller == nil || caller.Membership == nil || caller.Membership.Role != domain.RoleOwner {
		writeError(w, http.StatusNotFound, "Team not found")
		return
	}
	var req checkoutReq
	if err := decodeJSON(r, &req); err != nil {
		status, msg := decodeStatus(err)
		writeError(w, status, msg)
		return
	}
	if req.PriceID = strings.TrimSpace(req.PriceID); req.PriceID == "" {
		writeError(w, http.StatusBadRequest, "priceId is required")
		return
	}
	if d.Billing == nil {
		writeError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}

	url, err := d.Billing.Checkout(r.Context(), caller.Membership.Team, caller.Email, caller.Name, req.PriceID)
	if errors.Is(err, billing.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}
	if err != nil {
		writeInternal(w, r, "Failed to create checkout session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

package stripe

import (
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
)

// SignatureHeader carries the Stripe webhook signature.
const SignatureHeader = "Stripe-Signature"

// ConstructEvent verifies the signature header against the raw payload and
// decodes the event. API version mismatches are tolerated since only the
// payment intent object is read.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c == nil {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	return ConstructEvent(payload, sigHeader, c.signingSecret)
}

// ConstructEvent is the stateless form of Client.ConstructEvent.
func ConstructEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	if sigHeader == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeSignature, "missing stripe-signature header")
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "invalid stripe signature")
	}
	return event, nil
}

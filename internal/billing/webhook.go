package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/sumire/verdictrelay/internal/domain"
)

// Event types acted on by the relay.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventPaymentIntentFailed = "payment_intent.payment_failed"
)

// Verifier checks Stripe-Signature headers against the endpoint secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify authenticates payload and decodes the event.
// Every failure wraps domain.ErrInvalidSignature.
func (v *Verifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing Stripe-Signature header", domain.ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return event, nil
}

// SessionObject is the checkout session carried by checkout.session.completed.
type SessionObject struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentIntent     string            `json:"payment_intent"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

// PaymentIntentObject is the payment intent carried by payment_intent.* events.
type PaymentIntentObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

func DecodeSession(event stripe.Event) (SessionObject, error) {
	var s SessionObject
	if event.Data == nil {
		return s, fmt.Errorf("%w: event %s has no data", domain.ErrInvalidInput, event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return s, fmt.Errorf("%w: decode checkout.session: %v", domain.ErrInvalidInput, err)
	}
	return s, nil
}

func DecodePaymentIntent(event stripe.Event) (PaymentIntentObject, error) {
	var pi PaymentIntentObject
	if event.Data == nil {
		return pi, fmt.Errorf("%w: event %s has no data", domain.ErrInvalidInput, event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return pi, fmt.Errorf("%w: decode payment_intent: %v", domain.ErrInvalidInput, err)
	}
	return pi, nil
}

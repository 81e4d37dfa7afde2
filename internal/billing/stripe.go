// Package billing wraps the Stripe API calls made by the relay.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/sumire/verdictrelay/internal/domain"
)

// CheckoutRequest describes a one-off credit pack purchase.
type CheckoutRequest struct {
	SubscriberID string
	SueReason    string
	Answers      [4]string
	Pack         domain.CreditPack
	Currency     string // default "usd"
	SuccessURL   string
	CancelURL    string
}

// CheckoutSession is the subset of a Stripe checkout session the relay uses.
type CheckoutSession struct {
	ID                string
	URL               string
	Status            string
	PaymentStatus     string
	ClientReferenceID string
	PaymentIntentID   string
	Metadata          map[string]string
}

// Gateway talks to the Stripe REST API.
type Gateway struct {
	api *client.API
}

// NewGateway builds a gateway for secretKey. backends may be nil.
func NewGateway(secretKey string, backends *stripe.Backends) *Gateway {
	return &Gateway{api: client.New(secretKey, backends)}
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	currency := req.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	metadata := map[string]string{
		domain.MetaClientReferenceID: req.SubscriberID,
		domain.MetaSueReason:         req.SueReason,
		domain.MetaCreditAmount:      req.Pack.Credits,
	}
	for i, a := range req.Answers {
		metadata[fmt.Sprintf("answer_%d", i+1)] = a
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Pack.ProductName),
					},
					UnitAmount: stripe.Int64(req.Pack.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.SubscriberID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeError("create checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func (g *Gateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, wrapStripeError("get checkout session "+id, err)
	}
	return toCheckoutSession(s), nil
}

// PaymentIntentMetadata returns the metadata attached to a payment intent.
func (g *Gateway) PaymentIntentMetadata(ctx context.Context, id string) (map[string]string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, wrapStripeError("get payment intent "+id, err)
	}
	return pi.Metadata, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		Status:            string(s.Status),
		PaymentStatus:     string(s.PaymentStatus),
		ClientReferenceID: s.ClientReferenceID,
		Metadata:          s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstream, op, err)
}

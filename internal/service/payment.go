package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"github.com/sumire/verdictrelay/internal/async"
	"github.com/sumire/verdictrelay/internal/billing"
	"github.com/sumire/verdictrelay/internal/domain"
)

// PaymentGateway is the outbound side of the payment processor.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*billing.CheckoutSession, error)
	PaymentIntentMetadata(ctx context.Context, id string) (map[string]string, error)
}

// EventVerifier authenticates inbound webhook payloads.
type EventVerifier interface {
	Verify(payload []byte, sigHeader string) (stripe.Event, error)
}

// CreditLedger increments a subscriber balance.
type CreditLedger interface {
	Increment(ctx context.Context, subscriberID string, delta int) (int, error)
}

// SubscriberNotifier sends a best-effort message.
type SubscriberNotifier interface {
	Send(ctx context.Context, subscriberID, text string)
}

// CheckoutInput is a credit pack purchase request.
type CheckoutInput struct {
	SubscriberID string
	SueReason    string
	Answers      [4]string
	Credit       string
}

// PaymentService runs checkout and reacts to payment events.
type PaymentService struct {
	gateway  PaymentGateway
	verifier EventVerifier
	ledger   CreditLedger
	notifier SubscriberNotifier
	tasks    async.Submitter
	baseURL  string
	log      *slog.Logger
}

// NewPaymentService creates a new PaymentService. baseURL is the public
// address used for the checkout success and cancel redirects.
func NewPaymentService(
	gateway PaymentGateway,
	verifier EventVerifier,
	ledger CreditLedger,
	notifier SubscriberNotifier,
	tasks async.Submitter,
	baseURL string,
	logger *slog.Logger,
) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{
		gateway:  gateway,
		verifier: verifier,
		ledger:   ledger,
		notifier: notifier,
		tasks:    tasks,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      logger,
	}
}

// CreateCheckout opens a hosted checkout for one of the credit packs.
func (s *PaymentService) CreateCheckout(ctx context.Context, in CheckoutInput) (*billing.CheckoutSession, error) {
	pack, ok := domain.CreditPackFor(in.Credit)
	if !ok {
		return nil, &domain.ValidationError{Field: "credit", Message: "Invalid credit option"}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		SubscriberID: in.SubscriberID,
		SueReason:    in.SueReason,
		Answers:      in.Answers,
		Pack:         pack,
		SuccessURL:   s.baseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    s.baseURL + "/cancel",
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	s.log.Info("checkout session created", "session_id", session.ID, "subscriber_id", in.SubscriberID, "credit", pack.Credits)
	return session, nil
}

// CheckoutStatus looks up a session after the customer returns from checkout.
func (s *PaymentService) CheckoutStatus(ctx context.Context, sessionID string) (*billing.CheckoutSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, &domain.ValidationError{Field: "session_id", Message: "is required"}
	}
	return s.gateway.GetCheckoutSession(ctx, sessionID)
}

// VerifyEvent checks the Stripe-Signature header. Errors wrap domain.ErrInvalidSignature.
func (s *PaymentService) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return s.verifier.Verify(payload, sigHeader)
}

// Dispatch schedules HandleEvent in the background. The caller acknowledges
// the event regardless of what happens afterwards.
func (s *PaymentService) Dispatch(event stripe.Event) {
	err := s.tasks.Submit("stripe:"+event.ID, func(ctx context.Context) {
		s.HandleEvent(ctx, event)
	})
	if err != nil {
		s.log.Error("payment event dropped", "event_id", event.ID, "type", event.Type, "error", err)
	}
}

// HandleEvent applies the side effects of a verified event.
func (s *PaymentService) HandleEvent(ctx context.Context, event stripe.Event) {
	switch string(event.Type) {
	case billing.EventCheckoutCompleted:
		s.handleCheckoutCompleted(ctx, event)
	case billing.EventPaymentIntentFailed:
		s.handlePaymentFailed(ctx, event)
	default:
		s.log.Debug("payment event ignored", "event_id", event.ID, "type", event.Type)
	}
}

func (s *PaymentService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) {
	session, err := billing.DecodeSession(event)
	if err != nil {
		s.log.Error("decode checkout session", "event_id", event.ID, "error", err)
		return
	}

	subscriberID := strings.TrimSpace(session.ClientReferenceID)
	if subscriberID == "" {
		s.log.Debug("checkout completed without subscriber reference", "session_id", session.ID)
		return
	}

	credits, err := s.creditAmount(ctx, session)
	if err != nil {
		s.log.Error("checkout credit amount", "session_id", session.ID, "subscriber_id", subscriberID, "error", err)
		return
	}

	balance, err := s.ledger.Increment(ctx, subscriberID, credits)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrNotFound) {
			level = slog.LevelWarn
		}
		s.log.Log(ctx, level, "credit increment failed", "subscriber_id", subscriberID, "credits", credits, "error", err)
		return
	}

	s.notifier.Send(ctx, subscriberID, domain.PaymentReceivedMessage(balance))
}

func (s *PaymentService) handlePaymentFailed(ctx context.Context, event stripe.Event) {
	pi, err := billing.DecodePaymentIntent(event)
	if err != nil {
		s.log.Error("decode payment intent", "event_id", event.ID, "error", err)
		return
	}

	subscriberID := strings.TrimSpace(pi.Metadata[domain.MetaClientReferenceID])
	if subscriberID == "" {
		s.log.Warn("payment failed without subscriber reference", "payment_intent", pi.ID)
		return
	}

	s.notifier.Send(ctx, subscriberID, domain.PaymentFailedMessage)
}

// creditAmount reads credit_amount from the payment intent, falling back to
// the session metadata when the intent has none or cannot be fetched.
func (s *PaymentService) creditAmount(ctx context.Context, session billing.SessionObject) (int, error) {
	var raw string
	if session.PaymentIntent != "" {
		md, err := s.gateway.PaymentIntentMetadata(ctx, session.PaymentIntent)
		if err != nil {
			s.log.Warn("payment intent lookup failed", "payment_intent", session.PaymentIntent, "error", err)
		} else {
			raw = md[domain.MetaCreditAmount]
		}
	}
	if raw == "" {
		raw = session.Metadata[domain.MetaCreditAmount]
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: credit_amount %q", domain.ErrInvalidInput, raw)
	}
	return n, nil
}

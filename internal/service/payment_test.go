package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/sumire/verdictrelay/internal/async"
	"github.com/sumire/verdictrelay/internal/billing"
	"github.com/sumire/verdictrelay/internal/domain"
)

type fakeGateway struct {
	CreateCheckoutSessionFunc func(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
	GetCheckoutSessionFunc    func(ctx context.Context, id string) (*billing.CheckoutSession, error)
	PaymentIntentMetadataFunc func(ctx context.Context, id string) (map[string]string, error)
	calls                     int
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	f.calls++
	return f.CreateCheckoutSessionFunc(ctx, req)
}

func (f *fakeGateway) GetCheckoutSession(ctx context.Context, id string) (*billing.CheckoutSession, error) {
	f.calls++
	return f.GetCheckoutSessionFunc(ctx, id)
}

func (f *fakeGateway) PaymentIntentMetadata(ctx context.Context, id string) (map[string]string, error) {
	f.calls++
	return f.PaymentIntentMetadataFunc(ctx, id)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Send(_ context.Context, subscriberID, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, subscriberID+":"+text)
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

const webhookSecret = "whsec_test"

type paymentFixture struct {
	svc      *PaymentService
	gateway  *fakeGateway
	profiles *fakeProfiles
	notifier *recordingNotifier
	runner   *async.Runner
}

func newPaymentFixture(t *testing.T, credits map[string]any, intentMetadata map[string]string) paymentFixture {
	t.Helper()
	gateway := &fakeGateway{
		PaymentIntentMetadataFunc: func(context.Context, string) (map[string]string, error) {
			return intentMetadata, nil
		},
	}
	profiles := newFakeProfiles(credits)
	notifier := &recordingNotifier{}
	runner := async.NewRunner(discardLogger())
	t.Cleanup(runner.Wait)

	svc := NewPaymentService(
		gateway,
		billing.NewVerifier(webhookSecret),
		NewLedgerService(profiles, 12880026, discardLogger()),
		notifier,
		runner,
		"https://relay.example/",
		discardLogger(),
	)
	return paymentFixture{svc: svc, gateway: gateway, profiles: profiles, notifier: notifier, runner: runner}
}

func eventOf(t *testing.T, typ string, object any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatal(err)
	}
	return stripe.Event{ID: "evt_test", Type: stripe.EventType(typ), Data: &stripe.EventData{Raw: raw}}
}

func TestHandleEvent_CheckoutCompletedCreditsAndNotifies(t *testing.T) {
	f := newPaymentFixture(t, map[string]any{"42": float64(2)}, map[string]string{"credit_amount": "3"})

	f.svc.HandleEvent(context.Background(), eventOf(t, billing.EventCheckoutCompleted, map[string]any{
		"id":                  "cs_1",
		"client_reference_id": "42",
		"payment_intent":      "pi_1",
	}))

	bal, _ := NewLedgerService(f.profiles, 12880026, discardLogger()).Balance(context.Background(), "42")
	if bal != 5 {
		t.Errorf("balance = %d, want 5", bal)
	}
	msgs := f.notifier.sent()
	if len(msgs) != 1 || msgs[0] != "42:✅ Payment received! Your new credits: 5" {
		t.Errorf("notifications = %v", msgs)
	}
}

func TestHandleEvent_CreditAmountFallsBackToSessionMetadata(t *testing.T) {
	f := newPaymentFixture(t, map[string]any{"42": nil}, nil)
	f.gateway.PaymentIntentMetadataFunc = func(context.Context, string) (map[string]string, error) {
		return nil, domain.ErrUpstream
	}

	f.svc.HandleEvent(context.Background(), eventOf(t, billing.EventCheckoutCompleted, map[string]any{
		"client_reference_id": "42",
		"payment_intent":      "pi_1",
		"metadata":            map[string]string{"credit_amount": "5"},
	}))

	msgs := f.notifier.sent()
	if len(msgs) != 1 || msgs[0] != "42:✅ Payment received! Your new credits: 5" {
		t.Errorf("notifications = %v", msgs)
	}
}

func TestHandleEvent_CheckoutSkips(t *testing.T) {
	tests := map[string]struct {
		credits map[string]any
		session map[string]any
		meta    map[string]string
	}{
		"missing subscriber": {
			credits: map[string]any{"42": float64(1)},
			session: map[string]any{"payment_intent": "pi_1"},
			meta:    map[string]string{"credit_amount": "3"},
		},
		"unknown subscriber": {
			credits: map[string]any{},
			session: map[string]any{"client_reference_id": "404", "payment_intent": "pi_1"},
			meta:    map[string]string{"credit_amount": "3"},
		},
		"non-numeric credit amount": {
			credits: map[string]any{"42": float64(1)},
			session: map[string]any{"client_reference_id": "42", "payment_intent": "pi_1"},
			meta:    map[string]string{"credit_amount": "three"},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newPaymentFixture(t, tt.credits, tt.meta)

			f.svc.HandleEvent(context.Background(), eventOf(t, billing.EventCheckoutCompleted, tt.session))

			if n := f.profiles.writeCount(); n != 0 {
				t.Errorf("ledger writes = %d, want 0", n)
			}
			if msgs := f.notifier.sent(); len(msgs) != 0 {
				t.Errorf("notifications = %v, want none", msgs)
			}
		})
	}
}

func TestHandleEvent_PaymentFailedNotifiesWithoutLedger(t *testing.T) {
	f := newPaymentFixture(t, map[string]any{"77": float64(1)}, nil)

	f.svc.HandleEvent(context.Background(), eventOf(t, billing.EventPaymentIntentFailed, map[string]any{
		"id":       "pi_9",
		"metadata": map[string]string{"client_reference_id": "77"},
	}))

	msgs := f.notifier.sent()
	if len(msgs) != 1 || msgs[0] != "77:⚠️ Payment failed! Try to use another card." {
		t.Errorf("notifications = %v", msgs)
	}
	if n := f.profiles.writeCount(); n != 0 || f.gateway.calls != 0 {
		t.Errorf("ledger writes = %d, gateway calls = %d; want none", n, f.gateway.calls)
	}
}

func TestHandleEvent_PaymentFailedWithoutSubscriber(t *testing.T) {
	f := newPaymentFixture(t, map[string]any{}, nil)

	f.svc.HandleEvent(context.Background(), eventOf(t, billing.EventPaymentIntentFailed, map[string]any{"id": "pi_9"}))

	if msgs := f.notifier.sent(); len(msgs) != 0 {
		t.Errorf("notifications = %v, want none", msgs)
	}
}

func TestHandleEvent_OtherTypesIgnored(t *testing.T) {
	f := newPaymentFixture(t, map[string]any{"42": float64(1)}, map[string]string{"credit_amount": "3"})

	f.svc.HandleEvent(context.Background(), eventOf(t, "customer.created", map[string]any{"id": "cus_1"}))

	if f.gateway.calls != 0 || f.profiles.writeCount() != 0 || len(f.notifier.sent()) != 0 {
		t.Error("unexpected side effects for an ignored event")
	}
}

func TestVerifyAndDispatch(t *testing.T) {
	f := newPaymentFixture(t, map[string]any{"42": float64(0)}, map[string]string{"credit_amount": "1"})
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"42","payment_intent":"pi_1"}}}`)
	header := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: webhookSecret}).Header

	event, err := f.svc.VerifyEvent(payload, header)
	if err != nil {
		t.Fatalf("VerifyEvent() error = %v", err)
	}
	f.svc.Dispatch(event)
	f.runner.Wait()

	msgs := f.notifier.sent()
	if len(msgs) != 1 || msgs[0] != "42:✅ Payment received! Your new credits: 1" {
		t.Errorf("notifications = %v", msgs)
	}
}

func TestVerifyEvent_TamperedPayload(t *testing.T) {
	f := newPaymentFixture(t, map[string]any{"42": float64(0)}, map[string]string{"credit_amount": "1"})
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"client_reference_id":"42"}}}`)
	header := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: webhookSecret}).Header
	tampered := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"client_reference_id":"666"}}}`)

	_, err := f.svc.VerifyEvent(tampered, header)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("VerifyEvent() error = %v, want ErrInvalidSignature", err)
	}
	if f.gateway.calls != 0 || f.profiles.writeCount() != 0 || len(f.notifier.sent()) != 0 {
		t.Error("side effects after a rejected signature")
	}
}

func TestCreateCheckout(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)
	var got billing.CheckoutRequest
	f.gateway.CreateCheckoutSessionFunc = func(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
		got = req
		return &billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
	}

	s, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{SubscriberID: "42", SueReason: "noise", Credit: "5"})
	if err != nil {
		t.Fatalf("CreateCheckout() error = %v", err)
	}
	if s.URL != "https://checkout.stripe.com/c/pay/cs_1" {
		t.Errorf("url = %q", s.URL)
	}
	if got.Pack.AmountCents != 1200 || got.Pack.ProductName != "Five Credits Purchase" {
		t.Errorf("pack = %+v", got.Pack)
	}
	if got.SuccessURL != "https://relay.example/success?session_id={CHECKOUT_SESSION_ID}" || got.CancelURL != "https://relay.example/cancel" {
		t.Errorf("redirects = %q, %q", got.SuccessURL, got.CancelURL)
	}
}

func TestCreateCheckout_InvalidCredit(t *testing.T) {
	f := newPaymentFixture(t, nil, nil)

	for _, credit := range []string{"", "2", "10", "one"} {
		_, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{SubscriberID: "42", Credit: credit})
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) || vErr.Message != "Invalid credit option" {
			t.Errorf("CreateCheckout(%q) error = %v", credit, err)
		}
	}
	if f.gateway.calls != 0 {
		t.Errorf("gateway calls = %d, want 0", f.gateway.calls)
	}
}

package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v82"

	"github.com/sumire/verdictrelay/internal/billing"
	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/service"
)

const webhookBodyLimit = 1024 * 1024 // 1MiB

// PaymentFlow is the payment API consumed by PaymentHandler.
type PaymentFlow interface {
	CreateCheckout(ctx context.Context, in service.CheckoutInput) (*billing.CheckoutSession, error)
	CheckoutStatus(ctx context.Context, sessionID string) (*billing.CheckoutSession, error)
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
	Dispatch(event stripe.Event)
}

// PaymentHandler handles checkout and Stripe webhook endpoints.
type PaymentHandler struct {
	payments PaymentFlow
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments PaymentFlow) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createCheckoutRequest struct {
	ClientReferenceID string `json:"client_reference_id"`
	SueReason         string `json:"sue_reason"`
	Answer1           string `json:"answer_1"`
	Answer2           string `json:"answer_2"`
	Answer3           string `json:"answer_3"`
	Answer4           string `json:"answer_4"`
	Credit            string `json:"credit"`
}

// CreateCheckoutSession opens a Stripe checkout for a credit pack.
func (h *PaymentHandler) CreateCheckoutSession(c echo.Context) error {
	var req createCheckoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.payments.CreateCheckout(c.Request().Context(), service.CheckoutInput{
		SubscriberID: req.ClientReferenceID,
		SueReason:    req.SueReason,
		Answers:      [4]string{req.Answer1, req.Answer2, req.Answer3, req.Answer4},
		Credit:       req.Credit,
	})
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{"url": session.URL})
}

// Success reports the session the customer returned with.
func (h *PaymentHandler) Success(c echo.Context) error {
	session, err := h.payments.CheckoutStatus(c.Request().Context(), c.QueryParam("session_id"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{
		"session_id":     session.ID,
		"status":         session.Status,
		"payment_status": session.PaymentStatus,
	})
}

// Cancel is where Stripe sends customers who abandon checkout.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	return JSON(c, http.StatusOK, map[string]string{"status": "canceled"})
}

// Webhook verifies a Stripe event, acknowledges it and hands it to the
// background runner. The acknowledgement does not depend on the outcome.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, webhookBodyLimit)
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("%w: read webhook body: %v", domain.ErrInvalidInput, err)
	}

	event, err := h.payments.VerifyEvent(payload, req.Header.Get("Stripe-Signature"))
	if err != nil {
		slog.Warn("webhook rejected", "error", err)
		return err
	}

	h.payments.Dispatch(event)
	slog.Info("webhook accepted", "event_id", event.ID, "type", event.Type)
	return JSON(c, http.StatusOK, map[string]bool{"received": true})
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/manychat"
)

const creditsField = "credits"

// SubscriberStore reads and writes subscriber custom fields.
type SubscriberStore interface {
	GetSubscriber(ctx context.Context, subscriberID string) (*manychat.Subscriber, error)
	SetCustomField(ctx context.Context, subscriberID string, fieldID int64, fieldName string, value any) error
}

// LedgerService keeps the credit balance stored on the subscriber profile.
// Increment is a plain read-modify-write: concurrent increments for the same
// subscriber can lose an update.
type LedgerService struct {
	profiles SubscriberStore
	fieldID  int64
	log      *slog.Logger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(profiles SubscriberStore, fieldID int64, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{profiles: profiles, fieldID: fieldID, log: logger}
}

// Balance returns the current credits, 0 when the field is absent or not a number.
func (s *LedgerService) Balance(ctx context.Context, subscriberID string) (int, error) {
	if strings.TrimSpace(subscriberID) == "" {
		return 0, &domain.ValidationError{Field: "subscriber_id", Message: "is required"}
	}

	sub, err := s.profiles.GetSubscriber(ctx, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("read credits: %w", err)
	}
	field, ok := sub.Field(creditsField)
	if !ok {
		return 0, nil
	}
	return creditValue(field.Value), nil
}

// Increment adds delta to the balance and returns the new value.
// An unknown subscriber yields domain.ErrNotFound and nothing is written.
func (s *LedgerService) Increment(ctx context.Context, subscriberID string, delta int) (int, error) {
	current, err := s.Balance(ctx, subscriberID)
	if err != nil {
		return 0, err
	}

	next := current + delta
	if err := s.profiles.SetCustomField(ctx, subscriberID, s.fieldID, creditsField, next); err != nil {
		return 0, fmt.Errorf("write credits: %w", err)
	}

	s.log.Info("credits updated", "subscriber_id", subscriberID, "from", current, "to", next)
	return next, nil
}

func creditValue(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

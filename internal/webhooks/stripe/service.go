// Package stripewebhook reconciles order payment status from Stripe events.
package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
	"github.com/angelmondragon/craftcart-backend/pkg/logger"
	"github.com/angelmondragon/craftcart-backend/pkg/metrics"
)

type paymentStatusWriter interface {
	UpdatePaymentStatusByIntent(ctx context.Context, intentID string, status enums.PaymentStatus) (int64, error)
}

type ServiceParams struct {
	Orders  paymentStatusWriter
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
}

// Service is stateless: every event maps to one idempotent field update.
type Service struct {
	orders  paymentStatusWriter
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	return &Service{orders: params.Orders, logg: params.Logger, metrics: params.Metrics}, nil
}

// HandleEvent applies a verified event. Events that match no order succeed:
// the webhook may arrive before checkout persisted the order.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var status enums.PaymentStatus
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		status = enums.PaymentStatusCompleted
	case stripe.EventTypePaymentIntentPaymentFailed:
		status = enums.PaymentStatusFailed
	default:
		s.metrics.IncWebhook(string(event.Type), metrics.OutcomeIgnored)
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	rows, err := s.orders.UpdatePaymentStatusByIntent(ctx, intent.ID, status)
	if err != nil {
		s.metrics.IncWebhook(string(event.Type), metrics.OutcomeFailure)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}
	s.metrics.IncWebhook(string(event.Type), metrics.OutcomeSuccess)
	s.metrics.AddReconciled(rows)

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":          event.ID,
			"event_type":        string(event.Type),
			"payment_intent_id": intent.ID,
			"payment_status":    string(status),
			"orders_updated":    rows,
		})
		s.logg.Info(logCtx, "stripe payment reconciled")
	}
	return nil
}

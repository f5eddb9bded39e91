package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/craftcart-backend/api/responses"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
	"github.com/angelmondragon/craftcart-backend/pkg/logger"
	"github.com/angelmondragon/craftcart-backend/pkg/metrics"
)

// maxWebhookBody bounds the payload read before signature verification.
const maxWebhookBody = 1 << 20

type webhookAck struct {
	Received bool `json:"received"`
}

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeEventGuard interface {
	Claim(ctx context.Context, event *stripe.Event) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type signatureVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (*stripe.Event, error)
}

// StripeWebhook verifies and reconciles Stripe payment events. The guard is
// optional; without it redeliveries still converge because updates are
// idempotent.
func StripeWebhook(svc StripeWebhookService, verifier signatureVerifier, guard stripeEventGuard, m *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "stripe webhooks not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := verifier.VerifyWebhook(payload, sigHeader)
		if err != nil {
			m.IncWebhook("unverified", metrics.OutcomeFailure)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
		}

		if guard != nil {
			claimed, err := guard.Claim(ctx, event)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event"))
				return
			}
			if !claimed {
				m.IncWebhook(string(event.Type), metrics.OutcomeReplay)
				responses.WriteJSON(w, http.StatusOK, webhookAck{Received: true})
				return
			}
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			if guard != nil {
				if relErr := guard.Release(ctx, event.ID); relErr != nil && logg != nil {
					logg.Error(ctx, "stripe_webhook.release_failed", relErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteJSON(w, http.StatusOK, webhookAck{Received: true})
	}
}

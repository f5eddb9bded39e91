// Package payments talks to the card gateway: it creates intents priced from
// the live cart, verifies intents at checkout and authenticates webhooks.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/craftcart-backend/internal/pricing"
	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
	"github.com/angelmondragon/craftcart-backend/pkg/metrics"
	stripeclient "github.com/angelmondragon/craftcart-backend/pkg/stripe"
)

// OwnerMetadataKey tags every intent with the user it was created for.
const OwnerMetadataKey = "owner_id"

// Gateway is the subset of the Stripe client used here.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, in stripeclient.CreateIntentParams) (*stripe.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

type cartReader interface {
	GetOrCreate(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error)
}

// Service is the payment gateway client used by checkout and the HTTP layer.
type Service interface {
	CreateIntent(ctx context.Context, ownerID uuid.UUID, idempotencyKey string) (*IntentDTO, error)
	RetrieveAndVerify(ctx context.Context, intentID string, expectedMinor int64, ownerID uuid.UUID) (*stripe.PaymentIntent, error)
	VerifyWebhook(payload []byte, signatureHeader string) (*stripe.Event, error)
}

// IntentDTO is handed to the client so it can confirm the card payment.
type IntentDTO struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Amount          decimal.Decimal `json:"amount"`
	AmountMinor     int64           `json:"amountMinor"`
	Currency        string          `json:"currency"`
}

// ServiceParams groups the payment service dependencies. Gateway may be nil
// when Stripe is not configured; every call then fails with a configuration
// error instead of the service refusing to start.
type ServiceParams struct {
	Gateway  Gateway
	Carts    cartReader
	Products pricing.ProductLoader
	Shipping decimal.Decimal
	Currency string
	Metrics  *metrics.PaymentMetrics
}

type service struct {
	gateway  Gateway
	carts    cartReader
	products pricing.ProductLoader
	shipping decimal.Decimal
	currency string
	metrics  *metrics.PaymentMetrics
}

// NewService constructs the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, errors.New("cart reader required")
	}
	if params.Products == nil {
		return nil, errors.New("product loader required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "gbp"
	}
	return &service{
		gateway:  params.Gateway,
		carts:    params.Carts,
		products: params.Products,
		shipping: params.Shipping,
		currency: currency,
		metrics:  params.Metrics,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, ownerID uuid.UUID, idempotencyKey string) (*IntentDTO, error) {
	if s.gateway == nil {
		return nil, errNotConfigured()
	}
	cart, err := s.carts.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	quote, err := pricing.Build(ctx, s.products, pricing.LinesFromCart(cart), s.shipping)
	if err != nil {
		return nil, err
	}
	if !quote.CardAllowed {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "card payment is not available for every item in the cart")
	}
	amount := quote.MinorUnits()
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive for card payments")
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, stripeclient.CreateIntentParams{
		AmountMinor: amount,
		Currency:    s.currency,
		Metadata: map[string]string{
			OwnerMetadataKey: ownerID.String(),
			"cart_id":        cart.ID.String(),
			"cart_version":   fmt.Sprintf("%d", cart.Version),
		},
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		s.metrics.IncIntent(metrics.OutcomeFailure)
		return nil, mapGatewayError(err, "create payment intent")
	}
	s.metrics.IncIntent(metrics.OutcomeSuccess)

	return &IntentDTO{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          quote.Total,
		AmountMinor:     amount,
		Currency:        s.currency,
	}, nil
}

// RetrieveAndVerify accepts an intent only if it succeeded, belongs to ownerID
// and charged exactly expectedMinor. Intents without an owner tag predate the
// tagging and are accepted.
func (s *service) RetrieveAndVerify(ctx context.Context, intentID string, expectedMinor int64, ownerID uuid.UUID) (*stripe.PaymentIntent, error) {
	if s.gateway == nil {
		return nil, errNotConfigured()
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	intent, err := s.gateway.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "payment intent not found")
		}
		return nil, mapGatewayError(err, "retrieve payment intent")
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment has not succeeded").
			WithDetails(map[string]any{"status": string(intent.Status)})
	}
	if owner, ok := intent.Metadata[OwnerMetadataKey]; ok && owner != "" && owner != ownerID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment intent belongs to another user")
	}
	if intent.Amount != expectedMinor {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment amount does not match order total").
			WithDetails(map[string]any{"expected": expectedMinor, "actual": intent.Amount})
	}
	if intent.Currency != "" && !strings.EqualFold(string(intent.Currency), s.currency) {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment currency does not match").
			WithDetails(map[string]any{"expected": s.currency, "actual": string(intent.Currency)})
	}
	return intent, nil
}

// VerifyWebhook authenticates a webhook body exactly as received.
func (s *service) VerifyWebhook(payload []byte, signatureHeader string) (*stripe.Event, error) {
	if s.gateway == nil {
		return nil, errNotConfigured()
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	event, err := s.gateway.ConstructEvent(payload, signatureHeader)
	if err != nil {
		if stripeclient.IsConfigurationError(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "webhook secret not configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook signature")
	}
	return &event, nil
}

func errNotConfigured() error {
	return pkgerrors.New(pkgerrors.CodeConfiguration, "card payments are not configured")
}

func mapGatewayError(err error, action string) error {
	if stripeclient.IsConfigurationError(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, action)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/craftcart-backend/pkg/config"
	"github.com/angelmondragon/craftcart-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific metadata. It only exposes
// the three calls checkout needs: create intent, retrieve intent and verify a
// webhook signature.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
	currency      string
}

// CreateIntentParams describes a card payment to be authorised by the client.
type CreateIntentParams struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// NewClient initializes Stripe with the configured secrets and env. A missing
// webhook secret is tolerated here and reported when a webhook arrives.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger, opts ...stripe.ClientOption) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	client := &Client{
		api:           stripe.NewClient(apiKey, opts...),
		environment:   env,
		signingSecret: strings.TrimSpace(cfg.WebhookSecret),
		currency:      cfg.NormalizedCurrency(),
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s, %s)", env, client.currency))
	}
	return client, nil
}

// NewWebhookVerifier returns a client that can only verify webhook signatures.
// It is used when no API key is configured but events must still be accepted.
func NewWebhookVerifier(secret string) *Client {
	return &Client{signingSecret: strings.TrimSpace(secret)}
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Currency is the ISO currency every intent is created in.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// CreatePaymentIntent creates an intent with automatic payment methods enabled.
func (c *Client) CreatePaymentIntent(ctx context.Context, in CreateIntentParams) (*stripe.PaymentIntent, error) {
	if c == nil || c.api == nil {
		return nil, errAPIKeyRequired
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = c.currency
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(in.AmountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	return c.api.V1PaymentIntents.Create(ctx, params)
}

// RetrievePaymentIntent fetches the current state of an intent.
func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if c == nil || c.api == nil {
		return nil, errAPIKeyRequired
	}
	return c.api.V1PaymentIntents.Retrieve(ctx, id, nil)
}

// ConstructEvent verifies the signature over the exact bytes received and
// decodes the event. Events pinned to another API version are accepted.
func (c *Client) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	if c == nil || c.signingSecret == "" {
		return stripe.Event{}, errSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, signatureHeader, c.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// CanVerifyWebhooks reports whether a signing secret is configured.
func (c *Client) CanVerifyWebhooks() bool {
	return c != nil && c.signingSecret != ""
}

// CanCharge reports whether an API key is configured.
func (c *Client) CanCharge() bool {
	return c != nil && c.api != nil
}

// IsConfigurationError reports whether err came from missing Stripe secrets.
func IsConfigurationError(err error) bool {
	return errors.Is(err, errAPIKeyRequired) || errors.Is(err, errSecretRequired)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}

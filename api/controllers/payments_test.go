package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/craftcart-backend/api/middleware"
	"github.com/angelmondragon/craftcart-backend/internal/payments"
	"github.com/angelmondragon/craftcart-backend/internal/products"
	"github.com/angelmondragon/craftcart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
)

type stubPayments struct {
	key string
	err error
}

func (s *stubPayments) CreateIntent(ctx context.Context, ownerID uuid.UUID, key string) (*payments.IntentDTO, error) {
	s.key = key
	if s.err != nil {
		return nil, s.err
	}
	return &payments.IntentDTO{
		ClientSecret:    "pi_1_secret",
		PaymentIntentID: "pi_1",
		Amount:          decimal.RequireFromString("31.97"),
		AmountMinor:     3197,
		Currency:        "gbp",
	}, nil
}

func (s *stubPayments) RetrieveAndVerify(ctx context.Context, id string, minor int64, ownerID uuid.UUID) (*stripe.PaymentIntent, error) {
	return nil, errors.New("not used")
}

func (s *stubPayments) VerifyWebhook(payload []byte, header string) (*stripe.Event, error) {
	return nil, errors.New("not used")
}

func TestPaymentsCreateIntent(t *testing.T) {
	svc := &stubPayments{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/create-intent", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req.Header.Set(middleware.IdempotencyHeader, "abc")
	rec := httptest.NewRecorder()

	PaymentsCreateIntent(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "abc", svc.key)
	require.Contains(t, rec.Body.String(), `"amountMinor":3197`)
	require.Contains(t, rec.Body.String(), `"clientSecret":"pi_1_secret"`)
}

func TestPaymentsCreateIntentErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"empty cart", pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"), http.StatusBadRequest},
		{"card disabled", pkgerrors.New(pkgerrors.CodePolicyViolation, "card not allowed"), http.StatusUnprocessableEntity},
		{"not configured", pkgerrors.New(pkgerrors.CodeConfiguration, "card payments are not configured"), http.StatusInternalServerError},
		{"gateway down", pkgerrors.New(pkgerrors.CodeDependency, "create intent"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/create-intent", nil)
			req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
			rec := httptest.NewRecorder()

			PaymentsCreateIntent(&stubPayments{err: tc.err}, nil).ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestPaymentsCreateIntentRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/create-intent", nil)
	rec := httptest.NewRecorder()

	PaymentsCreateIntent(&stubPayments{}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubProducts struct {
	err error
}

func (s stubProducts) PaymentOptions(ctx context.Context, id uuid.UUID) (*products.PaymentOptionsDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &products.PaymentOptionsDTO{ProductID: id, CODEnabled: true, StripeEnabled: true}, nil
}

func TestProductPaymentOptions(t *testing.T) {
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id.String()+"/payment-options", nil), "productId", id.String())
	rec := httptest.NewRecorder()

	ProductPaymentOptions(stubProducts{}, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"codEnabled":true`)
}

func TestProductPaymentOptionsNotFound(t *testing.T) {
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", id.String())
	rec := httptest.NewRecorder()

	ProductPaymentOptions(stubProducts{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "test"

	rec := httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": stubPinger{}, "redis": nil}, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-CraftCart-Env"))

	rec = httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": stubPinger{err: errors.New("down")}}, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthLive(&config.Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"live"`)
}

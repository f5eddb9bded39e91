package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
	stripeclient "github.com/angelmondragon/craftcart-backend/pkg/stripe"
)

type stubGateway struct {
	created   []stripeclient.CreateIntentParams
	intent    *stripe.PaymentIntent
	createErr error
	getErr    error
	event     stripe.Event
	eventErr  error
}

func (s *stubGateway) CreatePaymentIntent(ctx context.Context, in stripeclient.CreateIntentParams) (*stripe.PaymentIntent, error) {
	s.created = append(s.created, in)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &stripe.PaymentIntent{ID: "pi_new", ClientSecret: "pi_new_secret", Amount: in.AmountMinor}, nil
}

func (s *stubGateway) RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.intent, nil
}

func (s *stubGateway) ConstructEvent(payload []byte, header string) (stripe.Event, error) {
	return s.event, s.eventErr
}

type stubCarts struct {
	cart *models.Cart
}

func (s stubCarts) GetOrCreate(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	return s.cart, nil
}

type stubProducts struct {
	rows []models.Product
}

func (s stubProducts) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return s.rows, nil
}

func flag(v bool) *bool { return &v }

func newPaymentsService(t *testing.T, gw Gateway, cart *models.Cart, rows []models.Product) Service {
	t.Helper()
	params := ServiceParams{
		Carts:    stubCarts{cart: cart},
		Products: stubProducts{rows: rows},
		Shipping: decimal.RequireFromString("5.99"),
		Currency: "GBP",
	}
	if gw != nil {
		params.Gateway = gw
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func mugCart(owner uuid.UUID, mug models.Product, qty int) *models.Cart {
	return &models.Cart{
		ID:      uuid.New(),
		OwnerID: owner,
		Version: 4,
		Items:   []models.CartItem{{ID: uuid.New(), ProductID: mug.ID, Quantity: qty}},
	}
}

func TestCreateIntentUsesLiveTotal(t *testing.T) {
	owner := uuid.New()
	mug := models.Product{ID: uuid.New(), Price: decimal.RequireFromString("12.99")}
	gw := &stubGateway{}
	svc := newPaymentsService(t, gw, mugCart(owner, mug, 2), []models.Product{mug})

	dto, err := svc.CreateIntent(context.Background(), owner, "key-1")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if dto.AmountMinor != 3197 {
		t.Fatalf("expected 3197 minor units, got %d", dto.AmountMinor)
	}
	if dto.ClientSecret != "pi_new_secret" || dto.PaymentIntentID != "pi_new" {
		t.Fatalf("unexpected intent dto %+v", dto)
	}
	if len(gw.created) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gw.created))
	}
	got := gw.created[0]
	if got.Currency != "gbp" || got.IdempotencyKey != "key-1" {
		t.Fatalf("unexpected params %+v", got)
	}
	if got.Metadata[OwnerMetadataKey] != owner.String() {
		t.Fatalf("owner tag missing: %+v", got.Metadata)
	}
}

func TestCreateIntentRejectsEmptyCart(t *testing.T) {
	owner := uuid.New()
	gw := &stubGateway{}
	svc := newPaymentsService(t, gw, &models.Cart{ID: uuid.New(), OwnerID: owner}, nil)

	_, err := svc.CreateIntent(context.Background(), owner, "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(gw.created) != 0 {
		t.Fatalf("gateway must not be called for an empty cart")
	}
}

func TestCreateIntentRejectsCardDisabledItem(t *testing.T) {
	owner := uuid.New()
	mug := models.Product{ID: uuid.New(), Price: decimal.RequireFromString("12.99"), StripeEnabled: flag(false)}
	gw := &stubGateway{}
	svc := newPaymentsService(t, gw, mugCart(owner, mug, 1), []models.Product{mug})

	_, err := svc.CreateIntent(context.Background(), owner, "")
	if !pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
}

func TestCreateIntentWithoutGateway(t *testing.T) {
	owner := uuid.New()
	mug := models.Product{ID: uuid.New(), Price: decimal.RequireFromString("12.99")}
	svc := newPaymentsService(t, nil, mugCart(owner, mug, 1), []models.Product{mug})

	_, err := svc.CreateIntent(context.Background(), owner, "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRetrieveAndVerify(t *testing.T) {
	owner := uuid.New()
	succeeded := func(amount int64, meta map[string]string) *stripe.PaymentIntent {
		return &stripe.PaymentIntent{
			ID:       "pi_1",
			Status:   stripe.PaymentIntentStatusSucceeded,
			Amount:   amount,
			Currency: stripe.Currency("gbp"),
			Metadata: meta,
		}
	}

	cases := []struct {
		name   string
		gw     *stubGateway
		expect pkgerrors.Code
	}{
		{name: "ok", gw: &stubGateway{intent: succeeded(5696, map[string]string{OwnerMetadataKey: owner.String()})}},
		{name: "untagged accepted", gw: &stubGateway{intent: succeeded(5696, nil)}},
		{name: "one penny short", gw: &stubGateway{intent: succeeded(5695, nil)}, expect: pkgerrors.CodePaymentVerification},
		{name: "other owner", gw: &stubGateway{intent: succeeded(5696, map[string]string{OwnerMetadataKey: uuid.NewString()})}, expect: pkgerrors.CodeForbidden},
		{name: "not succeeded", gw: &stubGateway{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresPaymentMethod, Amount: 5696}}, expect: pkgerrors.CodePaymentVerification},
		{name: "wrong currency", gw: &stubGateway{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 5696, Currency: stripe.Currency("usd")}}, expect: pkgerrors.CodePaymentVerification},
		{name: "unknown intent", gw: &stubGateway{getErr: &stripe.Error{HTTPStatusCode: http.StatusNotFound}}, expect: pkgerrors.CodePaymentVerification},
		{name: "gateway down", gw: &stubGateway{getErr: errors.New("timeout")}, expect: pkgerrors.CodeDependency},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newPaymentsService(t, tc.gw, &models.Cart{}, nil)
			intent, err := svc.RetrieveAndVerify(context.Background(), "pi_1", 5696, owner)
			if tc.expect == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if intent.ID != "pi_1" {
					t.Fatalf("unexpected intent %+v", intent)
				}
				return
			}
			if !pkgerrors.IsCode(err, tc.expect) {
				t.Fatalf("expected %s, got %v", tc.expect, err)
			}
		})
	}
}

func TestRetrieveAndVerifyRequiresIntentID(t *testing.T) {
	svc := newPaymentsService(t, &stubGateway{}, &models.Cart{}, nil)
	_, err := svc.RetrieveAndVerify(context.Background(), "  ", 100, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyWebhook(t *testing.T) {
	svc := newPaymentsService(t, &stubGateway{event: stripe.Event{ID: "evt_1", Type: "payment_intent.succeeded"}}, &models.Cart{}, nil)
	event, err := svc.VerifyWebhook([]byte(`{}`), "t=1,v1=abc")
	if err != nil {
		t.Fatalf("verify webhook: %v", err)
	}
	if event.ID != "evt_1" {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, err := svc.VerifyWebhook([]byte(`{}`), ""); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing header, got %v", err)
	}

	bad := newPaymentsService(t, &stubGateway{eventErr: errors.New("signature mismatch")}, &models.Cart{}, nil)
	if _, err := bad.VerifyWebhook([]byte(`{}`), "t=1,v1=abc"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad signature, got %v", err)
	}

	unconfigured := newPaymentsService(t, stripeclient.NewWebhookVerifier(""), &models.Cart{}, nil)
	if _, err := unconfigured.VerifyWebhook([]byte(`{}`), "t=1,v1=abc"); !pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

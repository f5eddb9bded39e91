// Package checkout turns the owner's live cart into an immutable order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/craftcart-backend/internal/cart"
	"github.com/angelmondragon/craftcart-backend/internal/orders"
	"github.com/angelmondragon/craftcart-backend/internal/pricing"
	"github.com/angelmondragon/craftcart-backend/pkg/db"
	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
	"github.com/angelmondragon/craftcart-backend/pkg/metrics"
	"github.com/angelmondragon/craftcart-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentVerifier interface {
	RetrieveAndVerify(ctx context.Context, intentID string, expectedMinor int64, ownerID uuid.UUID) (*stripe.PaymentIntent, error)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, ownerID uuid.UUID, input CheckoutInput) (*models.Order, error)
}

// CheckoutInput captures what the buyer submits at checkout.
type CheckoutInput struct {
	DeliveryAddress types.DeliveryAddress
	PaymentMethod   PaymentMethodInput
	IdempotencyKey  string
}

// PaymentMethodInput names the method. Anything other than COD is a card
// payment and must carry the intent the client confirmed.
type PaymentMethodInput struct {
	Type            string
	PaymentIntentID string
}

// ServiceParams groups the checkout dependencies.
type ServiceParams struct {
	Tx       txRunner
	Carts    cart.CartRepository
	Orders   orders.Repository
	Products pricing.ProductLoader
	Payments paymentVerifier
	Shipping decimal.Decimal
	Currency string
	Metrics  *metrics.PaymentMetrics
}

type service struct {
	tx       txRunner
	carts    cart.CartRepository
	orders   orders.Repository
	products pricing.ProductLoader
	payments paymentVerifier
	shipping decimal.Decimal
	currency string
	metrics  *metrics.PaymentMetrics
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if params.Shipping.IsNegative() {
		return nil, fmt.Errorf("shipping cost must not be negative")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "gbp"
	}
	return &service{
		tx:       params.Tx,
		carts:    params.Carts,
		orders:   params.Orders,
		products: params.Products,
		payments: params.Payments,
		shipping: params.Shipping,
		currency: currency,
		metrics:  params.Metrics,
		now:      time.Now,
	}, nil
}

func (s *service) Execute(ctx context.Context, ownerID uuid.UUID, input CheckoutInput) (order *models.Order, err error) {
	started := time.Now()
	method := enums.ClassifyPaymentMethod(input.PaymentMethod.Type)
	replayed := false
	defer func() {
		s.observe(method, replayed, err, time.Since(started))
	}()

	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	intentID := strings.TrimSpace(input.PaymentMethod.PaymentIntentID)
	if method == enums.PaymentMethodCard && intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required for card payments")
	}

	if existing, err := s.findReplay(ctx, ownerID, input.IdempotencyKey, method, intentID); err != nil || existing != nil {
		replayed = existing != nil
		return existing, err
	}

	address := input.DeliveryAddress.Trimmed()
	if address.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deliveryAddress is required")
	}

	record, err := s.carts.FindByOwner(ctx, ownerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if record.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	quote, err := pricing.Build(ctx, s.products, pricing.LinesFromCart(record), s.shipping)
	if err != nil {
		return nil, err
	}

	paymentStatus := enums.PaymentStatusPending
	switch method {
	case enums.PaymentMethodCOD:
		if !quote.CODAllowed {
			return nil, policyViolation(method, quote)
		}
	default:
		if !quote.CardAllowed {
			return nil, policyViolation(method, quote)
		}
		if _, err := s.payments.RetrieveAndVerify(ctx, intentID, quote.MinorUnits(), ownerID); err != nil {
			return nil, err
		}
		paymentStatus = enums.PaymentStatusCompleted
	}

	draft := s.buildOrder(ownerID, quote, address, input.PaymentMethod.Type, intentID, paymentStatus, input.IdempotencyKey)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.orders.WithTx(tx).Create(ctx, draft); err != nil {
			return err
		}
		cleared, err := s.carts.WithTx(tx).ClearIfVersion(ctx, record.ID, record.Version)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if !cleared {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart changed during checkout")
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// A concurrent request with the same key or intent committed first.
			if existing, lookupErr := s.findReplay(ctx, ownerID, input.IdempotencyKey, method, intentID); lookupErr == nil && existing != nil {
				replayed = true
				return existing, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists for this checkout")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	created, err := s.orders.FindByID(ctx, draft.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return created, nil
}

// findReplay returns the order a previous identical checkout produced. A card
// intent is never spent twice: if it already paid for another owner's order
// the request is refused.
func (s *service) findReplay(ctx context.Context, ownerID uuid.UUID, key string, method enums.PaymentMethodType, intentID string) (*models.Order, error) {
	if key = strings.TrimSpace(key); key != "" {
		existing, err := s.orders.FindByOwnerAndKey(ctx, ownerID, key)
		switch {
		case err == nil:
			return existing, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
		}
	}
	if method != enums.PaymentMethodCard || intentID == "" {
		return nil, nil
	}
	existing, err := s.orders.FindByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment intent reuse")
	}
	if existing.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment intent already used")
	}
	return existing, nil
}

func (s *service) buildOrder(
	ownerID uuid.UUID,
	quote *pricing.Quote,
	address types.DeliveryAddress,
	label string,
	intentID string,
	paymentStatus enums.PaymentStatus,
	key string,
) *models.Order {
	now := s.now().UTC()
	method := enums.ClassifyPaymentMethod(label)
	order := &models.Order{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		Items:              make([]models.OrderItem, 0, len(quote.Lines)),
		SubtotalAmount:     quote.Subtotal,
		ShippingAmount:     quote.Shipping,
		TotalAmount:        quote.Total,
		Currency:           s.currency,
		DeliveryAddress:    address,
		PaymentMethodType:  method,
		PaymentMethodLabel: strings.TrimSpace(label),
		PaymentStatus:      paymentStatus,
		Status:             enums.OrderStatusPending,
		StatusHistory:      models.StatusHistory{{Status: enums.OrderStatusPending, At: now}},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if method == enums.PaymentMethodCard {
		order.PaymentIntentID = &intentID
	}
	if key = strings.TrimSpace(key); key != "" {
		order.IdempotencyKey = &key
	}
	for _, line := range quote.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
		})
	}
	return order
}

func policyViolation(method enums.PaymentMethodType, quote *pricing.Quote) error {
	var blocked []string
	for _, line := range quote.Lines {
		allowed := line.Options.StripeEnabled
		if method == enums.PaymentMethodCOD {
			allowed = line.Options.CODEnabled
		}
		if !allowed {
			blocked = append(blocked, line.Product.ID.String())
		}
	}
	return pkgerrors.New(pkgerrors.CodePolicyViolation, fmt.Sprintf("%s is not available for every item in the cart", method)).
		WithDetails(map[string]any{"paymentMethod": string(method), "productIds": blocked})
}

func (s *service) observe(method enums.PaymentMethodType, replayed bool, err error, took time.Duration) {
	outcome := metrics.OutcomeSuccess
	code := ""
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailure
		code = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			code = string(typed.Code())
		}
	case replayed:
		outcome = metrics.OutcomeReplay
	}
	s.metrics.ObserveCheckout(string(method), outcome, code, took)
}

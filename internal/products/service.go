package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/craftcart-backend/internal/paymentoptions"
	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
)

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes the catalogue reads the storefront needs during checkout.
type Service interface {
	PaymentOptions(ctx context.Context, productID uuid.UUID) (*PaymentOptionsDTO, error)
}

// PaymentOptionsDTO is what the product page shows. It comes from the same
// resolver checkout enforces with.
type PaymentOptionsDTO struct {
	ProductID     uuid.UUID `json:"productId"`
	CODEnabled    bool      `json:"codEnabled"`
	StripeEnabled bool      `json:"stripeEnabled"`
}

type service struct {
	repo productReader
}

// NewService constructs the product read service.
func NewService(repo productReader) (Service, error) {
	if repo == nil {
		return nil, errors.New("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) PaymentOptions(ctx context.Context, productID uuid.UUID) (*PaymentOptionsDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	opts := paymentoptions.Resolve(product)
	return &PaymentOptionsDTO{
		ProductID:     product.ID,
		CODEnabled:    opts.CODEnabled,
		StripeEnabled: opts.StripeEnabled,
	}, nil
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/angelmondragon/craftcart-backend/pkg/db"
	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
)

// maxMutationAttempts bounds retries when a concurrent writer moves the cart
// version between our read and our write.
const maxMutationAttempts = 3

var errVersionMoved = errors.New("cart version moved")

// Service exposes the owner's single mutable cart.
type Service interface {
	GetOrCreate(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, ownerID, productID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateItem(ctx context.Context, ownerID, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, ownerID, productID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productReader
	creating singleflight.Group
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

// GetOrCreate returns the owner's cart, creating it on first access. Concurrent
// first calls in this process share one creation; across processes the unique
// owner index decides and the loser re-reads.
func (s *service) GetOrCreate(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner id is required")
	}

	cart, err := s.repo.FindByOwner(ctx, ownerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	// The creation is shared, so it must not die with whichever caller started it.
	v, err, _ := s.creating.Do(ownerID.String(), func() (any, error) {
		return s.create(context.WithoutCancel(ctx), ownerID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Cart), nil
}

func (s *service) create(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	created, err := s.repo.Create(ctx, &models.Cart{OwnerID: ownerID})
	if err == nil {
		created.Items = []models.CartItem{}
		return created, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	existing, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart after concurrent create")
	}
	return existing, nil
}

func (s *service) AddItem(ctx context.Context, ownerID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	ref := models.RefByProduct(product)

	return s.mutate(ctx, ownerID, func(repo CartRepository, cart *models.Cart) error {
		if idx := cart.FindItem(ref); idx >= 0 {
			item := cart.Items[idx]
			return repo.UpdateItemQuantity(ctx, item.ID, item.Quantity+quantity)
		}
		return repo.InsertItem(ctx, &models.CartItem{
			CartID:            cart.ID,
			ProductID:         ref.CanonicalID(),
			Quantity:          quantity,
			UnitPriceSnapshot: decimal.NewNullDecimal(product.Price),
			AddedAt:           time.Now().UTC(),
		})
	})
}

func (s *service) UpdateItem(ctx context.Context, ownerID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	ref := models.RefByID(productID)
	return s.mutate(ctx, ownerID, func(repo CartRepository, cart *models.Cart) error {
		idx := cart.FindItem(ref)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return repo.UpdateItemQuantity(ctx, cart.Items[idx].ID, quantity)
	})
}

func (s *service) RemoveItem(ctx context.Context, ownerID, productID uuid.UUID) (*models.Cart, error) {
	ref := models.RefByID(productID)
	return s.mutate(ctx, ownerID, func(repo CartRepository, cart *models.Cart) error {
		idx := cart.FindItem(ref)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return repo.DeleteItem(ctx, cart.Items[idx].ID)
	})
}

// Clear empties the cart. Clearing an empty cart is a no-op.
func (s *service) Clear(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	cart, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return cart, nil
	}

	for attempt := 0; attempt < maxMutationAttempts; attempt++ {
		var cleared bool
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var txErr error
			cleared, txErr = s.repo.WithTx(tx).ClearIfVersion(ctx, cart.ID, cart.Version)
			return txErr
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if cleared {
			return s.reload(ctx, ownerID)
		}
		if cart, err = s.repo.FindByOwner(ctx, ownerID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
		}
		if cart.IsEmpty() {
			return cart, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is being modified concurrently")
}

// mutate runs fn against a fresh read of the cart inside a transaction that
// first claims the next version. A lost race re-reads and retries.
func (s *service) mutate(ctx context.Context, ownerID uuid.UUID, fn func(repo CartRepository, cart *models.Cart) error) (*models.Cart, error) {
	for attempt := 0; attempt < maxMutationAttempts; attempt++ {
		cart, err := s.GetOrCreate(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			ok, err := repo.BumpVersion(ctx, cart.ID, cart.Version)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionMoved
			}
			return fn(repo, cart)
		})
		switch {
		case errors.Is(err, errVersionMoved):
			continue
		case err != nil:
			if typed := pkgerrors.As(err); typed != nil {
				return nil, typed
			}
			if db.IsUniqueViolation(err, "") {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
		}
		return s.reload(ctx, ownerID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is being modified concurrently")
}

func (s *service) reload(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return cart, nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

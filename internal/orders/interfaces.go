package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	"github.com/angelmondragon/craftcart-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOwnerAndKey(ctx context.Context, ownerID uuid.UUID, key string) (*models.Order, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Order, error)
	List(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*OrderList, error)
	SaveStatus(ctx context.Context, order *models.Order) error
	UpdatePaymentStatusByIntent(ctx context.Context, intentID string, status enums.PaymentStatus) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderList is one page of an owner's orders, newest first.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

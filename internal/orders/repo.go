package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	"github.com/angelmondragon/craftcart-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its items. Ids are assigned here so the items
// can reference the order without a round trip.
func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		return nil, err
	}
	if len(order.Items) == 0 {
		return order, nil
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Omit("Product").Create(&order.Items).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDForUpdate locks the order row for the rest of the transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *repository) FindByOwnerAndKey(ctx context.Context, ownerID uuid.UUID, key string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "owner_id = ? AND idempotency_key = ?", ownerID, strings.TrimSpace(key))
}

func (r *repository) FindByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx), "payment_intent_id = ?", intentID)
}

func (r *repository) first(q *gorm.DB, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		Where(query, args...).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List pages through an owner's orders ordered by (created_at, id) descending.
func (r *repository) List(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		Where("owner_id = ?", ownerID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	page, next := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &OrderList{Orders: page, NextCursor: next}, nil
}

// SaveStatus persists Status and StatusHistory only.
func (r *repository) SaveStatus(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(order).
		Select("status", "status_history", "updated_at").
		Updates(order).Error
}

// UpdatePaymentStatusByIntent sets payment_status on every order carrying the
// intent and reports how many rows matched.
func (r *repository) UpdatePaymentStatusByIntent(ctx context.Context, intentID string, status enums.PaymentStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_intent_id = ?", intentID).
		Updates(map[string]any{
			"payment_status": string(status),
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

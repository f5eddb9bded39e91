package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one product line in a cart. UnitPriceSnapshot is the price seen
// when the item was added; it is display-only and never used to charge.
type CartItem struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID           `gorm:"column:cart_id;type:uuid;not null"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Quantity          int                 `gorm:"column:quantity;not null"`
	UnitPriceSnapshot decimal.NullDecimal `gorm:"column:unit_price_snapshot;type:numeric(12,2)"`
	AddedAt           time.Time           `gorm:"column:added_at;not null"`
	Product           *Product            `gorm:"foreignKey:ProductID"`
}

func (i CartItem) Ref() ProductRef {
	return ProductRef{ID: i.ProductID, Product: i.Product}
}

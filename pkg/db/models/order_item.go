package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem freezes the live price read at checkout.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
}

func (i OrderItem) Ref() ProductRef {
	return ProductRef{ID: i.ProductID, Product: i.Product}
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

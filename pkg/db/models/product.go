package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a listing in a store. Price is in major units and is the only
// authoritative price at checkout. A nil payment flag defers to the store.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID       uuid.UUID       `gorm:"column:store_id;type:uuid;not null"`
	Title         string          `gorm:"column:title;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CODEnabled    *bool           `gorm:"column:cod_enabled"`
	StripeEnabled *bool           `gorm:"column:stripe_enabled"`
	Store         *Store          `gorm:"foreignKey:StoreID"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

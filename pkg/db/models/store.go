package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is the seller storefront. Only the payment defaults matter to checkout;
// the record is owned and written by the catalogue service.
type Store struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID       uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	Name          string    `gorm:"column:name;not null"`
	CODEnabled    *bool     `gorm:"column:cod_enabled"`
	StripeEnabled *bool     `gorm:"column:stripe_enabled"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	"github.com/angelmondragon/craftcart-backend/pkg/types"
)

// Order is the immutable result of a checkout. Only Status, StatusHistory,
// PaymentStatus and UpdatedAt change after creation. PaymentMethodLabel keeps
// the type the buyer sent (e.g. "VISA") next to the classified type.
type Order struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID            uuid.UUID               `gorm:"column:owner_id;type:uuid;not null"`
	Items              []OrderItem             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	SubtotalAmount     decimal.Decimal         `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`
	ShippingAmount     decimal.Decimal         `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency           string                  `gorm:"column:currency;not null"`
	DeliveryAddress    types.DeliveryAddress   `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	PaymentMethodType  enums.PaymentMethodType `gorm:"column:payment_method_type;not null"`
	PaymentMethodLabel string                  `gorm:"column:payment_method_label;not null"`
	PaymentIntentID    *string                 `gorm:"column:payment_intent_id"`
	PaymentStatus      enums.PaymentStatus     `gorm:"column:payment_status;not null"`
	Status             enums.OrderStatus       `gorm:"column:status;not null"`
	StatusHistory      StatusHistory           `gorm:"column:status_history;type:jsonb;serializer:json"`
	IdempotencyKey     *string                 `gorm:"column:idempotency_key"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// StatusEntry records when an order entered a status.
type StatusEntry struct {
	Status enums.OrderStatus `json:"status"`
	At     time.Time         `json:"at"`
}

// StatusHistory is append-only.
type StatusHistory []StatusEntry

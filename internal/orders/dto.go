package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/craftcart-backend/internal/cart"
	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	"github.com/angelmondragon/craftcart-backend/pkg/enums"
	"github.com/angelmondragon/craftcart-backend/pkg/types"
)

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	OwnerID         uuid.UUID             `json:"ownerId"`
	Items           []OrderItemDTO        `json:"items"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	Shipping        decimal.Decimal       `json:"shipping"`
	Total           decimal.Decimal       `json:"total"`
	Currency        string                `json:"currency"`
	DeliveryAddress types.DeliveryAddress `json:"deliveryAddress"`
	PaymentMethod   PaymentMethodDTO      `json:"paymentMethod"`
	PaymentStatus   enums.PaymentStatus   `json:"paymentStatus"`
	Status          enums.OrderStatus     `json:"status"`
	StatusHistory   []StatusEntryDTO      `json:"statusHistory"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// OrderItemDTO is one frozen order line.
type OrderItemDTO struct {
	ProductID uuid.UUID            `json:"productId"`
	Quantity  int                  `json:"quantity"`
	Price     decimal.Decimal      `json:"price"`
	LineTotal decimal.Decimal      `json:"lineTotal"`
	Product   *cart.ProductSummary `json:"product,omitempty"`
}

type PaymentMethodDTO struct {
	Type            enums.PaymentMethodType `json:"type"`
	Label           string                  `json:"label,omitempty"`
	PaymentIntentID *string                 `json:"paymentIntentId,omitempty"`
}

type StatusEntryDTO struct {
	Status enums.OrderStatus `json:"status"`
	At     time.Time         `json:"at"`
}

// OrderListDTO wraps one page of orders plus the next page cursor.
type OrderListDTO struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// NewOrderDTO maps an order record to its API representation.
func NewOrderDTO(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		OwnerID:         o.OwnerID,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		Subtotal:        o.SubtotalAmount,
		Shipping:        o.ShippingAmount,
		Total:           o.TotalAmount,
		Currency:        o.Currency,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod: PaymentMethodDTO{
			Type:            o.PaymentMethodType,
			Label:           o.PaymentMethodLabel,
			PaymentIntentID: o.PaymentIntentID,
		},
		PaymentStatus: o.PaymentStatus,
		Status:        o.Status,
		StatusHistory: make([]StatusEntryDTO, 0, len(o.StatusHistory)),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID: item.Ref().CanonicalID(),
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: item.LineTotal(),
			Product:   cart.NewProductSummary(item.Product),
		})
	}
	for _, entry := range o.StatusHistory {
		dto.StatusHistory = append(dto.StatusHistory, StatusEntryDTO{Status: entry.Status, At: entry.At})
	}
	return dto
}

// NewOrderListDTO maps a page of orders.
func NewOrderListDTO(list *OrderList) OrderListDTO {
	dto := OrderListDTO{Orders: []OrderDTO{}}
	if list == nil {
		return dto
	}
	for i := range list.Orders {
		dto.Orders = append(dto.Orders, NewOrderDTO(&list.Orders[i]))
	}
	dto.NextCursor = list.NextCursor
	return dto
}

package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
)

// CartDTO is the API shape of a cart.
type CartDTO struct {
	ID        uuid.UUID     `json:"id"`
	OwnerID   uuid.UUID     `json:"ownerId"`
	Version   int64         `json:"version"`
	Items     []CartItemDTO `json:"items"`
	ItemCount int           `json:"itemCount"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// CartItemDTO is one cart line. Product is present when it was loaded.
type CartItemDTO struct {
	ProductID         uuid.UUID        `json:"productId"`
	Quantity          int              `json:"quantity"`
	AddedAt           time.Time        `json:"addedAt"`
	UnitPriceSnapshot *decimal.Decimal `json:"unitPriceSnapshot,omitempty"`
	Product           *ProductSummary  `json:"product,omitempty"`
}

// ProductSummary carries the live product details shown next to a line.
type ProductSummary struct {
	ID      uuid.UUID       `json:"id"`
	StoreID uuid.UUID       `json:"storeId"`
	Title   string          `json:"title"`
	Price   decimal.Decimal `json:"price"`
}

// NewCartDTO maps a cart record to its API representation.
func NewCartDTO(c *models.Cart) CartDTO {
	dto := CartDTO{Items: []CartItemDTO{}}
	if c == nil {
		return dto
	}
	dto.ID = c.ID
	dto.OwnerID = c.OwnerID
	dto.Version = c.Version
	dto.UpdatedAt = c.UpdatedAt
	for _, item := range c.Items {
		ref := item.Ref()
		line := CartItemDTO{
			ProductID: ref.CanonicalID(),
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
		if item.UnitPriceSnapshot.Valid {
			snapshot := item.UnitPriceSnapshot.Decimal
			line.UnitPriceSnapshot = &snapshot
		}
		if ref.Loaded() {
			line.Product = NewProductSummary(ref.Product)
		}
		dto.Items = append(dto.Items, line)
		dto.ItemCount += item.Quantity
	}
	return dto
}

// NewProductSummary maps a product to the summary embedded in carts and orders.
func NewProductSummary(p *models.Product) *ProductSummary {
	if p == nil {
		return nil
	}
	return &ProductSummary{ID: p.ID, StoreID: p.StoreID, Title: p.Title, Price: p.Price}
}

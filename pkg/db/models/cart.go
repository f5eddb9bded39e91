package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the single mutable basket owned by a user. Version is bumped on every
// mutation and doubles as the optimistic concurrency token for checkout.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;uniqueIndex"`
	Version   int64      `gorm:"column:version;not null;default:0"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// FindItem returns the index of the item matching ref, or -1.
func (c *Cart) FindItem(ref ProductRef) int {
	for i := range c.Items {
		if c.Items[i].Ref().Same(ref) {
			return i
		}
	}
	return -1
}

// IsEmpty reports whether the cart has nothing to check out.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

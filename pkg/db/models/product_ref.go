package models

import "github.com/google/uuid"

// ProductRef points at a product either by bare id or by a loaded record.
// Item matching always goes through CanonicalID so both shapes compare equal.
type ProductRef struct {
	ID      uuid.UUID
	Product *Product
}

// RefByID builds a reference carrying only the product id.
func RefByID(id uuid.UUID) ProductRef {
	return ProductRef{ID: id}
}

// RefByProduct builds a reference from a loaded product.
func RefByProduct(p *Product) ProductRef {
	if p == nil {
		return ProductRef{}
	}
	return ProductRef{ID: p.ID, Product: p}
}

// CanonicalID returns the product id regardless of which shape the ref has.
func (r ProductRef) CanonicalID() uuid.UUID {
	if r.Product != nil && r.Product.ID != uuid.Nil {
		return r.Product.ID
	}
	return r.ID
}

// Loaded reports whether the full product record is attached.
func (r ProductRef) Loaded() bool {
	return r.Product != nil
}

// Same reports whether both refs identify the same product.
func (r ProductRef) Same(other ProductRef) bool {
	id := r.CanonicalID()
	return id != uuid.Nil && id == other.CanonicalID()
}

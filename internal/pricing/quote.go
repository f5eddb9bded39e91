// Package pricing computes checkout totals from live product prices. Both
// intent creation and checkout go through Build so the amount charged and the
// amount verified can never drift apart.
package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/craftcart-backend/internal/paymentoptions"
	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// ProductLoader returns the requested products with their stores preloaded.
// Missing ids are simply absent from the result.
type ProductLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Line is one product and quantity to be priced.
type Line struct {
	Ref      models.ProductRef
	Quantity int
}

// PricedLine is a Line resolved against the live catalogue.
type PricedLine struct {
	Product   *models.Product
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Options   paymentoptions.Options
}

// Quote is the priced cart. CODAllowed and CardAllowed are true only when every
// line allows the method.
type Quote struct {
	Lines       []PricedLine
	Subtotal    decimal.Decimal
	Shipping    decimal.Decimal
	Total       decimal.Decimal
	CODAllowed  bool
	CardAllowed bool
}

// MinorUnits is the total in the smallest currency unit.
func (q *Quote) MinorUnits() int64 {
	return ToMinorUnits(q.Total)
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half away
// from zero. It is the only major to minor conversion in the service.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// LinesFromCart turns cart items into pricing lines.
func LinesFromCart(cart *models.Cart) []Line {
	if cart == nil {
		return nil
	}
	lines := make([]Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, Line{Ref: item.Ref(), Quantity: item.Quantity})
	}
	return lines
}

// Build prices lines against live products. The cart's price snapshots are
// never consulted.
func Build(ctx context.Context, loader ProductLoader, lines []Line, shipping decimal.Decimal) (*Quote, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if loader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product loader unavailable")
	}
	if shipping.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost must not be negative")
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.Ref.CanonicalID())
	}
	products, err := loader.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products for pricing")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	quote := &Quote{
		Lines:       make([]PricedLine, 0, len(lines)),
		Subtotal:    decimal.Zero,
		Shipping:    shipping,
		CODAllowed:  true,
		CardAllowed: true,
	}
	for _, line := range lines {
		id := line.Ref.CanonicalID()
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"productId": id})
		}
		product, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s no longer exists", id)).
				WithDetails(map[string]any{"productId": id})
		}
		if product.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product has an invalid price").
				WithDetails(map[string]any{"productId": id})
		}

		opts := paymentoptions.Resolve(product)
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))

		quote.Lines = append(quote.Lines, PricedLine{
			Product:   product,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
			LineTotal: lineTotal,
			Options:   opts,
		})
		quote.Subtotal = quote.Subtotal.Add(lineTotal)
		quote.CODAllowed = quote.CODAllowed && opts.CODEnabled
		quote.CardAllowed = quote.CardAllowed && opts.StripeEnabled
	}
	quote.Total = quote.Subtotal.Add(shipping)
	return quote, nil
}

// Package paymentoptions decides which payment methods a product accepts.
package paymentoptions

import "github.com/angelmondragon/craftcart-backend/pkg/db/models"

// Platform fallbacks used when neither the product nor its store says anything.
const (
	DefaultCODEnabled    = false
	DefaultStripeEnabled = true
)

// Options is the effective payment policy for one product. It is always derived
// on demand and never stored.
type Options struct {
	CODEnabled    bool `json:"codEnabled"`
	StripeEnabled bool `json:"stripeEnabled"`
}

// Resolve applies product override, then store default, then platform fallback,
// independently for each flag. A product whose store was not loaded skips the
// store layer.
func Resolve(product *models.Product) Options {
	var productCOD, productStripe, storeCOD, storeStripe *bool
	if product != nil {
		productCOD, productStripe = product.CODEnabled, product.StripeEnabled
		if product.Store != nil {
			storeCOD, storeStripe = product.Store.CODEnabled, product.Store.StripeEnabled
		}
	}
	return Options{
		CODEnabled:    firstSet(DefaultCODEnabled, productCOD, storeCOD),
		StripeEnabled: firstSet(DefaultStripeEnabled, productStripe, storeStripe),
	}
}

func firstSet(fallback bool, layers ...*bool) bool {
	for _, layer := range layers {
		if layer != nil {
			return *layer
		}
	}
	return fallback
}

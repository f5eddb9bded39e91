package paymentoptions

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/angelmondragon/craftcart-backend/pkg/db/models"
)

func flag(v bool) *bool { return &v }

func TestResolvePrecedence(t *testing.T) {
	cases := []struct {
		name    string
		product *models.Product
		want    Options
	}{
		{
			name:    "nothing set uses platform defaults",
			product: &models.Product{},
			want:    Options{CODEnabled: false, StripeEnabled: true},
		},
		{
			name:    "store defaults apply",
			product: &models.Product{Store: &models.Store{CODEnabled: flag(true), StripeEnabled: flag(false)}},
			want:    Options{CODEnabled: true, StripeEnabled: false},
		},
		{
			name: "product override beats store default",
			product: &models.Product{
				CODEnabled: flag(false),
				Store:      &models.Store{CODEnabled: flag(true)},
			},
			want: Options{CODEnabled: false, StripeEnabled: true},
		},
		{
			name:    "flags resolve independently",
			product: &models.Product{StripeEnabled: flag(false), Store: &models.Store{CODEnabled: flag(true)}},
			want:    Options{CODEnabled: true, StripeEnabled: false},
		},
		{
			name:    "unloaded store is skipped",
			product: &models.Product{CODEnabled: nil},
			want:    Options{CODEnabled: false, StripeEnabled: true},
		},
		{
			name: "nil product",
			want: Options{CODEnabled: false, StripeEnabled: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.product); got != tc.want {
				t.Fatalf("Resolve() = %+v want %+v", got, tc.want)
			}
		})
	}
}

// genFlag yields nil, true or false.
func genFlag() gopter.Gen {
	return gen.IntRange(0, 2).Map(func(v int) *bool {
		switch v {
		case 1:
			return flag(true)
		case 2:
			return flag(false)
		default:
			return nil
		}
	})
}

func TestResolveProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a set product flag always wins", prop.ForAll(
		func(productCOD, storeCOD *bool) bool {
			p := &models.Product{CODEnabled: productCOD, Store: &models.Store{CODEnabled: storeCOD}}
			got := Resolve(p).CODEnabled
			switch {
			case productCOD != nil:
				return got == *productCOD
			case storeCOD != nil:
				return got == *storeCOD
			default:
				return got == DefaultCODEnabled
			}
		},
		genFlag(), genFlag(),
	))

	properties.Property("stripe flag ignores cod inputs", prop.ForAll(
		func(productStripe, storeStripe, productCOD, storeCOD *bool) bool {
			base := &models.Product{StripeEnabled: productStripe, Store: &models.Store{StripeEnabled: storeStripe}}
			noisy := &models.Product{
				StripeEnabled: productStripe,
				CODEnabled:    productCOD,
				Store:         &models.Store{StripeEnabled: storeStripe, CODEnabled: storeCOD},
			}
			return Resolve(base).StripeEnabled == Resolve(noisy).StripeEnabled
		},
		genFlag(), genFlag(), genFlag(), genFlag(),
	))

	properties.TestingRun(t)
}

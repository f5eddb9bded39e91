package cart

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/craftcart-backend/api/middleware"
	"github.com/angelmondragon/craftcart-backend/api/responses"
	"github.com/angelmondragon/craftcart-backend/api/validators"
	"github.com/angelmondragon/craftcart-backend/internal/checkout"
	"github.com/angelmondragon/craftcart-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
	"github.com/angelmondragon/craftcart-backend/pkg/logger"
	"github.com/angelmondragon/craftcart-backend/pkg/types"
)

type checkoutRequest struct {
	DeliveryAddress types.DeliveryAddress `json:"deliveryAddress"`
	PaymentMethod   paymentMethodRequest  `json:"paymentMethod"`
}

type paymentMethodRequest struct {
	Type            string `json:"type" validate:"required"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

// CartCheckout converts the caller's cart into an order.
func CartCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		ownerID, err := ownerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), ownerID, checkout.CheckoutInput{
			DeliveryAddress: payload.DeliveryAddress,
			PaymentMethod: checkout.PaymentMethodInput{
				Type:            payload.PaymentMethod.Type,
				PaymentIntentID: payload.PaymentMethod.PaymentIntentID,
			},
			IdempotencyKey: strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orders.NewOrderDTO(order))
	}
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/craftcart-backend/api/middleware"
	"github.com/angelmondragon/craftcart-backend/api/responses"
	"github.com/angelmondragon/craftcart-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/craftcart-backend/pkg/errors"
	"github.com/angelmondragon/craftcart-backend/pkg/logger"
)

// PaymentsCreateIntent prices the caller's live cart and opens a card intent.
func PaymentsCreateIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		ownerID, ok := middleware.OwnerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}

		key := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
		intent, err := svc.CreateIntent(r.Context(), ownerID, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intent)
	}
}

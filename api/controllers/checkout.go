package controllers

import (
	"net/http"

	"github.com/bazario/backend/api/responses"
	"github.com/bazario/backend/api/validators"
	"github.com/bazario/backend/internal/checkout"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/logger"
	"github.com/bazario/backend/pkg/types"
)

type checkoutRequest struct {
	Lines           []checkout.Line `json:"lines" validate:"required,min=1,max=50,dive"`
	ShippingAddress types.Address   `json:"shipping_address" validate:"required"`
	RedirectURL     string          `json:"redirect_url,omitempty" validate:"omitempty,url,max=500"`
}

// Checkout turns the caller's cart into a pending order with a payment link.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := body.ShippingAddress.Validate(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), checkout.Input{
			CustomerUserID:  customerID,
			Lines:           body.Lines,
			ShippingAddress: body.ShippingAddress,
			RedirectURL:     body.RedirectURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

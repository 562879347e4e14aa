package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazario/backend/api/responses"
	"github.com/bazario/backend/api/validators"
	"github.com/bazario/backend/internal/returns"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/logger"
)

type requestReturnRequest struct {
	SubOrderID uuid.UUID `json:"sub_order_id" validate:"required"`
	Reason     string    `json:"reason" validate:"required,min=5,max=2000"`
}

// RequestReturn opens a return request against a delivered sub-order.
func RequestReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body requestReturnRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Request(r.Context(), returns.RequestInput{
			SubOrderID:     body.SubOrderID,
			CustomerUserID: customerID,
			Reason:         validators.SanitizeString(body.Reason, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReturnResponse(request))
	}
}

// ListMyReturns returns the caller's return requests.
func ListMyReturns(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		customerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := returns.ListFilter{CustomerUserID: &customerID}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, parseErr := enums.ParseReturnStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			filter.Status = &status
		}

		rows, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]returnResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newReturnResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"returns": items})
	}
}

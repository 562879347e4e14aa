package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazario/backend/api/responses"
	"github.com/bazario/backend/api/validators"
	"github.com/bazario/backend/internal/adminusers"
	"github.com/bazario/backend/internal/audit"
	"github.com/bazario/backend/internal/releases"
	"github.com/bazario/backend/internal/returns"
	"github.com/bazario/backend/internal/stores"
	"github.com/bazario/backend/internal/wallets"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/logger"
)

// AdminListStores returns stores for back-office review, optionally by status.
func AdminListStores(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.StoreStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, parseErr := enums.ParseStoreStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			status = &parsed
		}

		rows, err := svc.List(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]storeResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newStoreResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"stores": items})
	}
}

type storeReviewRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// AdminApproveStore activates a pending storefront.
func AdminApproveStore(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return storeReview(svc, logg, true)
}

// AdminSuspendStore takes an active storefront off the marketplace.
func AdminSuspendStore(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return storeReview(svc, logg, false)
}

func storeReview(svc stores.Service, logg *logger.Logger, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		adminID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := pathUUID(r, "storeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body storeReviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := stores.ReviewInput{
			StoreID:     storeID,
			AdminUserID: adminID,
			Reason:      validators.SanitizeString(body.Reason, 1000),
		}
		var decideErr error
		if approve {
			decideErr = svc.Approve(r.Context(), input)
		} else {
			decideErr = svc.Suspend(r.Context(), input)
		}
		if decideErr != nil {
			responses.WriteError(r.Context(), logg, w, decideErr)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// AdminListEligibleReleases returns held payouts past their return window.
func AdminListEligibleReleases(svc releases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "release service unavailable"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListEligible(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"eligible": rows})
	}
}

// AdminReleaseEscrow moves one held payout into the store's available balance.
func AdminReleaseEscrow(svc releases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "release service unavailable"))
			return
		}

		adminID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subOrderID, err := pathUUID(r, "subOrderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Release(r.Context(), releases.ReleaseInput{
			SubOrderID:  subOrderID,
			AdminUserID: adminID,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// AdminListReturns returns return requests for back-office triage.
func AdminListReturns(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter returns.ListFilter
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, parseErr := enums.ParseReturnStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			filter.Status = &status
		}
		if raw := r.URL.Query().Get("store_id"); raw != "" {
			storeID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid store_id"))
				return
			}
			filter.StoreID = &storeID
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

type returnDecisionRequest struct {
	Approve *bool   `json:"approve" validate:"required"`
	Note    *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// AdminDecideReturn approves or rejects a requested return.
func AdminDecideReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		adminID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		returnID, err := pathUUID(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body returnDecisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Decide(r.Context(), returns.DecisionInput{
			ReturnRequestID: returnID,
			AdminUserID:     adminID,
			Approve:         *body.Approve,
			Note:            body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(request))
	}
}

// AdminCompleteReturn refunds an approved return once goods are back.
func AdminCompleteReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		adminID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		returnID, err := pathUUID(r, "returnID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Complete(r.Context(), returns.CompleteInput{
			ReturnRequestID: returnID,
			AdminUserID:     adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(request))
	}
}

type walletAdjustRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required"`
	Memo        string `json:"memo" validate:"required,min=5,max=500"`
}

// AdminAdjustWallet applies a manual correction to a store's available balance.
func AdminAdjustWallet(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		adminID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := pathUUID(r, "storeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body walletAdjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Adjust(r.Context(), wallets.AdjustInput{
			StoreID:     storeID,
			AmountCents: body.AmountCents,
			Memo:        validators.SanitizeString(body.Memo, 500),
			AdminUserID: adminID,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type createAdminUserRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
}

// AdminCreateUser provisions a back-office account with a one-time password.
func AdminCreateUser(svc adminusers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin user service unavailable"))
			return
		}

		actorID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createAdminUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), adminusers.CreateInput{
			ActorAdminUserID: actorID,
			Email:            body.Email,
			FirstName:        body.FirstName,
			LastName:         body.LastName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// AdminListUsers returns the back-office accounts.
func AdminListUsers(svc adminusers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin user service unavailable"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AdminDeactivateUser disables another admin's account.
func AdminDeactivateUser(svc adminusers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin user service unavailable"))
			return
		}

		actorID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetID, err := pathUUID(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), actorID, targetID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// AdminListAuditLog returns the admin action trail.
func AdminListAuditLog(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter audit.ListFilter
		if raw := r.URL.Query().Get("admin_user_id"); raw != "" {
			adminID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid admin_user_id"))
				return
			}
			filter.AdminUserID = &adminID
		}
		if raw := r.URL.Query().Get("target_id"); raw != "" {
			targetID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid target_id"))
				return
			}
			filter.TargetID = &targetID
		}

		rows, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]auditLogResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newAuditLogResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"audit_log": items})
	}
}

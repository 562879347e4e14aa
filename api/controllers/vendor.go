package controllers

import (
	"net/http"
	"time"

	"github.com/bazario/backend/api/middleware"
	"github.com/bazario/backend/api/responses"
	"github.com/bazario/backend/api/validators"
	"github.com/bazario/backend/internal/stores"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/internal/wallets"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/logger"
)

type createStoreRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// CreateStore opens a pending storefront for the caller.
func CreateStore(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		ownerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createStoreRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := svc.Create(r.Context(), stores.CreateInput{
			OwnerUserID: ownerID,
			Name:        body.Name,
			Description: body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newStoreResponse(store))
	}
}

// GetMyStore returns the caller's storefront, pending or otherwise.
func GetMyStore(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		ownerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := svc.GetByOwner(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStoreResponse(store))
	}
}

// ListStoreSubOrders returns the vendor's sub-orders, optionally by status.
func ListStoreSubOrders(svc suborders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sub-order service unavailable"))
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.SubOrderStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, parseErr := enums.ParseSubOrderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			status = &parsed
		}

		rows, err := svc.ListForStore(r.Context(), storeID, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"sub_orders": newSubOrderListResponse(rows)})
	}
}

// GetStoreSubOrder returns one sub-order belonging to the vendor's store.
func GetStoreSubOrder(svc suborders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sub-order service unavailable"))
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subOrderID, err := pathUUID(r, "subOrderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subOrder, err := svc.GetForStore(r.Context(), storeID, subOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubOrderResponse(subOrder))
	}
}

type transitionRequest struct {
	ToStatus       string  `json:"to_status" validate:"required"`
	TrackingNumber *string `json:"tracking_number,omitempty" validate:"omitempty,max=100"`
	Carrier        *string `json:"carrier,omitempty" validate:"omitempty,max=100"`
	Note           *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// TransitionSubOrder moves a sub-order along the delivery state machine.
func TransitionSubOrder(svc suborders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sub-order service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subOrderID, err := pathUUID(r, "subOrderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		toStatus, err := enums.ParseSubOrderStatus(body.ToStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to_status"))
			return
		}

		role, _ := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
		subOrder, err := svc.Transition(r.Context(), suborders.TransitionInput{
			SubOrderID: subOrderID,
			Actor: suborders.Actor{
				UserID:  userID,
				StoreID: &storeID,
				Role:    role,
			},
			ToStatus:       toStatus,
			TrackingNumber: body.TrackingNumber,
			Carrier:        body.Carrier,
			Note:           body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubOrderResponse(subOrder))
	}
}

type historyEntryResponse struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorRole  *string   `json:"actor_role,omitempty"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubOrderHistory returns the status trail for one of the vendor's sub-orders.
func SubOrderHistory(svc suborders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sub-order service unavailable"))
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subOrderID, err := pathUUID(r, "subOrderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Ownership check before exposing the trail.
		if _, err := svc.GetForStore(r.Context(), storeID, subOrderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.History(r.Context(), subOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries := make([]historyEntryResponse, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, historyEntryResponse{
				FromStatus: row.FromStatus.String(),
				ToStatus:   row.ToStatus.String(),
				ActorRole:  row.ActorRole,
				Note:       row.Note,
				CreatedAt:  row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"history": entries})
	}
}

// GetStoreWallet returns the vendor's balances.
func GetStoreWallet(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.GetByStore(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(wallet))
	}
}

// ListWalletEntries returns the vendor's journal, newest first.
func ListWalletEntries(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListEntries(r.Context(), storeID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries := make([]walletEntryResponse, 0, len(rows))
		for i := range rows {
			entries = append(entries, newWalletEntryResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}

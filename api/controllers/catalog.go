package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazario/backend/api/responses"
	"github.com/bazario/backend/api/validators"
	"github.com/bazario/backend/internal/products"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/logger"
)

// ListProducts serves the public catalog with optional filters.
func ListProducts(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := products.ListFilters{
			Query: validators.SanitizeString(r.URL.Query().Get("q"), 200),
		}
		if raw := r.URL.Query().Get("store_id"); raw != "" {
			storeID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid store_id"))
				return
			}
			filters.StoreID = &storeID
		}
		if minCents, qErr := validators.ParseQueryInt(r, "price_min_cents", 0, 0, 1<<31); qErr != nil {
			responses.WriteError(r.Context(), logg, w, qErr)
			return
		} else if minCents > 0 {
			v := int64(minCents)
			filters.PriceMinCents = &v
		}
		if maxCents, qErr := validators.ParseQueryInt(r, "price_max_cents", 0, 0, 1<<31); qErr != nil {
			responses.WriteError(r.Context(), logg, w, qErr)
			return
		} else if maxCents > 0 {
			v := int64(maxCents)
			filters.PriceMaxCents = &v
		}

		rows, nextCursor, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]productResponse, 0, len(rows))
		for i := range rows {
			items = append(items, newProductResponse(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"products":    items,
			"next_cursor": nextCursor,
		})
	}
}

// GetProduct serves a single public listing.
func GetProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

type createProductRequest struct {
	Name          string  `json:"name" validate:"required,min=2,max=200"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	PriceCents    int64   `json:"price_cents" validate:"required,gt=0"`
	Currency      string  `json:"currency,omitempty" validate:"omitempty,oneof=USD EUR GBP"`
	StockQuantity int     `json:"stock_quantity" validate:"min=0"`
}

// CreateProduct lets an approved vendor add a listing to their store.
func CreateProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency := enums.CurrencyUSD
		if body.Currency != "" {
			currency = enums.Currency(body.Currency)
		}

		product, err := svc.Create(r.Context(), products.CreateInput{
			StoreID:       storeID,
			Name:          body.Name,
			Description:   body.Description,
			PriceCents:    body.PriceCents,
			Currency:      currency,
			StockQuantity: body.StockQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

type updateProductRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	PriceCents    *int64  `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	StockQuantity *int    `json:"stock_quantity,omitempty" validate:"omitempty,min=0"`
}

// UpdateProduct edits a listing owned by the vendor's store.
func UpdateProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), products.UpdateInput{
			StoreID:       storeID,
			ProductID:     productID,
			Name:          body.Name,
			Description:   body.Description,
			PriceCents:    body.PriceCents,
			StockQuantity: body.StockQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

type setProductActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// SetProductActive toggles a listing's visibility.
func SetProductActive(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		storeID, err := actorStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathUUID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setProductActiveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetActive(r.Context(), storeID, productID, *body.IsActive); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

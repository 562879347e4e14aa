package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/stores"
	dbpkg "github.com/bazario/backend/pkg/db"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/pagination"
)

// Service exposes catalog operations for vendors and shoppers.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, input UpdateInput) (*models.Product, error)
	SetActive(ctx context.Context, storeID, productID uuid.UUID, active bool) error
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Product, string, error)
}

// CreateInput carries a new vendor listing.
type CreateInput struct {
	StoreID       uuid.UUID
	Name          string
	Description   *string
	PriceCents    int64
	Currency      enums.Currency
	StockQuantity int
}

// UpdateInput carries a partial edit to an existing listing.
type UpdateInput struct {
	StoreID       uuid.UUID
	ProductID     uuid.UUID
	Name          *string
	Description   *string
	PriceCents    *int64
	StockQuantity *int
}

type service struct {
	repo *Repository
}

// NewService builds the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "store identity missing")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}
	currency := input.Currency
	if !currency.IsValid() {
		currency = enums.CurrencyUSD
	}

	product := &models.Product{
		StoreID:       input.StoreID,
		Name:          name,
		Slug:          productSlug(input.StoreID, name),
		Description:   input.Description,
		PriceCents:    input.PriceCents,
		Currency:      currency,
		StockQuantity: input.StockQuantity,
		IsActive:      true,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Product, error) {
	product, err := s.loadOwned(ctx, input.StoreID, input.ProductID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		product.PriceCents = *input.PriceCents
	}
	if input.StockQuantity != nil {
		if *input.StockQuantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
		}
		product.StockQuantity = *input.StockQuantity
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return updated, nil
}

func (s *service) SetActive(ctx context.Context, storeID, productID uuid.UUID, active bool) error {
	product, err := s.loadOwned(ctx, storeID, productID)
	if err != nil {
		return err
	}
	if product.IsActive == active {
		return nil
	}
	product.IsActive = active
	if _, err := s.repo.Update(ctx, product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Product, string, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, next, nil
}

func (s *service) loadOwned(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "store identity missing")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.StoreID != storeID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another store")
	}
	return product, nil
}

// productSlug keeps slugs unique across stores by suffixing a short store hash.
func productSlug(storeID uuid.UUID, name string) string {
	short := strings.ReplaceAll(storeID.String(), "-", "")[:8]
	return stores.Slugify(name) + "-" + short
}

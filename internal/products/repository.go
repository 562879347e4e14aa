package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	"github.com/bazario/backend/pkg/pagination"
)

// Repository wires together product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug loads the product by its public slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindManyByIDs loads the given products in one query.
func (r *Repository) FindManyByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Update saves an existing product row.
func (r *Repository) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// DecrementStock atomically reserves quantity, failing when stock is short.
// Returns the number of rows updated so callers can detect insufficient stock.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = true AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	return result.RowsAffected, result.Error
}

// RestoreStock returns reserved quantity after a cancel or expiry.
func (r *Repository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity)).Error
}

// ListFilters narrows the public catalog query.
type ListFilters struct {
	StoreID       *uuid.UUID
	PriceMinCents *int64
	PriceMaxCents *int64
	Query         string
	IncludeHidden bool
}

// List returns catalog rows newest first with keyset pagination. Public
// callers only see active products from approved stores.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Product, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)

	qb := r.db.WithContext(ctx).
		Table("products p").
		Select("p.*").
		Joins("JOIN stores s ON s.id = p.store_id")

	if filters.StoreID != nil {
		qb = qb.Where("p.store_id = ?", *filters.StoreID)
	}
	if !filters.IncludeHidden {
		qb = qb.Where("p.is_active = true")
		qb = qb.Where("s.status = ?", enums.StoreStatusApproved)
	}
	if filters.PriceMinCents != nil {
		qb = qb.Where("p.price_cents >= ?", *filters.PriceMinCents)
	}
	if filters.PriceMaxCents != nil {
		qb = qb.Where("p.price_cents <= ?", *filters.PriceMaxCents)
	}
	if search := strings.TrimSpace(filters.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("LOWER(p.name) LIKE ?", pattern)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		qb = qb.Where("(p.created_at < ?) OR (p.created_at = ? AND p.id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	qb = qb.Order("p.created_at DESC").Order("p.id DESC").Limit(pagination.LimitWithBuffer(params.Limit))

	var rows []models.Product
	if err := qb.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}

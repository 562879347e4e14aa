package stores

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	"github.com/bazario/backend/pkg/pagination"
)

// Repository is the persistence surface for vendor stores.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, store *models.Store) (*models.Store, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	FindBySlug(ctx context.Context, slug string) (*models.Store, error)
	FindByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Store, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.StoreStatus, at time.Time) error
	List(ctx context.Context, status *enums.StoreStatus, params pagination.Params) ([]models.Store, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stores repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, store *models.Store) (*models.Store, error) {
	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		return nil, err
	}
	return store, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) FindByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).Where("owner_user_id = ?", ownerUserID).First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.StoreStatus, at time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	switch status {
	case enums.StoreStatusApproved:
		updates["approved_at"] = at
		updates["suspended_at"] = nil
	case enums.StoreStatusSuspended:
		updates["suspended_at"] = at
	}
	return r.db.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, status *enums.StoreStatus, params pagination.Params) ([]models.Store, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var stores []models.Store
	if err := query.Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/pagination"
)

// Repository is the persistence surface for the append-only audit log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, row *models.AuditLog) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLog, error)
}

// ListFilter narrows audit queries for back-office review.
type ListFilter struct {
	AdminUserID *uuid.UUID
	TargetID    *uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, row *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLog, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if filter.AdminUserID != nil {
		query = query.Where("admin_user_id = ?", *filter.AdminUserID)
	}
	if filter.TargetID != nil {
		query = query.Where("target_id = ?", *filter.TargetID)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.AuditLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

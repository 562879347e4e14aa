package returns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	"github.com/bazario/backend/pkg/pagination"
)

// ListFilter narrows return queries.
type ListFilter struct {
	Status         *enums.ReturnStatus
	CustomerUserID *uuid.UUID
	StoreID        *uuid.UUID
}

// Repository is the persistence surface for return requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	HasOpenForSubOrder(ctx context.Context, subOrderID uuid.UUID) (bool, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, status enums.ReturnStatus, adminUserID uuid.UUID, note *string, at time.Time) error
	MarkCompleted(ctx context.Context, id uuid.UUID, refundAmountCents int64, at time.Time) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.ReturnRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a returns repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&request, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) HasOpenForSubOrder(ctx context.Context, subOrderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("sub_order_id = ?", subOrderID).
		Where("status IN ?", []enums.ReturnStatus{enums.ReturnStatusRequested, enums.ReturnStatusApproved}).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateDecision(ctx context.Context, id uuid.UUID, status enums.ReturnStatus, adminUserID uuid.UUID, note *string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                   status,
			"decided_by_admin_user_id": adminUserID,
			"decision_note":            note,
			"decided_at":               at,
		}).Error
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, refundAmountCents int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              enums.ReturnStatusCompleted,
			"refund_amount_cents": refundAmountCents,
			"refunded_at":         at,
		}).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.ReturnRequest, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Order("return_requests.created_at DESC").
		Order("return_requests.id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if filter.Status != nil {
		query = query.Where("return_requests.status = ?", *filter.Status)
	}
	if filter.CustomerUserID != nil {
		query = query.Where("return_requests.customer_user_id = ?", *filter.CustomerUserID)
	}
	if filter.StoreID != nil {
		query = query.
			Joins("JOIN sub_orders so ON so.id = return_requests.sub_order_id").
			Where("so.store_id = ?", *filter.StoreID)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(return_requests.created_at, return_requests.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ReturnRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

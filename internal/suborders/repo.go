package suborders

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

// Repository is the persistence surface for sub-orders and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubOrder, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.SubOrderStatus, params pagination.Params) ([]models.SubOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubOrderStatus, at time.Time) error
	UpdateShipment(ctx context.Context, id uuid.UUID, trackingNumber, carrier *string) error
	UpdateEscrowStatus(ctx context.Context, id uuid.UUID, status enums.EscrowStatus) error
	UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus) error
	SetReturnWindowEndsAt(ctx context.Context, id uuid.UUID, at time.Time) error
	InsertStatusHistory(ctx context.Context, row *models.SubOrderStatusHistory) error
	ListStatusHistory(ctx context.Context, subOrderID uuid.UUID) ([]models.SubOrderStatusHistory, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sub-orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	var subOrder models.SubOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&subOrder, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &subOrder, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	var subOrder models.SubOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&subOrder, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &subOrder, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	var rows []models.SubOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sub_order_number ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.SubOrderStatus, params pagination.Params) ([]models.SubOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("store_id = ?", storeID).
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

	var rows []models.SubOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubOrderStatus, at time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	switch status {
	case enums.SubOrderStatusShipped:
		updates["shipped_at"] = at
	case enums.SubOrderStatusDelivered:
		updates["delivered_at"] = at
	case enums.SubOrderStatusCanceled:
		updates["canceled_at"] = at
	}
	return r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateShipment(ctx context.Context, id uuid.UUID, trackingNumber, carrier *string) error {
	return r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"tracking_number": trackingNumber,
			"carrier":         carrier,
		}).Error
}

func (r *repository) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, status enums.EscrowStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ?", id).
		UpdateColumn("escrow_status", status).Error
}

func (r *repository) UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ?", id).
		UpdateColumn("refund_status", status).Error
}

func (r *repository) SetReturnWindowEndsAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("id = ?", id).
		UpdateColumn("return_window_ends_at", at).Error
}

func (r *repository) InsertStatusHistory(ctx context.Context, row *models.SubOrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListStatusHistory(ctx context.Context, subOrderID uuid.UUID) ([]models.SubOrderStatusHistory, error) {
	var rows []models.SubOrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("sub_order_id = ?", subOrderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

package orders

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

// Repository is the persistence surface for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateSubOrder(ctx context.Context, subOrder *models.SubOrder) (*models.SubOrder, error)
	CreateSubOrderItems(ctx context.Context, items []models.SubOrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerUserID uuid.UUID, params pagination.Params) ([]models.Order, error)
	ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]models.Order, error)
	UpdatePaymentLink(ctx context.Context, id uuid.UUID, url string, gatewayPaymentID *string) error
	MarkPaid(ctx context.Context, id uuid.UUID, gatewayPaymentID string, at time.Time) error
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) error
	MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) NextOrderNumber(ctx context.Context) (int64, error) {
	var number int64
	err := r.db.WithContext(ctx).Raw("SELECT nextval('order_number_seq')").Scan(&number).Error
	return number, err
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Omit("SubOrders").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateSubOrder(ctx context.Context, subOrder *models.SubOrder) (*models.SubOrder, error) {
	if err := r.db.WithContext(ctx).Omit("Items", "StatusHistory").Create(subOrder).Error; err != nil {
		return nil, err
	}
	return subOrder, nil
}

func (r *repository) CreateSubOrderItems(ctx context.Context, items []models.SubOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("SubOrders").
		Preload("SubOrders.Items").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		First(&order, "gateway_payment_id = ?", gatewayPaymentID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerUserID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("SubOrders").
		Where("customer_user_id = ?", customerUserID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusPendingPayment).
		Where("expires_at IS NOT NULL AND expires_at < ?", asOf).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpdatePaymentLink(ctx context.Context, id uuid.UUID, url string, gatewayPaymentID *string) error {
	updates := map[string]any{
		"payment_link_url": url,
	}
	if gatewayPaymentID != nil {
		updates["gateway_payment_id"] = *gatewayPaymentID
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, gatewayPaymentID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             enums.OrderStatusPaid,
			"payment_status":     enums.PaymentStatusPaid,
			"gateway_payment_id": gatewayPaymentID,
			"paid_at":            at,
		}).Error
}

func (r *repository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         enums.OrderStatusPaymentFailed,
			"payment_status": enums.PaymentStatusFailed,
		}).Error
}

func (r *repository) MarkCanceled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      enums.OrderStatusCanceled,
			"canceled_at": at,
		}).Error
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.OrderStatusExpired,
			"expired_at": at,
		}).Error
}

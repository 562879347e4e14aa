package releases

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

// EligibleSubOrder is a release-queue row joined with its fund release.
type EligibleSubOrder struct {
	SubOrderID         uuid.UUID `json:"sub_order_id"`
	SubOrderNumber     string    `json:"sub_order_number"`
	StoreID            uuid.UUID `json:"store_id"`
	PayoutCents        int64     `json:"payout_cents"`
	DeliveredAt        time.Time `json:"delivered_at"`
	ReturnWindowEndsAt time.Time `json:"return_window_ends_at"`
	CreatedAt          time.Time `json:"created_at"`
}

// Repository is the persistence surface for fund releases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, release *models.FundRelease) (*models.FundRelease, error)
	FindBySubOrderForUpdate(ctx context.Context, subOrderID uuid.UUID) (*models.FundRelease, error)
	MarkReleased(ctx context.Context, id uuid.UUID, adminUserID uuid.UUID, at time.Time) error
	MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) error
	ListEligible(ctx context.Context, asOf time.Time, params pagination.Params) ([]EligibleSubOrder, error)
	CountEligible(ctx context.Context, asOf time.Time) (int64, error)
	HasOpenReturn(ctx context.Context, subOrderID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fund release repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, release *models.FundRelease) (*models.FundRelease, error) {
	if err := r.db.WithContext(ctx).Create(release).Error; err != nil {
		return nil, err
	}
	return release, nil
}

func (r *repository) FindBySubOrderForUpdate(ctx context.Context, subOrderID uuid.UUID) (*models.FundRelease, error) {
	var release models.FundRelease
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&release, "sub_order_id = ?", subOrderID).Error
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *repository) MarkReleased(ctx context.Context, id uuid.UUID, adminUserID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.FundRelease{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                    enums.FundReleaseStatusReleased,
			"released_by_admin_user_id": adminUserID,
			"released_at":               at,
		}).Error
}

func (r *repository) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.FundRelease{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      enums.FundReleaseStatusRefunded,
			"refunded_at": at,
		}).Error
}

// eligibleBaseQuery selects sub-orders whose escrow can be released: delivered,
// return window elapsed, escrow still held, and no return request in flight.
func (r *repository) eligibleBaseQuery(ctx context.Context, asOf time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("sub_orders so").
		Joins("JOIN fund_releases fr ON fr.sub_order_id = so.id").
		Where("so.status = ?", enums.SubOrderStatusDelivered).
		Where("so.escrow_status = ?", enums.EscrowStatusHeld).
		Where("fr.status = ?", enums.FundReleaseStatusHeld).
		Where("so.return_window_ends_at IS NOT NULL AND so.return_window_ends_at < ?", asOf).
		Where("NOT EXISTS (SELECT 1 FROM return_requests rr WHERE rr.sub_order_id = so.id AND rr.status IN ?)",
			[]enums.ReturnStatus{enums.ReturnStatusRequested, enums.ReturnStatusApproved})
}

func (r *repository) ListEligible(ctx context.Context, asOf time.Time, params pagination.Params) ([]EligibleSubOrder, error) {
	query := r.eligibleBaseQuery(ctx, asOf).
		Select("so.id AS sub_order_id, so.sub_order_number, so.store_id, so.payout_cents, so.delivered_at, so.return_window_ends_at, so.created_at").
		Order("so.created_at DESC").
		Order("so.id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(so.created_at, so.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []EligibleSubOrder
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountEligible(ctx context.Context, asOf time.Time) (int64, error) {
	var count int64
	err := r.eligibleBaseQuery(ctx, asOf).Count(&count).Error
	return count, err
}

func (r *repository) HasOpenReturn(ctx context.Context, subOrderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("sub_order_id = ?", subOrderID).
		Where("status IN ?", []enums.ReturnStatus{enums.ReturnStatusRequested, enums.ReturnStatusApproved}).
		Count(&count).Error
	return count > 0, err
}

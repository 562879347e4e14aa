package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// FundRelease tracks a sub-order's escrowed payout from hold to its terminal
// released or refunded state.
type FundRelease struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubOrderID            uuid.UUID               `gorm:"column:sub_order_id;type:uuid;not null;uniqueIndex"`
	StoreID               uuid.UUID               `gorm:"column:store_id;type:uuid;not null;index"`
	Status                enums.FundReleaseStatus `gorm:"column:status;type:fund_release_status;not null;default:'held'"`
	AmountCents           int64                   `gorm:"column:amount_cents;not null"`
	ReleasedByAdminUserID *uuid.UUID              `gorm:"column:released_by_admin_user_id;type:uuid"`
	ReleasedAt            *time.Time              `gorm:"column:released_at"`
	RefundedAt            *time.Time              `gorm:"column:refunded_at"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// ReturnRequest is a customer-initiated return against a delivered sub-order.
type ReturnRequest struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubOrderID           uuid.UUID          `gorm:"column:sub_order_id;type:uuid;not null;index"`
	CustomerUserID       uuid.UUID          `gorm:"column:customer_user_id;type:uuid;not null;index"`
	Status               enums.ReturnStatus `gorm:"column:status;type:return_status;not null;default:'requested'"`
	Reason               string             `gorm:"column:reason;type:text;not null"`
	DecisionNote         *string            `gorm:"column:decision_note"`
	DecidedByAdminUserID *uuid.UUID         `gorm:"column:decided_by_admin_user_id;type:uuid"`
	DecidedAt            *time.Time         `gorm:"column:decided_at"`
	RefundAmountCents    *int64             `gorm:"column:refund_amount_cents"`
	RefundedAt           *time.Time         `gorm:"column:refunded_at"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

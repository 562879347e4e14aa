package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// SubOrder is the per-store slice of an order. The settlement snapshot
// (commission, fee, payout) is computed once at creation and never recomputed.
type SubOrder struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	StoreID            uuid.UUID               `gorm:"column:store_id;type:uuid;not null;index"`
	SubOrderNumber     string                  `gorm:"column:sub_order_number;type:text;not null;uniqueIndex"`
	Currency           enums.Currency          `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status             enums.SubOrderStatus    `gorm:"column:status;type:sub_order_status;not null;default:'pending'"`
	EscrowStatus       enums.EscrowStatus      `gorm:"column:escrow_status;type:escrow_status;not null;default:'none'"`
	RefundStatus       enums.RefundStatus      `gorm:"column:refund_status;type:refund_status;not null;default:'none'"`
	SubtotalCents      int64                   `gorm:"column:subtotal_cents;not null"`
	ShippingCents      int64                   `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents         int64                   `gorm:"column:total_cents;not null"`
	CommissionRate     string                  `gorm:"column:commission_rate;type:numeric(6,4);not null"`
	CommissionCents    int64                   `gorm:"column:commission_cents;not null"`
	ProcessingFeeCents int64                   `gorm:"column:processing_fee_cents;not null"`
	PayoutCents        int64                   `gorm:"column:payout_cents;not null"`
	TrackingNumber     *string                 `gorm:"column:tracking_number"`
	Carrier            *string                 `gorm:"column:carrier"`
	ShippedAt          *time.Time              `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time              `gorm:"column:delivered_at"`
	CanceledAt         *time.Time              `gorm:"column:canceled_at"`
	ReturnWindowEndsAt *time.Time              `gorm:"column:return_window_ends_at"`
	Items              []SubOrderItem          `gorm:"foreignKey:SubOrderID;constraint:OnDelete:CASCADE"`
	StatusHistory      []SubOrderStatusHistory `gorm:"foreignKey:SubOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
	"github.com/bazario/backend/pkg/types"
)

// Order is the customer-facing aggregate produced by checkout. Vendor-facing
// state lives on its SubOrders; the order only tracks payment and lifecycle.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerUserID   uuid.UUID           `gorm:"column:customer_user_id;type:uuid;not null;index"`
	OrderNumber      int64               `gorm:"column:order_number;not null;uniqueIndex"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	SubtotalCents    int64               `gorm:"column:subtotal_cents;not null"`
	ShippingCents    int64               `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents       int64               `gorm:"column:total_cents;not null"`
	ShippingAddress  *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PaymentLinkURL   *string             `gorm:"column:payment_link_url"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id;index"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CanceledAt       *time.Time          `gorm:"column:canceled_at"`
	ExpiredAt        *time.Time          `gorm:"column:expired_at"`
	ExpiresAt        *time.Time          `gorm:"column:expires_at"`
	SubOrders        []SubOrder          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
)

// OrderCreatedEvent signals a new checkout split across stores.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	SubOrderIDs []uuid.UUID `json:"sub_order_ids"`
	TotalCents  int64       `json:"total_cents"`
}

// OrderPaidEvent is emitted when the gateway confirms payment and escrow holds begin.
type OrderPaidEvent struct {
	OrderID          uuid.UUID   `json:"order_id"`
	SubOrderIDs      []uuid.UUID `json:"sub_order_ids"`
	GatewayPaymentID string      `json:"gateway_payment_id"`
	TotalCents       int64       `json:"total_cents"`
	PaidAt           time.Time   `json:"paid_at"`
}

// OrderPaymentFailedEvent reports a failed or declined gateway payment.
type OrderPaymentFailedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	Reason           string    `json:"reason,omitempty"`
}

// OrderCanceledEvent is emitted whenever a customer cancels a pre-shipment order.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CanceledAt time.Time `json:"canceled_at"`
	Reason     string    `json:"reason,omitempty"`
}

// OrderExpiredEvent describes the payload when unpaid orders expire.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	ExpiredAt time.Time `json:"expiredAt"`
}

// SubOrderStateChangedEvent reports a delivery lifecycle transition.
type SubOrderStateChangedEvent struct {
	SubOrderID uuid.UUID            `json:"sub_order_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	StoreID    uuid.UUID            `json:"store_id"`
	FromStatus enums.SubOrderStatus `json:"from_status"`
	ToStatus   enums.SubOrderStatus `json:"to_status"`
}

// FundsReleasedEvent is emitted when an admin releases escrowed funds to a store.
type FundsReleasedEvent struct {
	SubOrderID  uuid.UUID `json:"sub_order_id"`
	StoreID     uuid.UUID `json:"store_id"`
	AmountCents int64     `json:"amount_cents"`
	ReleasedAt  time.Time `json:"released_at"`
}

// ReturnRequestedEvent notifies the vendor and back office of a new return.
type ReturnRequestedEvent struct {
	ReturnRequestID uuid.UUID `json:"return_request_id"`
	SubOrderID      uuid.UUID `json:"sub_order_id"`
	StoreID         uuid.UUID `json:"store_id"`
	Reason          string    `json:"reason"`
}

// ReturnDecidedEvent carries an approve/reject decision on a return.
type ReturnDecidedEvent struct {
	ReturnRequestID uuid.UUID          `json:"return_request_id"`
	SubOrderID      uuid.UUID          `json:"sub_order_id"`
	Status          enums.ReturnStatus `json:"status"`
	DecisionNote    string             `json:"decision_note,omitempty"`
}

// RefundCompletedEvent reports that escrowed funds went back to the customer.
type RefundCompletedEvent struct {
	ReturnRequestID uuid.UUID `json:"return_request_id"`
	SubOrderID      uuid.UUID `json:"sub_order_id"`
	AmountCents     int64     `json:"amount_cents"`
	RefundedAt      time.Time `json:"refunded_at"`
}

// StoreApprovedEvent is emitted when onboarding review approves a store.
type StoreApprovedEvent struct {
	StoreID    uuid.UUID `json:"store_id"`
	ApprovedAt time.Time `json:"approved_at"`
}

// StoreSuspendedEvent is emitted when an admin suspends a store.
type StoreSuspendedEvent struct {
	StoreID     uuid.UUID `json:"store_id"`
	SuspendedAt time.Time `json:"suspended_at"`
	Reason      string    `json:"reason,omitempty"`
}

// EscrowReleaseReminderEvent nudges admins about sub-orders eligible for release.
type EscrowReleaseReminderEvent struct {
	SubOrderID  uuid.UUID `json:"subOrderId"`
	StoreID     uuid.UUID `json:"storeId"`
	AmountCents int64     `json:"amountCents"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// NotificationRequestedEvent tells the notification consumer to send an email.
type NotificationRequestedEvent struct {
	Recipient string    `json:"recipient"`
	Template  string    `json:"template"`
	SubjectID uuid.UUID `json:"subject_id"`
	Type      string    `json:"type"`
}

package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSubOrder     OutboxAggregateType = "sub_order"
	AggregateStore        OutboxAggregateType = "store"
	AggregateFundRelease  OutboxAggregateType = "fund_release"
	AggregateReturn       OutboxAggregateType = "return_request"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSubOrder,
	AggregateStore,
	AggregateFundRelease,
	AggregateReturn,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventOrderPaymentFailed    OutboxEventType = "order_payment_failed"
	EventOrderCanceled         OutboxEventType = "order_canceled"
	EventOrderExpired          OutboxEventType = "order_expired"
	EventSubOrderStateChanged  OutboxEventType = "sub_order_state_changed"
	EventFundsReleased         OutboxEventType = "funds_released"
	EventReturnRequested       OutboxEventType = "return_requested"
	EventReturnDecided         OutboxEventType = "return_decided"
	EventRefundCompleted       OutboxEventType = "refund_completed"
	EventStoreApproved         OutboxEventType = "store_approved"
	EventStoreSuspended        OutboxEventType = "store_suspended"
	EventEscrowReleaseReminder OutboxEventType = "escrow_release_reminder"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderPaymentFailed,
	EventOrderCanceled,
	EventOrderExpired,
	EventSubOrderStateChanged,
	EventFundsReleased,
	EventReturnRequested,
	EventReturnDecided,
	EventRefundCompleted,
	EventStoreApproved,
	EventStoreSuspended,
	EventEscrowReleaseReminder,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/enums"
	"github.com/bazario/backend/pkg/logger"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/outbox/idempotency"
	"github.com/bazario/backend/pkg/outbox/payloads"
)

const orderEmailConsumer = "order-emails"

// Consumer watches order lifecycle events and hands each one to the email
// sender. Delivery is at-least-once; the redis idempotency guard keeps
// redelivered messages from producing duplicate emails.
type Consumer struct {
	repo         Repository
	sender       EmailSender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the order email consumer.
func NewConsumer(repo Repository, sender EmailSender, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("recipient repository required")
	}
	if sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		sender:       sender,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !c.handles(eventType) {
		c.logg.Info(logCtx, "skipping event without email mapping")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderEmailConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "email handling failed", err)
		_ = c.idempotency.Delete(ctx, orderEmailConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderPaid,
		enums.EventOrderExpired,
		enums.EventSubOrderStateChanged,
		enums.EventReturnDecided,
		enums.EventRefundCompleted:
		return true
	default:
		return false
	}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventOrderPaid:
		var payload payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order paid payload: %w", err)
		}
		return c.emailOrderCustomer(ctx, payload.OrderID, "order_paid", map[string]any{
			"order_id":    payload.OrderID,
			"total_cents": payload.TotalCents,
		}, logCtx)
	case enums.EventOrderExpired:
		var payload payloads.OrderExpiredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order expired payload: %w", err)
		}
		return c.emailOrderCustomer(ctx, payload.OrderID, "order_expired", map[string]any{
			"order_id":   payload.OrderID,
			"expired_at": payload.ExpiredAt,
		}, logCtx)
	case enums.EventSubOrderStateChanged:
		var payload payloads.SubOrderStateChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse sub order payload: %w", err)
		}
		return c.handleSubOrderTransition(ctx, payload, logCtx)
	case enums.EventReturnDecided:
		var payload payloads.ReturnDecidedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse return decided payload: %w", err)
		}
		return c.emailSubOrderCustomer(ctx, payload.SubOrderID, "return_decided", map[string]any{
			"return_request_id": payload.ReturnRequestID,
			"status":            payload.Status,
			"decision_note":     payload.DecisionNote,
		}, logCtx)
	case enums.EventRefundCompleted:
		var payload payloads.RefundCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse refund payload: %w", err)
		}
		return c.emailSubOrderCustomer(ctx, payload.SubOrderID, "refund_completed", map[string]any{
			"return_request_id": payload.ReturnRequestID,
			"amount_cents":      payload.AmountCents,
		}, logCtx)
	default:
		return nil
	}
}

// handleSubOrderTransition emails the customer on shipment and delivery and
// the store owner when a sub-order is canceled.
func (c *Consumer) handleSubOrderTransition(ctx context.Context, payload payloads.SubOrderStateChangedEvent, logCtx context.Context) error {
	data := map[string]any{
		"sub_order_id": payload.SubOrderID,
		"order_id":     payload.OrderID,
		"from_status":  payload.FromStatus,
		"to_status":    payload.ToStatus,
	}
	switch payload.ToStatus {
	case enums.SubOrderStatusShipped:
		return c.emailSubOrderCustomer(ctx, payload.SubOrderID, "sub_order_shipped", data, logCtx)
	case enums.SubOrderStatusDelivered:
		return c.emailSubOrderCustomer(ctx, payload.SubOrderID, "sub_order_delivered", data, logCtx)
	case enums.SubOrderStatusCanceled:
		recipient, err := c.repo.StoreOwnerEmail(ctx, payload.StoreID)
		if err != nil {
			return fmt.Errorf("resolve store owner email: %w", err)
		}
		return c.send(ctx, recipient, "sub_order_canceled", data, logCtx)
	default:
		c.logg.Info(logCtx, "transition not emailed")
		return nil
	}
}

func (c *Consumer) emailOrderCustomer(ctx context.Context, orderID uuid.UUID, template string, data map[string]any, logCtx context.Context) error {
	recipient, err := c.repo.OrderCustomerEmail(ctx, orderID)
	if err != nil {
		return fmt.Errorf("resolve order customer email: %w", err)
	}
	return c.send(ctx, recipient, template, data, logCtx)
}

func (c *Consumer) emailSubOrderCustomer(ctx context.Context, subOrderID uuid.UUID, template string, data map[string]any, logCtx context.Context) error {
	recipient, err := c.repo.SubOrderCustomerEmail(ctx, subOrderID)
	if err != nil {
		return fmt.Errorf("resolve sub order customer email: %w", err)
	}
	return c.send(ctx, recipient, template, data, logCtx)
}

func (c *Consumer) send(ctx context.Context, recipient, template string, data map[string]any, logCtx context.Context) error {
	if err := c.sender.Send(ctx, Email{To: recipient, Template: template, Data: data}); err != nil {
		return fmt.Errorf("send %s email: %w", template, err)
	}
	c.logg.Info(c.logg.WithField(logCtx, "template", template), "email queued")
	return nil
}

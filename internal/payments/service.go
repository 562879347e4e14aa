package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/releases"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/internal/wallets"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/logger"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// WebhookInput is the normalized payment webhook after signature verification.
// OrderID comes from the payment's reference id; PaymentStatus is the
// gateway's payment state (COMPLETED, FAILED, CANCELED).
type WebhookInput struct {
	GatewayEventID   string
	EventType        string
	GatewayPaymentID string
	OrderID          uuid.UUID
	PaymentStatus    string
	AmountCents      int64
	RawPayload       json.RawMessage
}

// Service applies payment webhooks to the order aggregate.
type Service interface {
	ProcessOrder(ctx context.Context, input WebhookInput) error
}

type service struct {
	tx           txRunner
	webhookRepo  WebhookEventRepository
	ordersRepo   orders.Repository
	subOrderRepo suborders.Repository
	releaseRepo  releases.Repository
	wallets      wallets.Service
	outbox       outboxPublisher
	logg         *logger.Logger
}

// ServiceParams bundles the ProcessOrder dependencies.
type ServiceParams struct {
	Tx           txRunner
	WebhookRepo  WebhookEventRepository
	OrdersRepo   orders.Repository
	SubOrderRepo suborders.Repository
	ReleaseRepo  releases.Repository
	Wallets      wallets.Service
	Outbox       outboxPublisher
	Logger       *logger.Logger
}

// NewService builds the payment webhook service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.WebhookRepo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.SubOrderRepo == nil {
		return nil, fmt.Errorf("suborders repository required")
	}
	if params.ReleaseRepo == nil {
		return nil, fmt.Errorf("fund release repository required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:           params.Tx,
		webhookRepo:  params.WebhookRepo,
		ordersRepo:   params.OrdersRepo,
		subOrderRepo: params.SubOrderRepo,
		releaseRepo:  params.ReleaseRepo,
		wallets:      params.Wallets,
		outbox:       params.Outbox,
		logg:         params.Logger,
	}, nil
}

// ProcessOrder is idempotent two ways: the webhook event id is unique, and an
// order already out of pending_payment is left untouched.
func (s *service) ProcessOrder(ctx context.Context, input WebhookInput) error {
	if input.GatewayEventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event id required")
	}
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order reference required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		webhookRepo := s.webhookRepo.WithTx(tx)

		event, isNew, err := webhookRepo.InsertIfNew(ctx, input.GatewayEventID, input.EventType, input.RawPayload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}
		if !isNew {
			s.logInfo(ctx, "duplicate webhook delivery skipped", map[string]any{
				"gateway_event_id": input.GatewayEventID,
			})
			return nil
		}

		ordersRepo := s.ordersRepo.WithTx(tx)
		order, err := ordersRepo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		var processingErr *string
		switch input.PaymentStatus {
		case "COMPLETED":
			err = s.applyPaid(ctx, tx, order, input)
		case "FAILED", "CANCELED":
			err = s.applyFailed(ctx, tx, ordersRepo, order, input)
		default:
			s.logInfo(ctx, "ignoring payment status", map[string]any{
				"payment_status": input.PaymentStatus,
				"order_id":       order.ID.String(),
			})
		}
		if err != nil {
			return err
		}

		if err := webhookRepo.MarkProcessed(ctx, event.ID, processingErr); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark webhook processed")
		}
		return nil
	})
}

func (s *service) applyPaid(ctx context.Context, tx *gorm.DB, order *models.Order, input WebhookInput) error {
	// A declined attempt may be retried on the same payment link, so
	// payment_failed orders can still complete.
	if order.Status != enums.OrderStatusPendingPayment && order.Status != enums.OrderStatusPaymentFailed {
		s.logInfo(ctx, "order already settled, skipping paid transition", map[string]any{
			"order_id": order.ID.String(),
			"status":   order.Status.String(),
		})
		return nil
	}
	if input.AmountCents != 0 && input.AmountCents != order.TotalCents {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment amount mismatch").
			WithDetails(map[string]int64{
				"expected_cents": order.TotalCents,
				"received_cents": input.AmountCents,
			})
	}

	now := time.Now()
	ordersRepo := s.ordersRepo.WithTx(tx)
	if err := ordersRepo.MarkPaid(ctx, order.ID, input.GatewayPaymentID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}

	subOrderRepo := s.subOrderRepo.WithTx(tx)
	releaseRepo := s.releaseRepo.WithTx(tx)
	subOrders, err := subOrderRepo.FindByOrderID(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub orders")
	}

	subOrderIDs := make([]uuid.UUID, 0, len(subOrders))
	for _, subOrder := range subOrders {
		if subOrder.Status == enums.SubOrderStatusCanceled {
			continue
		}
		if err := subOrderRepo.UpdateEscrowStatus(ctx, subOrder.ID, enums.EscrowStatusHeld); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hold escrow")
		}
		if _, err := releaseRepo.Create(ctx, &models.FundRelease{
			SubOrderID:  subOrder.ID,
			StoreID:     subOrder.StoreID,
			Status:      enums.FundReleaseStatusHeld,
			AmountCents: subOrder.PayoutCents,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fund release")
		}
		if err := s.wallets.CreditPending(ctx, tx, wallets.JournalInput{
			StoreID:     subOrder.StoreID,
			SubOrderID:  subOrder.ID,
			AmountCents: subOrder.PayoutCents,
			Memo:        fmt.Sprintf("escrow hold for %s", subOrder.SubOrderNumber),
		}); err != nil {
			return err
		}
		note := "payment confirmed, escrow held"
		if err := subOrderRepo.InsertStatusHistory(ctx, &models.SubOrderStatusHistory{
			SubOrderID: subOrder.ID,
			FromStatus: subOrder.Status,
			ToStatus:   subOrder.Status,
			Note:       &note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}
		subOrderIDs = append(subOrderIDs, subOrder.ID)
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderPaidEvent{
			OrderID:          order.ID,
			SubOrderIDs:      subOrderIDs,
			GatewayPaymentID: input.GatewayPaymentID,
			TotalCents:       order.TotalCents,
			PaidAt:           now,
		},
	})
}

func (s *service) applyFailed(ctx context.Context, tx *gorm.DB, ordersRepo orders.Repository, order *models.Order, input WebhookInput) error {
	if order.Status != enums.OrderStatusPendingPayment {
		return nil
	}
	if err := ordersRepo.MarkPaymentFailed(ctx, order.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderPaymentFailedEvent{
			OrderID:          order.ID,
			GatewayPaymentID: input.GatewayPaymentID,
			Reason:           input.PaymentStatus,
		},
	})
}

func (s *service) logInfo(ctx context.Context, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}

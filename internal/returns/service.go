package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/audit"
	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/releases"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/internal/wallets"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/outbox/payloads"
	"github.com/bazario/backend/pkg/pagination"
	"github.com/bazario/backend/pkg/square"
	sq "github.com/square/square-go-sdk"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type refunder interface {
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error)
}

// RequestInput opens a return on a delivered sub-order.
type RequestInput struct {
	SubOrderID     uuid.UUID
	CustomerUserID uuid.UUID
	Reason         string
}

// DecisionInput approves or rejects a requested return.
type DecisionInput struct {
	ReturnRequestID uuid.UUID
	AdminUserID     uuid.UUID
	Approve         bool
	Note            *string
}

// CompleteInput finishes an approved return once goods are back.
type CompleteInput struct {
	ReturnRequestID uuid.UUID
	AdminUserID     uuid.UUID
}

// Service is the customer return / refund workflow.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.ReturnRequest, error)
	Decide(ctx context.Context, input DecisionInput) (*models.ReturnRequest, error)
	Complete(ctx context.Context, input CompleteInput) (*models.ReturnRequest, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.ReturnRequest, error)
}

type service struct {
	repo         Repository
	subOrderRepo suborders.Repository
	ordersRepo   orders.Repository
	releaseRepo  releases.Repository
	tx           txRunner
	wallets      wallets.Service
	audit        audit.Service
	refunds      refunder
	outbox       outboxPublisher
}

// ServiceParams bundles the return workflow dependencies.
type ServiceParams struct {
	Repo         Repository
	SubOrderRepo suborders.Repository
	OrdersRepo   orders.Repository
	ReleaseRepo  releases.Repository
	Tx           txRunner
	Wallets      wallets.Service
	Audit        audit.Service
	Refunds      refunder
	Outbox       outboxPublisher
}

// NewService builds the return workflow service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if params.SubOrderRepo == nil {
		return nil, fmt.Errorf("suborders repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.ReleaseRepo == nil {
		return nil, fmt.Errorf("fund release repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refund client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:         params.Repo,
		subOrderRepo: params.SubOrderRepo,
		ordersRepo:   params.OrdersRepo,
		releaseRepo:  params.ReleaseRepo,
		tx:           params.Tx,
		wallets:      params.Wallets,
		audit:        params.Audit,
		refunds:      params.Refunds,
		outbox:       params.Outbox,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.ReturnRequest, error) {
	if input.CustomerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}

	var created *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subOrderRepo := s.subOrderRepo.WithTx(tx)

		subOrder, err := subOrderRepo.FindByIDForUpdate(ctx, input.SubOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sub order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order")
		}

		order, err := s.ordersRepo.WithTx(tx).FindByID(ctx, subOrder.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CustomerUserID != input.CustomerUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sub order belongs to another customer")
		}
		if subOrder.Status != enums.SubOrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered sub orders can be returned")
		}
		now := time.Now()
		if subOrder.ReturnWindowEndsAt == nil || subOrder.ReturnWindowEndsAt.Before(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return window has closed")
		}
		if subOrder.EscrowStatus != enums.EscrowStatusHeld {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already settled")
		}
		open, err := repo.HasOpenForSubOrder(ctx, subOrder.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open returns")
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeConflict, "return already in flight")
		}

		created, err = repo.Create(ctx, &models.ReturnRequest{
			SubOrderID:     subOrder.ID,
			CustomerUserID: input.CustomerUserID,
			Status:         enums.ReturnStatusRequested,
			Reason:         reason,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateReturn,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.CustomerUserID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.ReturnRequestedEvent{
				ReturnRequestID: created.ID,
				SubOrderID:      subOrder.ID,
				StoreID:         subOrder.StoreID,
				Reason:          reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Decide(ctx context.Context, input DecisionInput) (*models.ReturnRequest, error) {
	if input.AdminUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	var decided *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindByIDForUpdate(ctx, input.ReturnRequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
		}
		if request.Status != enums.ReturnStatusRequested {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return already decided").
				WithDetails(map[string]string{"status": request.Status.String()})
		}

		status := enums.ReturnStatusRejected
		action := enums.AuditActionReturnRejected
		if input.Approve {
			status = enums.ReturnStatusApproved
			action = enums.AuditActionReturnApproved
		}
		now := time.Now()
		if err := repo.UpdateDecision(ctx, request.ID, status, input.AdminUserID, input.Note, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return decision")
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			AdminUserID: input.AdminUserID,
			Action:      action,
			TargetType:  "return_request",
			TargetID:    request.ID,
		}); err != nil {
			return err
		}

		note := ""
		if input.Note != nil {
			note = *input.Note
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnDecided,
			AggregateType: enums.AggregateReturn,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.AdminUserID, Role: enums.UserRoleAdmin.String()},
			Data: payloads.ReturnDecidedEvent{
				ReturnRequestID: request.ID,
				SubOrderID:      request.SubOrderID,
				Status:          status,
				DecisionNote:    note,
			},
		}); err != nil {
			return err
		}

		decided, err = repo.FindByID(ctx, request.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload return request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// Complete refunds the customer once the goods are back. The gateway refund
// happens first; the escrow and wallet unwind commit only after the refund
// call succeeds, so a gateway failure leaves the return approved and
// retryable.
func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.ReturnRequest, error) {
	if input.AdminUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	request, err := s.repo.FindByID(ctx, input.ReturnRequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	if request.Status != enums.ReturnStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return is not approved")
	}

	subOrder, err := s.subOrderRepo.FindByID(ctx, request.SubOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order")
	}
	order, err := s.ordersRepo.FindByID(ctx, subOrder.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.GatewayPaymentID == nil || *order.GatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no captured payment")
	}

	refundAmount := subOrder.TotalCents
	if _, err := s.refunds.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:      *order.GatewayPaymentID,
		AmountCents:    refundAmount,
		Currency:       subOrder.Currency.String(),
		IdempotencyKey: fmt.Sprintf("return-%s", request.ID),
	}); err != nil {
		return nil, err
	}

	var completed *models.ReturnRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subOrderRepo := s.subOrderRepo.WithTx(tx)
		releaseRepo := s.releaseRepo.WithTx(tx)

		locked, err := repo.FindByIDForUpdate(ctx, request.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock return request")
		}
		if locked.Status != enums.ReturnStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return is not approved")
		}

		release, err := releaseRepo.FindBySubOrderForUpdate(ctx, subOrder.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
		}
		if release.Status != enums.FundReleaseStatusHeld {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already settled")
		}

		now := time.Now()
		if err := repo.MarkCompleted(ctx, locked.ID, refundAmount, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete return")
		}
		if err := releaseRepo.MarkRefunded(ctx, release.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark fund release refunded")
		}
		if err := subOrderRepo.UpdateEscrowStatus(ctx, subOrder.ID, enums.EscrowStatusRefunded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update escrow status")
		}
		if err := subOrderRepo.UpdateRefundStatus(ctx, subOrder.ID, enums.RefundStatusRefunded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update refund status")
		}
		if err := s.wallets.DebitRefund(ctx, tx, wallets.JournalInput{
			StoreID:     subOrder.StoreID,
			SubOrderID:  subOrder.ID,
			AmountCents: release.AmountCents,
			Memo:        fmt.Sprintf("refund for %s", subOrder.SubOrderNumber),
			AdminUserID: &input.AdminUserID,
		}); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			AdminUserID: input.AdminUserID,
			Action:      enums.AuditActionRefundCompleted,
			TargetType:  "return_request",
			TargetID:    locked.ID,
			Detail: map[string]any{
				"refund_amount_cents": refundAmount,
				"sub_order_id":        subOrder.ID,
			},
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundCompleted,
			AggregateType: enums.AggregateReturn,
			AggregateID:   locked.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.AdminUserID, Role: enums.UserRoleAdmin.String()},
			Data: payloads.RefundCompletedEvent{
				ReturnRequestID: locked.ID,
				SubOrderID:      subOrder.ID,
				AmountCents:     refundAmount,
				RefundedAt:      now,
			},
		}); err != nil {
			return err
		}

		completed, err = repo.FindByID(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload return request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.ReturnRequest, error) {
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list return requests")
	}
	return rows, nil
}

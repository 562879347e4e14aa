package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/products"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/outbox/payloads"
	"github.com/bazario/backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes the customer-facing order surface.
type Service interface {
	Get(ctx context.Context, customerUserID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, customerUserID uuid.UUID, params pagination.Params) ([]models.Order, error)
	Cancel(ctx context.Context, customerUserID, orderID uuid.UUID) error
}

type service struct {
	repo         Repository
	subOrderRepo suborders.Repository
	productRepo  *products.Repository
	tx           txRunner
	outbox       outboxPublisher
}

// NewService builds the customer order service.
func NewService(repo Repository, subOrderRepo suborders.Repository, productRepo *products.Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if subOrderRepo == nil {
		return nil, fmt.Errorf("suborders repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:         repo,
		subOrderRepo: subOrderRepo,
		productRepo:  productRepo,
		tx:           tx,
		outbox:       publisher,
	}, nil
}

func (s *service) Get(ctx context.Context, customerUserID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerUserID != customerUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, customerUserID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	if customerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByCustomer(ctx, customerUserID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

// Cancel voids an unpaid order: every sub-order is canceled, reserved stock
// returns, and the payment link is dead from the customer's point of view.
// Paid orders unwind through returns instead.
func (s *service) Cancel(ctx context.Context, customerUserID, orderID uuid.UUID) error {
	if customerUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CustomerUserID != customerUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		if order.Status == enums.OrderStatusCanceled {
			return nil
		}
		if order.Status != enums.OrderStatusPendingPayment && order.Status != enums.OrderStatusPaymentFailed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only unpaid orders can be canceled")
		}

		now := time.Now()
		if err := repo.MarkCanceled(ctx, order.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if err := s.cancelSubOrders(ctx, tx, order.ID, customerUserID, now); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: customerUserID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.OrderCanceledEvent{
				OrderID:    order.ID,
				CanceledAt: now,
			},
		})
	})
}

func (s *service) cancelSubOrders(ctx context.Context, tx *gorm.DB, orderID, actorUserID uuid.UUID, at time.Time) error {
	subOrderRepo := s.subOrderRepo.WithTx(tx)
	productRepo := s.productRepo.WithTx(tx)

	rows, err := subOrderRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub orders")
	}
	role := enums.UserRoleCustomer.String()
	note := "order canceled before payment"
	for _, subOrder := range rows {
		if subOrder.Status == enums.SubOrderStatusCanceled {
			continue
		}
		if err := subOrderRepo.UpdateStatus(ctx, subOrder.ID, enums.SubOrderStatusCanceled, at); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel sub order")
		}
		if err := subOrderRepo.InsertStatusHistory(ctx, &models.SubOrderStatusHistory{
			SubOrderID:  subOrder.ID,
			FromStatus:  subOrder.Status,
			ToStatus:    enums.SubOrderStatusCanceled,
			ActorUserID: &actorUserID,
			ActorRole:   &role,
			Note:        &note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		full, err := subOrderRepo.FindByID(ctx, subOrder.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order items")
		}
		for _, item := range full.Items {
			if err := productRepo.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
		}
	}
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

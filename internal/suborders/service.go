package suborders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/products"
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

// Actor identifies who is driving a transition.
type Actor struct {
	UserID  uuid.UUID
	StoreID *uuid.UUID
	Role    enums.UserRole
}

// TransitionInput drives one delivery state machine edge.
type TransitionInput struct {
	SubOrderID     uuid.UUID
	Actor          Actor
	ToStatus       enums.SubOrderStatus
	TrackingNumber *string
	Carrier        *string
	Note           *string
}

// Service owns the sub-order delivery lifecycle.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.SubOrder, error)
	GetForStore(ctx context.Context, storeID, subOrderID uuid.UUID) (*models.SubOrder, error)
	ListForStore(ctx context.Context, storeID uuid.UUID, status *enums.SubOrderStatus, params pagination.Params) ([]models.SubOrder, error)
	History(ctx context.Context, subOrderID uuid.UUID) ([]models.SubOrderStatusHistory, error)
}

type service struct {
	repo         Repository
	tx           txRunner
	productRepo  *products.Repository
	outbox       outboxPublisher
	returnWindow time.Duration
}

// NewService builds the sub-order lifecycle service.
func NewService(repo Repository, tx txRunner, productRepo *products.Repository, publisher outboxPublisher, returnWindow time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("suborders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if returnWindow <= 0 {
		return nil, fmt.Errorf("return window must be positive")
	}
	return &service{
		repo:         repo,
		tx:           tx,
		productRepo:  productRepo,
		outbox:       publisher,
		returnWindow: returnWindow,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.SubOrder, error) {
	if input.SubOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub order id required")
	}
	if !input.ToStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	var result *models.SubOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subOrder, err := repo.FindByIDForUpdate(ctx, input.SubOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sub order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order")
		}

		if err := authorizeTransition(subOrder, input.Actor); err != nil {
			return err
		}
		if !subOrder.Status.CanTransitionTo(input.ToStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
				WithDetails(map[string]string{
					"from": subOrder.Status.String(),
					"to":   input.ToStatus.String(),
				})
		}
		// A paid sub-order holds escrow; unwinding it goes through the
		// return/refund workflow, not a cancel.
		if input.ToStatus == enums.SubOrderStatusCanceled && subOrder.EscrowStatus == enums.EscrowStatusHeld {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrowed sub order must be refunded via a return")
		}

		now := time.Now()
		if err := repo.UpdateStatus(ctx, subOrder.ID, input.ToStatus, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update status")
		}

		if input.ToStatus == enums.SubOrderStatusShipped {
			if err := repo.UpdateShipment(ctx, subOrder.ID, input.TrackingNumber, input.Carrier); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment")
			}
		}
		if input.ToStatus == enums.SubOrderStatusDelivered {
			if err := repo.SetReturnWindowEndsAt(ctx, subOrder.ID, now.Add(s.returnWindow)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set return window")
			}
		}
		if input.ToStatus == enums.SubOrderStatusCanceled {
			if err := s.restoreStock(ctx, tx, subOrder); err != nil {
				return err
			}
		}

		role := input.Actor.Role.String()
		actorID := input.Actor.UserID
		history := &models.SubOrderStatusHistory{
			SubOrderID: subOrder.ID,
			FromStatus: subOrder.Status,
			ToStatus:   input.ToStatus,
			ActorRole:  &role,
			Note:       input.Note,
		}
		if actorID != uuid.Nil {
			history.ActorUserID = &actorID
		}
		if err := repo.InsertStatusHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubOrderStateChanged,
			AggregateType: enums.AggregateSubOrder,
			AggregateID:   subOrder.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, StoreID: input.Actor.StoreID, Role: role},
			Data: payloads.SubOrderStateChangedEvent{
				SubOrderID: subOrder.ID,
				OrderID:    subOrder.OrderID,
				StoreID:    subOrder.StoreID,
				FromStatus: subOrder.Status,
				ToStatus:   input.ToStatus,
			},
		}); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, subOrder.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload sub order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetForStore(ctx context.Context, storeID, subOrderID uuid.UUID) (*models.SubOrder, error) {
	subOrder, err := s.repo.FindByID(ctx, subOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order")
	}
	if subOrder.StoreID != storeID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sub order belongs to another store")
	}
	return subOrder, nil
}

func (s *service) ListForStore(ctx context.Context, storeID uuid.UUID, status *enums.SubOrderStatus, params pagination.Params) ([]models.SubOrder, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "store identity missing")
	}
	rows, err := s.repo.ListByStore(ctx, storeID, status, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sub orders")
	}
	return rows, nil
}

func (s *service) History(ctx context.Context, subOrderID uuid.UUID) ([]models.SubOrderStatusHistory, error) {
	rows, err := s.repo.ListStatusHistory(ctx, subOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list status history")
	}
	return rows, nil
}

// restoreStock returns reserved quantities when a sub-order is canceled before
// payment confirmation.
func (s *service) restoreStock(ctx context.Context, tx *gorm.DB, subOrder *models.SubOrder) error {
	repo := s.productRepo.WithTx(tx)
	items := subOrder.Items
	if len(items) == 0 {
		full, err := s.repo.WithTx(tx).FindByID(ctx, subOrder.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order items")
		}
		items = full.Items
	}
	for _, item := range items {
		if err := repo.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}
	return nil
}

func authorizeTransition(subOrder *models.SubOrder, actor Actor) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleVendor:
		if actor.StoreID == nil || *actor.StoreID != subOrder.StoreID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sub order belongs to another store")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only vendors manage sub order delivery")
	}
}

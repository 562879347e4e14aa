package releases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/audit"
	"github.com/bazario/backend/internal/suborders"
	"github.com/bazario/backend/internal/wallets"
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

// ReleaseInput identifies an admin escrow release.
type ReleaseInput struct {
	SubOrderID  uuid.UUID
	AdminUserID uuid.UUID
}

// Service is the admin escrow release workflow.
type Service interface {
	ListEligible(ctx context.Context, params pagination.Params) ([]EligibleSubOrder, error)
	Release(ctx context.Context, input ReleaseInput) error
}

type service struct {
	repo         Repository
	subOrderRepo suborders.Repository
	tx           txRunner
	wallets      wallets.Service
	audit        audit.Service
	outbox       outboxPublisher
}

// NewService builds the escrow release service.
func NewService(repo Repository, subOrderRepo suborders.Repository, tx txRunner, walletSvc wallets.Service, auditSvc audit.Service, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fund release repository required")
	}
	if subOrderRepo == nil {
		return nil, fmt.Errorf("suborders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:         repo,
		subOrderRepo: subOrderRepo,
		tx:           tx,
		wallets:      walletSvc,
		audit:        auditSvc,
		outbox:       publisher,
	}, nil
}

func (s *service) ListEligible(ctx context.Context, params pagination.Params) ([]EligibleSubOrder, error) {
	rows, err := s.repo.ListEligible(ctx, time.Now(), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list eligible sub orders")
	}
	return rows, nil
}

// Release moves a held payout to the vendor's available balance. Every
// precondition is rechecked under the row lock so a concurrent release or a
// freshly opened return loses cleanly.
func (s *service) Release(ctx context.Context, input ReleaseInput) error {
	if input.SubOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sub order id required")
	}
	if input.AdminUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subOrderRepo := s.subOrderRepo.WithTx(tx)

		release, err := repo.FindBySubOrderForUpdate(ctx, input.SubOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fund release not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fund release")
		}
		if release.Status != enums.FundReleaseStatusHeld {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "funds already settled").
				WithDetails(map[string]string{"status": release.Status.String()})
		}

		subOrder, err := subOrderRepo.FindByIDForUpdate(ctx, input.SubOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub order")
		}
		if subOrder.Status != enums.SubOrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sub order not delivered")
		}
		if subOrder.EscrowStatus != enums.EscrowStatusHeld {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow is not held")
		}
		now := time.Now()
		if subOrder.ReturnWindowEndsAt == nil || subOrder.ReturnWindowEndsAt.After(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return window still open")
		}
		open, err := repo.HasOpenReturn(ctx, subOrder.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open returns")
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request in flight")
		}

		if err := repo.MarkReleased(ctx, release.ID, input.AdminUserID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark fund release released")
		}
		if err := subOrderRepo.UpdateEscrowStatus(ctx, subOrder.ID, enums.EscrowStatusReleased); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update escrow status")
		}
		if err := s.wallets.ReleaseToAvailable(ctx, tx, wallets.JournalInput{
			StoreID:     subOrder.StoreID,
			SubOrderID:  subOrder.ID,
			AmountCents: release.AmountCents,
			Memo:        fmt.Sprintf("escrow release for %s", subOrder.SubOrderNumber),
			AdminUserID: &input.AdminUserID,
		}); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			AdminUserID: input.AdminUserID,
			Action:      enums.AuditActionEscrowReleased,
			TargetType:  "sub_order",
			TargetID:    subOrder.ID,
			Detail: map[string]any{
				"amount_cents": release.AmountCents,
				"store_id":     subOrder.StoreID,
			},
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFundsReleased,
			AggregateType: enums.AggregateFundRelease,
			AggregateID:   release.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.AdminUserID, Role: enums.UserRoleAdmin.String()},
			Data: payloads.FundsReleasedEvent{
				SubOrderID:  subOrder.ID,
				StoreID:     subOrder.StoreID,
				AmountCents: release.AmountCents,
				ReleasedAt:  now,
			},
		})
	})
}

package stores

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/audit"
	"github.com/bazario/backend/internal/wallets"
	dbpkg "github.com/bazario/backend/pkg/db"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

var slugScrubRe = regexp.MustCompile(`[^a-z0-9]+`)

// Service handles vendor store onboarding and back-office review.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Store, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Store, error)
	GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Store, error)
	List(ctx context.Context, status *enums.StoreStatus, params pagination.Params) ([]models.Store, error)
	Approve(ctx context.Context, input ReviewInput) error
	Suspend(ctx context.Context, input ReviewInput) error
}

// CreateInput carries the onboarding form for a new store.
type CreateInput struct {
	OwnerUserID uuid.UUID
	Name        string
	Description *string
}

// ReviewInput identifies a back-office decision on a store.
type ReviewInput struct {
	StoreID     uuid.UUID
	AdminUserID uuid.UUID
	Reason      string
}

type service struct {
	repo    Repository
	tx      txRunner
	wallets wallets.Service
	audit   audit.Service
	outbox  outboxPublisher
}

// NewService builds the store service with the required dependencies.
func NewService(repo Repository, tx txRunner, walletSvc wallets.Service, auditSvc audit.Service, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stores repository required")
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
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		wallets: walletSvc,
		audit:   auditSvc,
		outbox:  outboxSvc,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Store, error) {
	if input.OwnerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name required")
	}

	if _, err := s.repo.FindByOwner(ctx, input.OwnerUserID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already owns a store")
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing store")
	}

	store := &models.Store{
		OwnerUserID: input.OwnerUserID,
		Name:        name,
		Slug:        Slugify(name),
		Description: input.Description,
		Status:      enums.StoreStatusPendingReview,
	}

	created, err := s.repo.Create(ctx, store)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "store slug already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create store")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	return store, nil
}

func (s *service) GetByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Store, error) {
	if ownerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	store, err := s.repo.FindByOwner(ctx, ownerUserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	return store, nil
}

func (s *service) List(ctx context.Context, status *enums.StoreStatus, params pagination.Params) ([]models.Store, error) {
	rows, err := s.repo.List(ctx, status, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stores")
	}
	return rows, nil
}

// Approve moves a store to approved, provisions its wallet, and records the
// decision in the audit log, all in one transaction.
func (s *service) Approve(ctx context.Context, input ReviewInput) error {
	if err := validateReview(input); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		store, err := repo.FindByID(ctx, input.StoreID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
		}
		if store.Status == enums.StoreStatusApproved {
			return nil
		}

		now := time.Now()
		if err := repo.UpdateStatus(ctx, store.ID, enums.StoreStatusApproved, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update store status")
		}

		if _, err := s.wallets.EnsureWallet(ctx, tx, store.ID, enums.CurrencyUSD); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			AdminUserID: input.AdminUserID,
			Action:      enums.AuditActionStoreApproved,
			TargetType:  "store",
			TargetID:    store.ID,
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStoreApproved,
			AggregateType: enums.AggregateStore,
			AggregateID:   store.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.AdminUserID, Role: enums.UserRoleAdmin.String()},
			Data: map[string]any{
				"store_id":    store.ID,
				"approved_at": now,
			},
		})
	})
}

// Suspend halts a store. Held escrow stays held until each sub-order is
// individually resolved.
func (s *service) Suspend(ctx context.Context, input ReviewInput) error {
	if err := validateReview(input); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		store, err := repo.FindByID(ctx, input.StoreID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
		}
		if store.Status == enums.StoreStatusSuspended {
			return nil
		}

		now := time.Now()
		if err := repo.UpdateStatus(ctx, store.ID, enums.StoreStatusSuspended, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update store status")
		}

		detail := map[string]string{}
		if input.Reason != "" {
			detail["reason"] = input.Reason
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			AdminUserID: input.AdminUserID,
			Action:      enums.AuditActionStoreSuspended,
			TargetType:  "store",
			TargetID:    store.ID,
			Detail:      detail,
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStoreSuspended,
			AggregateType: enums.AggregateStore,
			AggregateID:   store.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.AdminUserID, Role: enums.UserRoleAdmin.String()},
			Data: map[string]any{
				"store_id":     store.ID,
				"suspended_at": now,
				"reason":       input.Reason,
			},
		})
	})
}

func validateReview(input ReviewInput) error {
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.AdminUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	return nil
}

// Slugify turns a display name into a URL-safe slug.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugScrubRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

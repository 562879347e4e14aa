package wallets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/audit"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns every wallet balance mutation. Each mutation writes a journal
// entry in the same transaction; balances never go negative.
type Service interface {
	EnsureWallet(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, currency enums.Currency) (*models.StoreWallet, error)
	CreditPending(ctx context.Context, tx *gorm.DB, input JournalInput) error
	ReleaseToAvailable(ctx context.Context, tx *gorm.DB, input JournalInput) error
	DebitRefund(ctx context.Context, tx *gorm.DB, input JournalInput) error
	Adjust(ctx context.Context, input AdjustInput) error
	GetByStore(ctx context.Context, storeID uuid.UUID) (*models.StoreWallet, error)
	ListEntries(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.WalletEntry, error)
}

// JournalInput carries one balance mutation tied to a sub-order.
type JournalInput struct {
	StoreID     uuid.UUID
	SubOrderID  uuid.UUID
	AmountCents int64
	Memo        string
	AdminUserID *uuid.UUID
}

// AdjustInput is an admin-initiated correction to the available balance.
type AdjustInput struct {
	StoreID     uuid.UUID
	AmountCents int64
	Memo        string
	AdminUserID uuid.UUID
}

type service struct {
	repo  Repository
	tx    txRunner
	audit audit.Service
}

// NewService builds the wallet service with the required dependencies.
func NewService(repo Repository, tx txRunner, auditSvc audit.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallets repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{repo: repo, tx: tx, audit: auditSvc}, nil
}

func (s *service) EnsureWallet(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, currency enums.Currency) (*models.StoreWallet, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	repo := s.repo.WithTx(tx)

	wallet, err := repo.FindWalletByStore(ctx, storeID)
	if err == nil {
		return wallet, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	if !currency.IsValid() {
		currency = enums.CurrencyUSD
	}
	created, err := repo.CreateWallet(ctx, &models.StoreWallet{
		StoreID:  storeID,
		Currency: currency,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return created, nil
}

func (s *service) CreditPending(ctx context.Context, tx *gorm.DB, input JournalInput) error {
	return s.mutate(ctx, tx, input, enums.WalletEntryTypePendingCredit, func(wallet *models.StoreWallet) error {
		wallet.PendingBalanceCents += input.AmountCents
		return nil
	})
}

func (s *service) ReleaseToAvailable(ctx context.Context, tx *gorm.DB, input JournalInput) error {
	return s.mutate(ctx, tx, input, enums.WalletEntryTypeRelease, func(wallet *models.StoreWallet) error {
		if wallet.PendingBalanceCents < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "pending balance below release amount")
		}
		wallet.PendingBalanceCents -= input.AmountCents
		wallet.AvailableBalanceCents += input.AmountCents
		return nil
	})
}

func (s *service) DebitRefund(ctx context.Context, tx *gorm.DB, input JournalInput) error {
	return s.mutate(ctx, tx, input, enums.WalletEntryTypeRefundDebit, func(wallet *models.StoreWallet) error {
		if wallet.PendingBalanceCents < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "pending balance below refund amount")
		}
		wallet.PendingBalanceCents -= input.AmountCents
		return nil
	})
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) error {
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.AdminUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if input.AmountCents == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "adjustment amount must be non-zero")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.FindWalletByStoreForUpdate(ctx, input.StoreID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
		}

		next := wallet.AvailableBalanceCents + input.AmountCents
		if next < 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "adjustment would make balance negative")
		}
		wallet.AvailableBalanceCents = next

		if err := repo.UpdateBalances(ctx, wallet.ID, wallet.PendingBalanceCents, wallet.AvailableBalanceCents); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balances")
		}

		memo := input.Memo
		entry := &models.WalletEntry{
			WalletID:             wallet.ID,
			EntryType:            enums.WalletEntryTypeAdjustment,
			AmountCents:          input.AmountCents,
			PendingAfterCents:    wallet.PendingBalanceCents,
			AvailableAfterCents:  wallet.AvailableBalanceCents,
			CreatedByAdminUserID: &input.AdminUserID,
		}
		if memo != "" {
			entry.Memo = &memo
		}
		if err := repo.InsertEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert journal entry")
		}

		return s.audit.Record(ctx, tx, audit.Entry{
			AdminUserID: input.AdminUserID,
			Action:      enums.AuditActionWalletAdjusted,
			TargetType:  "store_wallet",
			TargetID:    wallet.ID,
			Detail: map[string]any{
				"amount_cents": input.AmountCents,
				"memo":         input.Memo,
			},
		})
	})
}

func (s *service) GetByStore(ctx context.Context, storeID uuid.UUID) (*models.StoreWallet, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	wallet, err := s.repo.FindWalletByStore(ctx, storeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ListEntries(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.WalletEntry, error) {
	wallet, err := s.GetByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, wallet.ID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list journal entries")
	}
	return entries, nil
}

// mutate runs the balance change under a row lock and journals the result.
func (s *service) mutate(ctx context.Context, tx *gorm.DB, input JournalInput, entryType enums.WalletEntryType, apply func(*models.StoreWallet) error) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindWalletByStoreForUpdate(ctx, input.StoreID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	if err := apply(wallet); err != nil {
		return err
	}
	if wallet.PendingBalanceCents < 0 || wallet.AvailableBalanceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance would go negative")
	}

	if err := repo.UpdateBalances(ctx, wallet.ID, wallet.PendingBalanceCents, wallet.AvailableBalanceCents); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balances")
	}

	subOrderID := input.SubOrderID
	entry := &models.WalletEntry{
		WalletID:             wallet.ID,
		EntryType:            entryType,
		AmountCents:          input.AmountCents,
		PendingAfterCents:    wallet.PendingBalanceCents,
		AvailableAfterCents:  wallet.AvailableBalanceCents,
		CreatedByAdminUserID: input.AdminUserID,
	}
	if subOrderID != uuid.Nil {
		entry.SubOrderID = &subOrderID
	}
	if input.Memo != "" {
		memo := input.Memo
		entry.Memo = &memo
	}
	if err := repo.InsertEntry(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert journal entry")
	}
	return nil
}

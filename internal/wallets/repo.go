package wallets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/pagination"
)

// Repository is the persistence surface for store wallets and their journal.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWallet(ctx context.Context, wallet *models.StoreWallet) (*models.StoreWallet, error)
	FindWalletByStore(ctx context.Context, storeID uuid.UUID) (*models.StoreWallet, error)
	FindWalletByStoreForUpdate(ctx context.Context, storeID uuid.UUID) (*models.StoreWallet, error)
	UpdateBalances(ctx context.Context, walletID uuid.UUID, pendingCents, availableCents int64) error
	InsertEntry(ctx context.Context, entry *models.WalletEntry) error
	ListEntries(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallets repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.StoreWallet) (*models.StoreWallet, error) {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return nil, err
	}
	return wallet, nil
}

func (r *repository) FindWalletByStore(ctx context.Context, storeID uuid.UUID) (*models.StoreWallet, error) {
	var wallet models.StoreWallet
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByStoreForUpdate(ctx context.Context, storeID uuid.UUID) (*models.StoreWallet, error) {
	var wallet models.StoreWallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ?", storeID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateBalances(ctx context.Context, walletID uuid.UUID, pendingCents, availableCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.StoreWallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"pending_balance_cents":   pendingCents,
			"available_balance_cents": availableCents,
			"updated_at":              time.Now(),
		}).Error
}

func (r *repository) InsertEntry(ctx context.Context, entry *models.WalletEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletEntry, error) {
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var entries []models.WalletEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository resolves email recipients for domain events.
type Repository interface {
	OrderCustomerEmail(ctx context.Context, orderID uuid.UUID) (string, error)
	SubOrderCustomerEmail(ctx context.Context, subOrderID uuid.UUID) (string, error)
	StoreOwnerEmail(ctx context.Context, storeID uuid.UUID) (string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a recipient lookup repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) OrderCustomerEmail(ctx context.Context, orderID uuid.UUID) (string, error) {
	var email string
	err := r.db.WithContext(ctx).
		Table("orders o").
		Select("u.email").
		Joins("JOIN users u ON u.id = o.customer_user_id").
		Where("o.id = ?", orderID).
		Scan(&email).Error
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", gorm.ErrRecordNotFound
	}
	return email, nil
}

func (r *repository) SubOrderCustomerEmail(ctx context.Context, subOrderID uuid.UUID) (string, error) {
	var email string
	err := r.db.WithContext(ctx).
		Table("sub_orders so").
		Select("u.email").
		Joins("JOIN orders o ON o.id = so.order_id").
		Joins("JOIN users u ON u.id = o.customer_user_id").
		Where("so.id = ?", subOrderID).
		Scan(&email).Error
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", gorm.ErrRecordNotFound
	}
	return email, nil
}

func (r *repository) StoreOwnerEmail(ctx context.Context, storeID uuid.UUID) (string, error) {
	var email string
	err := r.db.WithContext(ctx).
		Table("stores s").
		Select("u.email").
		Joins("JOIN users u ON u.id = s.owner_user_id").
		Where("s.id = ?", storeID).
		Scan(&email).Error
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", gorm.ErrRecordNotFound
	}
	return email, nil
}

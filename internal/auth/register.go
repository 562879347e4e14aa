package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/bazario/backend/internal/stores"
	"github.com/bazario/backend/internal/users"
	"github.com/bazario/backend/pkg/config"
	"github.com/bazario/backend/pkg/db"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/security"
)

// RegisterRequest contains the payload required to create a customer account.
// When StoreName is set the account is onboarded as a vendor with a store
// awaiting review.
type RegisterRequest struct {
	FirstName        string  `json:"first_name" validate:"required"`
	LastName         string  `json:"last_name" validate:"required"`
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required,min=8"`
	Phone            *string `json:"phone,omitempty"`
	StoreName        *string `json:"store_name,omitempty"`
	StoreDescription *string `json:"store_description,omitempty"`
	AcceptTOS        bool    `json:"accept_tos"`
}

// RegisterService handles the onboarding transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !req.AcceptTOS {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accept_tos must be true")
	}
	storeName := ""
	if req.StoreName != nil {
		storeName = strings.TrimSpace(*req.StoreName)
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		storeRepo := stores.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Phone:        req.Phone,
			Role:         enums.UserRoleCustomer,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if storeName != "" {
			store, err := storeRepo.Create(ctx, &models.Store{
				OwnerUserID: user.ID,
				Name:        storeName,
				Slug:        stores.Slugify(storeName),
				Description: req.StoreDescription,
				Status:      enums.StoreStatusPendingReview,
			})
			if err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "store slug already taken")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create store")
			}
			if err := userRepo.PromoteToVendor(ctx, user.ID, store.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "associate store with user")
			}
			user.Role = enums.UserRoleVendor
			user.StoreID = &store.ID
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(created), nil
}

package adminusers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/audit"
	"github.com/bazario/backend/internal/users"
	"github.com/bazario/backend/pkg/config"
	"github.com/bazario/backend/pkg/db"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/pagination"
	"github.com/bazario/backend/pkg/security"
)

// CreateInput is the payload for provisioning a back-office user.
type CreateInput struct {
	ActorAdminUserID uuid.UUID
	Email            string
	FirstName        string
	LastName         string
}

// CreateResult returns the new admin plus their one-time password.
type CreateResult struct {
	User         *users.UserDTO `json:"user"`
	TempPassword string         `json:"temp_password"`
}

// Service manages back-office admin accounts.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	List(ctx context.Context, params pagination.Params) ([]*users.UserDTO, error)
	Deactivate(ctx context.Context, actorAdminUserID, targetUserID uuid.UUID) error
}

type service struct {
	db          *db.Client
	audit       audit.Service
	passwordCfg config.PasswordConfig
}

// NewService builds the admin user service.
func NewService(client *db.Client, auditSvc audit.Service, passwordCfg config.PasswordConfig) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("database client required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{db: client, audit: auditSvc, passwordCfg: passwordCfg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.ActorAdminUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	tempPassword, err := security.GenerateTempPassword(16)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate temp password")
	}
	passwordHash, err := security.HashPassword(tempPassword, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var result *CreateResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		created, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    input.FirstName,
			LastName:     input.LastName,
			Role:         enums.UserRoleAdmin,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create admin user")
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			AdminUserID: input.ActorAdminUserID,
			Action:      enums.AuditActionAdminUserCreated,
			TargetType:  "user",
			TargetID:    created.ID,
			Detail:      map[string]string{"email": email},
		}); err != nil {
			return err
		}

		result = &CreateResult{
			User:         users.FromModel(created),
			TempPassword: tempPassword,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]*users.UserDTO, error) {
	rows, err := users.NewRepository(s.db.DB()).ListByRole(ctx, enums.UserRoleAdmin, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list admin users")
	}
	dtos := make([]*users.UserDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, users.FromModel(&rows[i]))
	}
	return dtos, nil
}

func (s *service) Deactivate(ctx context.Context, actorAdminUserID, targetUserID uuid.UUID) error {
	if actorAdminUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if targetUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if actorAdminUserID == targetUserID {
		return pkgerrors.New(pkgerrors.CodeValidation, "admins cannot deactivate themselves")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		target, err := userRepo.FindByID(ctx, targetUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if target.Role != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeValidation, "user is not an admin")
		}
		if !target.IsActive {
			return nil
		}

		if err := userRepo.SetActive(ctx, target.ID, false); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate user")
		}

		return s.audit.Record(ctx, tx, audit.Entry{
			AdminUserID: actorAdminUserID,
			Action:      enums.AuditActionAdminUserDeactivated,
			TargetType:  "user",
			TargetID:    target.ID,
		})
	})
}

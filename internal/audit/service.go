package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/pagination"
)

// Entry captures one back-office mutation to record.
type Entry struct {
	AdminUserID uuid.UUID
	Action      enums.AuditAction
	TargetType  string
	TargetID    uuid.UUID
	Detail      any
}

// Service records and lists audit rows. Record must run inside the same
// transaction as the mutation it describes.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLog, error)
}

type service struct {
	repo Repository
}

// NewService builds the audit service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if entry.AdminUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if !entry.Action.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid audit action")
	}
	if entry.TargetType == "" || entry.TargetID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "audit target required")
	}

	row := &models.AuditLog{
		AdminUserID: entry.AdminUserID,
		Action:      entry.Action,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
	}
	if entry.Detail != nil {
		detail, err := json.Marshal(entry.Detail)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal audit detail")
		}
		row.Detail = detail
	}

	if err := s.repo.WithTx(tx).Insert(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert audit row")
	}
	return nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLog, error) {
	rows, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit rows")
	}
	return rows, nil
}

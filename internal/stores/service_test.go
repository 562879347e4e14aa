package stores

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/audit"
	"github.com/bazario/backend/internal/wallets"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRepo struct {
	store         *models.Store
	ownerStore    *models.Store
	created       *models.Store
	updatedStatus *enums.StoreStatus
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubRepo) Create(ctx context.Context, store *models.Store) (*models.Store, error) {
	if store.ID == uuid.Nil {
		store.ID = uuid.New()
	}
	s.created = store
	return store, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	if s.store == nil || s.store.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.store, nil
}

func (s *stubRepo) FindBySlug(ctx context.Context, slug string) (*models.Store, error) {
	panic("not implemented")
}

func (s *stubRepo) FindByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Store, error) {
	if s.ownerStore == nil || s.ownerStore.OwnerUserID != ownerUserID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.ownerStore, nil
}

func (s *stubRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.StoreStatus, at time.Time) error {
	s.updatedStatus = &status
	return nil
}

func (s *stubRepo) List(ctx context.Context, status *enums.StoreStatus, params pagination.Params) ([]models.Store, error) {
	panic("not implemented")
}

type stubWalletService struct {
	ensured []uuid.UUID
}

func (s *stubWalletService) EnsureWallet(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, currency enums.Currency) (*models.StoreWallet, error) {
	s.ensured = append(s.ensured, storeID)
	return &models.StoreWallet{ID: uuid.New(), StoreID: storeID, Currency: currency}, nil
}

func (s *stubWalletService) CreditPending(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	panic("not implemented")
}

func (s *stubWalletService) ReleaseToAvailable(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	panic("not implemented")
}

func (s *stubWalletService) DebitRefund(ctx context.Context, tx *gorm.DB, input wallets.JournalInput) error {
	panic("not implemented")
}

func (s *stubWalletService) Adjust(ctx context.Context, input wallets.AdjustInput) error {
	panic("not implemented")
}

func (s *stubWalletService) GetByStore(ctx context.Context, storeID uuid.UUID) (*models.StoreWallet, error) {
	panic("not implemented")
}

func (s *stubWalletService) ListEntries(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.WalletEntry, error) {
	panic("not implemented")
}

type stubAuditService struct {
	entries []audit.Entry
}

func (s *stubAuditService) Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditService) List(ctx context.Context, filter audit.ListFilter, params pagination.Params) ([]models.AuditLog, error) {
	panic("not implemented")
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type storeFixture struct {
	service Service
	repo    *stubRepo
	wallets *stubWalletService
	audit   *stubAuditService
	outbox  *stubOutboxPublisher
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	fixture := &storeFixture{
		repo:    &stubRepo{},
		wallets: &stubWalletService{},
		audit:   &stubAuditService{},
		outbox:  &stubOutboxPublisher{},
	}
	service, err := NewService(fixture.repo, stubTxRunner{}, fixture.wallets, fixture.audit, fixture.outbox)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	fixture.service = service
	return fixture
}

func TestCreateStartsInPendingReview(t *testing.T) {
	fixture := newStoreFixture(t)
	ownerID := uuid.New()

	created, err := fixture.service.Create(context.Background(), CreateInput{
		OwnerUserID: ownerID,
		Name:        "  Maple & Pine Goods  ",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if created.Status != enums.StoreStatusPendingReview {
		t.Fatalf("new store in status %s", created.Status)
	}
	if created.Name != "Maple & Pine Goods" {
		t.Fatalf("name not trimmed: %q", created.Name)
	}
	if created.Slug != "maple-pine-goods" {
		t.Fatalf("unexpected slug %q", created.Slug)
	}
}

func TestCreateRejectsSecondStorePerOwner(t *testing.T) {
	fixture := newStoreFixture(t)
	ownerID := uuid.New()
	fixture.repo.ownerStore = &models.Store{ID: uuid.New(), OwnerUserID: ownerID}

	_, err := fixture.service.Create(context.Background(), CreateInput{
		OwnerUserID: ownerID,
		Name:        "Second Shop",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestApproveProvisionsWallet(t *testing.T) {
	fixture := newStoreFixture(t)
	fixture.repo.store = &models.Store{
		ID:     uuid.New(),
		Status: enums.StoreStatusPendingReview,
	}
	adminID := uuid.New()

	err := fixture.service.Approve(context.Background(), ReviewInput{
		StoreID:     fixture.repo.store.ID,
		AdminUserID: adminID,
	})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if fixture.repo.updatedStatus == nil || *fixture.repo.updatedStatus != enums.StoreStatusApproved {
		t.Fatalf("store status not moved to approved")
	}
	if got := len(fixture.wallets.ensured); got != 1 || fixture.wallets.ensured[0] != fixture.repo.store.ID {
		t.Fatalf("wallet not provisioned for the store")
	}
	if got := len(fixture.audit.entries); got != 1 || fixture.audit.entries[0].Action != enums.AuditActionStoreApproved {
		t.Fatalf("approval audit entry missing")
	}
	if got := len(fixture.outbox.events); got != 1 || fixture.outbox.events[0].EventType != enums.EventStoreApproved {
		t.Fatalf("store approved event not emitted")
	}
}

func TestApproveAlreadyApprovedIsNoOp(t *testing.T) {
	fixture := newStoreFixture(t)
	fixture.repo.store = &models.Store{
		ID:     uuid.New(),
		Status: enums.StoreStatusApproved,
	}

	err := fixture.service.Approve(context.Background(), ReviewInput{
		StoreID:     fixture.repo.store.ID,
		AdminUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("re-approve returned error: %v", err)
	}
	if fixture.repo.updatedStatus != nil {
		t.Fatalf("re-approve touched the status")
	}
	if len(fixture.wallets.ensured) != 0 {
		t.Fatalf("re-approve provisioned another wallet")
	}
}

func TestSuspendRecordsReason(t *testing.T) {
	fixture := newStoreFixture(t)
	fixture.repo.store = &models.Store{
		ID:     uuid.New(),
		Status: enums.StoreStatusApproved,
	}
	adminID := uuid.New()

	err := fixture.service.Suspend(context.Background(), ReviewInput{
		StoreID:     fixture.repo.store.ID,
		AdminUserID: adminID,
		Reason:      "counterfeit listings",
	})
	if err != nil {
		t.Fatalf("suspend failed: %v", err)
	}

	if fixture.repo.updatedStatus == nil || *fixture.repo.updatedStatus != enums.StoreStatusSuspended {
		t.Fatalf("store status not moved to suspended")
	}
	if got := len(fixture.audit.entries); got != 1 || fixture.audit.entries[0].Action != enums.AuditActionStoreSuspended {
		t.Fatalf("suspension audit entry missing")
	}
	detail, ok := fixture.audit.entries[0].Detail.(map[string]string)
	if !ok || detail["reason"] != "counterfeit listings" {
		t.Fatalf("suspension reason not recorded: %+v", fixture.audit.entries[0].Detail)
	}
}

func TestReviewRequiresAdminIdentity(t *testing.T) {
	fixture := newStoreFixture(t)

	err := fixture.service.Approve(context.Background(), ReviewInput{StoreID: uuid.New()})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Maple & Pine Goods": "maple-pine-goods",
		"  CERAMICS by Ana ": "ceramics-by-ana",
		"100% Wool":          "100-wool",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

package suborders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/products"
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
	subOrder          *models.SubOrder
	updatedStatus     *enums.SubOrderStatus
	shipmentTracking  *string
	shipmentCarrier   *string
	returnWindowEnds  *time.Time
	history           []models.SubOrderStatusHistory
	listStatusHistory []models.SubOrderStatusHistory
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	if s.subOrder == nil || s.subOrder.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.subOrder, nil
}

func (s *stubRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	return s.FindByID(ctx, id)
}

func (s *stubRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubRepo) ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.SubOrderStatus, params pagination.Params) ([]models.SubOrder, error) {
	panic("not implemented")
}

func (s *stubRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubOrderStatus, at time.Time) error {
	s.updatedStatus = &status
	return nil
}

func (s *stubRepo) UpdateShipment(ctx context.Context, id uuid.UUID, trackingNumber, carrier *string) error {
	s.shipmentTracking = trackingNumber
	s.shipmentCarrier = carrier
	return nil
}

func (s *stubRepo) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, status enums.EscrowStatus) error {
	panic("not implemented")
}

func (s *stubRepo) UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus) error {
	panic("not implemented")
}

func (s *stubRepo) SetReturnWindowEndsAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.returnWindowEnds = &at
	return nil
}

func (s *stubRepo) InsertStatusHistory(ctx context.Context, row *models.SubOrderStatusHistory) error {
	s.history = append(s.history, *row)
	return nil
}

func (s *stubRepo) ListStatusHistory(ctx context.Context, subOrderID uuid.UUID) ([]models.SubOrderStatusHistory, error) {
	return s.listStatusHistory, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newTestService(t *testing.T, repo *stubRepo, publisher *stubOutboxPublisher) Service {
	t.Helper()
	service, err := NewService(repo, stubTxRunner{}, products.NewRepository(nil), publisher, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func vendorActor(storeID uuid.UUID) Actor {
	return Actor{UserID: uuid.New(), StoreID: &storeID, Role: enums.UserRoleVendor}
}

func TestTransitionShippedRecordsTracking(t *testing.T) {
	storeID := uuid.New()
	repo := &stubRepo{subOrder: &models.SubOrder{
		ID:      uuid.New(),
		OrderID: uuid.New(),
		StoreID: storeID,
		Status:  enums.SubOrderStatusProcessing,
	}}
	publisher := &stubOutboxPublisher{}
	service := newTestService(t, repo, publisher)

	tracking := "1Z999AA10123456784"
	carrier := "UPS"
	_, err := service.Transition(context.Background(), TransitionInput{
		SubOrderID:     repo.subOrder.ID,
		Actor:          vendorActor(storeID),
		ToStatus:       enums.SubOrderStatusShipped,
		TrackingNumber: &tracking,
		Carrier:        &carrier,
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	if repo.updatedStatus == nil || *repo.updatedStatus != enums.SubOrderStatusShipped {
		t.Fatalf("status not updated to shipped")
	}
	if repo.shipmentTracking == nil || *repo.shipmentTracking != tracking {
		t.Fatalf("tracking number not recorded")
	}
	if got := len(repo.history); got != 1 {
		t.Fatalf("expected 1 history row, got %d", got)
	}
	if repo.history[0].FromStatus != enums.SubOrderStatusProcessing || repo.history[0].ToStatus != enums.SubOrderStatusShipped {
		t.Fatalf("history row records wrong edge: %+v", repo.history[0])
	}
	if got := len(publisher.events); got != 1 {
		t.Fatalf("expected 1 outbox event, got %d", got)
	}
	if publisher.events[0].EventType != enums.EventSubOrderStateChanged {
		t.Fatalf("unexpected event type %s", publisher.events[0].EventType)
	}
}

func TestTransitionDeliveredOpensReturnWindow(t *testing.T) {
	storeID := uuid.New()
	repo := &stubRepo{subOrder: &models.SubOrder{
		ID:      uuid.New(),
		StoreID: storeID,
		Status:  enums.SubOrderStatusShipped,
	}}
	service := newTestService(t, repo, &stubOutboxPublisher{})

	before := time.Now()
	_, err := service.Transition(context.Background(), TransitionInput{
		SubOrderID: repo.subOrder.ID,
		Actor:      vendorActor(storeID),
		ToStatus:   enums.SubOrderStatusDelivered,
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	if repo.returnWindowEnds == nil {
		t.Fatalf("return window not set on delivery")
	}
	want := before.Add(7 * 24 * time.Hour)
	if repo.returnWindowEnds.Before(want) || repo.returnWindowEnds.After(want.Add(time.Minute)) {
		t.Fatalf("return window ends at %v, want about %v", repo.returnWindowEnds, want)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	storeID := uuid.New()
	repo := &stubRepo{subOrder: &models.SubOrder{
		ID:      uuid.New(),
		StoreID: storeID,
		Status:  enums.SubOrderStatusDelivered,
	}}
	service := newTestService(t, repo, &stubOutboxPublisher{})

	_, err := service.Transition(context.Background(), TransitionInput{
		SubOrderID: repo.subOrder.ID,
		Actor:      vendorActor(storeID),
		ToStatus:   enums.SubOrderStatusShipped,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.updatedStatus != nil {
		t.Fatalf("illegal edge still updated status")
	}
}

func TestTransitionBlocksCancelWhileEscrowHeld(t *testing.T) {
	storeID := uuid.New()
	repo := &stubRepo{subOrder: &models.SubOrder{
		ID:           uuid.New(),
		StoreID:      storeID,
		Status:       enums.SubOrderStatusProcessing,
		EscrowStatus: enums.EscrowStatusHeld,
	}}
	service := newTestService(t, repo, &stubOutboxPublisher{})

	_, err := service.Transition(context.Background(), TransitionInput{
		SubOrderID: repo.subOrder.ID,
		Actor:      vendorActor(storeID),
		ToStatus:   enums.SubOrderStatusCanceled,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestTransitionForbidsOtherStoresVendor(t *testing.T) {
	repo := &stubRepo{subOrder: &models.SubOrder{
		ID:      uuid.New(),
		StoreID: uuid.New(),
		Status:  enums.SubOrderStatusPending,
	}}
	service := newTestService(t, repo, &stubOutboxPublisher{})

	otherStore := uuid.New()
	_, err := service.Transition(context.Background(), TransitionInput{
		SubOrderID: repo.subOrder.ID,
		Actor:      vendorActor(otherStore),
		ToStatus:   enums.SubOrderStatusProcessing,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestTransitionForbidsCustomers(t *testing.T) {
	storeID := uuid.New()
	repo := &stubRepo{subOrder: &models.SubOrder{
		ID:      uuid.New(),
		StoreID: storeID,
		Status:  enums.SubOrderStatusPending,
	}}
	service := newTestService(t, repo, &stubOutboxPublisher{})

	_, err := service.Transition(context.Background(), TransitionInput{
		SubOrderID: repo.subOrder.ID,
		Actor:      Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer},
		ToStatus:   enums.SubOrderStatusProcessing,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestTransitionAdminBypassesStoreScope(t *testing.T) {
	repo := &stubRepo{subOrder: &models.SubOrder{
		ID:      uuid.New(),
		StoreID: uuid.New(),
		Status:  enums.SubOrderStatusPending,
	}}
	service := newTestService(t, repo, &stubOutboxPublisher{})

	_, err := service.Transition(context.Background(), TransitionInput{
		SubOrderID: repo.subOrder.ID,
		Actor:      Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin},
		ToStatus:   enums.SubOrderStatusProcessing,
	})
	if err != nil {
		t.Fatalf("admin transition failed: %v", err)
	}
	if repo.updatedStatus == nil || *repo.updatedStatus != enums.SubOrderStatusProcessing {
		t.Fatalf("status not updated by admin")
	}
}

func TestGetForStoreHidesForeignSubOrders(t *testing.T) {
	repo := &stubRepo{subOrder: &models.SubOrder{
		ID:      uuid.New(),
		StoreID: uuid.New(),
		Status:  enums.SubOrderStatusPending,
	}}
	service := newTestService(t, repo, &stubOutboxPublisher{})

	_, err := service.GetForStore(context.Background(), uuid.New(), repo.subOrder.ID)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

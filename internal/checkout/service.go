package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/backend/internal/escrow"
	"github.com/bazario/backend/internal/orders"
	"github.com/bazario/backend/internal/products"
	"github.com/bazario/backend/internal/stores"
	"github.com/bazario/backend/pkg/config"
	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/enums"
	pkgerrors "github.com/bazario/backend/pkg/errors"
	"github.com/bazario/backend/pkg/outbox"
	"github.com/bazario/backend/pkg/outbox/payloads"
	"github.com/bazario/backend/pkg/square"
	"github.com/bazario/backend/pkg/types"
	sq "github.com/square/square-go-sdk"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentLinker interface {
	CreatePaymentLink(ctx context.Context, params square.PaymentLinkCreateParams) (*sq.PaymentLink, error)
}

// Line is one requested product quantity.
type Line struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// Input is the checkout request after authentication.
type Input struct {
	CustomerUserID  uuid.UUID
	Lines           []Line
	ShippingAddress types.Address
	RedirectURL     string
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, input Input) (*models.Order, error)
}

type service struct {
	tx          txRunner
	ordersRepo  orders.Repository
	productRepo *products.Repository
	storeRepo   stores.Repository
	calculator  *escrow.Calculator
	payments    paymentLinker
	outbox      outboxPublisher
	pendingTTL  time.Duration
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	productRepo *products.Repository,
	storeRepo stores.Repository,
	calculator *escrow.Calculator,
	payments paymentLinker,
	publisher outboxPublisher,
	marketplaceCfg config.MarketplaceConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if storeRepo == nil {
		return nil, fmt.Errorf("stores repository required")
	}
	if calculator == nil {
		return nil, fmt.Errorf("settlement calculator required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment client required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if marketplaceCfg.PendingOrderTTL <= 0 {
		return nil, fmt.Errorf("pending order ttl must be positive")
	}
	return &service{
		tx:          tx,
		ordersRepo:  ordersRepo,
		productRepo: productRepo,
		storeRepo:   storeRepo,
		calculator:  calculator,
		payments:    payments,
		outbox:      publisher,
		pendingTTL:  marketplaceCfg.PendingOrderTTL,
	}, nil
}

func (s *service) Execute(ctx context.Context, input Input) (*models.Order, error) {
	if input.CustomerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	lines, err := mergeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	if addrErr := input.ShippingAddress.Validate(); addrErr != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, addrErr.Error())
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)
		storeRepo := s.storeRepo.WithTx(tx)

		grouped, productsByID, err := s.loadAndGroup(ctx, productRepo, storeRepo, lines)
		if err != nil {
			return err
		}

		for _, line := range lines {
			affected, err := productRepo.DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
					WithDetails(map[string]string{"product_id": line.ProductID.String()})
			}
		}

		orderNumber, err := ordersRepo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		var subtotalCents int64
		for _, line := range lines {
			product := productsByID[line.ProductID]
			subtotalCents += product.PriceCents * int64(line.Quantity)
		}

		now := time.Now()
		expiresAt := now.Add(s.pendingTTL)
		address := input.ShippingAddress
		created, err := ordersRepo.CreateOrder(ctx, &models.Order{
			CustomerUserID:  input.CustomerUserID,
			OrderNumber:     orderNumber,
			Currency:        enums.CurrencyUSD,
			Status:          enums.OrderStatusPendingPayment,
			PaymentStatus:   enums.PaymentStatusUnpaid,
			SubtotalCents:   subtotalCents,
			ShippingCents:   0,
			TotalCents:      subtotalCents,
			ShippingAddress: &address,
			ExpiresAt:       &expiresAt,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		subOrderIDs := make([]uuid.UUID, 0, len(grouped))
		sequence := 1
		for _, group := range grouped {
			subOrder, err := s.createSubOrder(ctx, ordersRepo, created, group, productsByID, sequence)
			if err != nil {
				return err
			}
			subOrderIDs = append(subOrderIDs, subOrder.ID)
			sequence++
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.CustomerUserID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:     created.ID,
				SubOrderIDs: subOrderIDs,
				TotalCents:  created.TotalCents,
			},
		}); err != nil {
			return err
		}

		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.attachPaymentLink(ctx, order, input.RedirectURL); err != nil {
		return nil, err
	}

	full, err := s.ordersRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return full, nil
}

type storeGroup struct {
	storeID uuid.UUID
	lines   []Line
}

// loadAndGroup validates products and stores, returning per-store line groups
// in a stable order.
func (s *service) loadAndGroup(
	ctx context.Context,
	productRepo *products.Repository,
	storeRepo stores.Repository,
	lines []Line,
) ([]storeGroup, map[uuid.UUID]*models.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	rows, err := productRepo.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	productsByID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		productsByID[rows[i].ID] = &rows[i]
	}

	groupsByStore := map[uuid.UUID]int{}
	var grouped []storeGroup
	for _, line := range lines {
		product, ok := productsByID[line.ProductID]
		if !ok {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]string{"product_id": line.ProductID.String()})
		}
		if !product.IsActive {
			return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "product is not available").
				WithDetails(map[string]string{"product_id": line.ProductID.String()})
		}
		idx, ok := groupsByStore[product.StoreID]
		if !ok {
			idx = len(grouped)
			groupsByStore[product.StoreID] = idx
			grouped = append(grouped, storeGroup{storeID: product.StoreID})
		}
		grouped[idx].lines = append(grouped[idx].lines, line)
	}

	for _, group := range grouped {
		store, err := storeRepo.FindByID(ctx, group.storeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
		}
		if store.Status != enums.StoreStatusApproved {
			return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "store is not accepting orders").
				WithDetails(map[string]string{"store_id": store.ID.String()})
		}
	}

	return grouped, productsByID, nil
}

func (s *service) createSubOrder(
	ctx context.Context,
	ordersRepo orders.Repository,
	order *models.Order,
	group storeGroup,
	productsByID map[uuid.UUID]*models.Product,
	sequence int,
) (*models.SubOrder, error) {
	var subtotalCents int64
	for _, line := range group.lines {
		product := productsByID[line.ProductID]
		subtotalCents += product.PriceCents * int64(line.Quantity)
	}

	settlement, err := s.calculator.Compute(subtotalCents, 0)
	if err != nil {
		return nil, err
	}

	subOrder, err := ordersRepo.CreateSubOrder(ctx, &models.SubOrder{
		OrderID:            order.ID,
		StoreID:            group.storeID,
		SubOrderNumber:     fmt.Sprintf("%d-%d", order.OrderNumber, sequence),
		Currency:           order.Currency,
		Status:             enums.SubOrderStatusPending,
		EscrowStatus:       enums.EscrowStatusNone,
		RefundStatus:       enums.RefundStatusNone,
		SubtotalCents:      settlement.SubtotalCents,
		ShippingCents:      settlement.ShippingCents,
		TotalCents:         settlement.TotalCents,
		CommissionRate:     settlement.CommissionRate.String(),
		CommissionCents:    settlement.CommissionCents,
		ProcessingFeeCents: settlement.ProcessingFeeCents,
		PayoutCents:        settlement.PayoutCents,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sub order")
	}

	items := make([]models.SubOrderItem, 0, len(group.lines))
	for _, line := range group.lines {
		product := productsByID[line.ProductID]
		items = append(items, models.SubOrderItem{
			SubOrderID:     subOrder.ID,
			ProductID:      product.ID,
			ProductName:    product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: product.PriceCents * int64(line.Quantity),
		})
	}
	if err := ordersRepo.CreateSubOrderItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sub order items")
	}
	return subOrder, nil
}

// attachPaymentLink registers the hosted checkout link after the order
// transaction commits. A gateway failure leaves the order pending; the client
// can retry via the payment link endpoint before the TTL expires.
func (s *service) attachPaymentLink(ctx context.Context, order *models.Order, redirectURL string) error {
	link, err := s.payments.CreatePaymentLink(ctx, square.PaymentLinkCreateParams{
		Name:        fmt.Sprintf("Order #%d", order.OrderNumber),
		AmountCents: order.TotalCents,
		Currency:    order.Currency.String(),
		ReferenceID: order.ID.String(),
		RedirectURL: redirectURL,
	})
	if err != nil {
		return err
	}
	url := ""
	if link != nil && link.GetURL() != nil {
		url = *link.GetURL()
	}
	if url == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "payment link missing url")
	}
	if err := s.ordersRepo.UpdatePaymentLink(ctx, order.ID, url, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment link")
	}
	order.PaymentLinkURL = &url
	return nil
}

func mergeLines(input []Line) ([]Line, error) {
	if len(input) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}
	indexByProduct := map[uuid.UUID]int{}
	merged := make([]Line, 0, len(input))
	for _, line := range input {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if idx, ok := indexByProduct[line.ProductID]; ok {
			merged[idx].Quantity += line.Quantity
			continue
		}
		indexByProduct[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

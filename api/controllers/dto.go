package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bazario/backend/pkg/db/models"
	"github.com/bazario/backend/pkg/types"
)

type orderResponse struct {
	ID              uuid.UUID          `json:"id"`
	OrderNumber     int64              `json:"order_number"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"payment_status"`
	Currency        string             `json:"currency"`
	SubtotalCents   int64              `json:"subtotal_cents"`
	ShippingCents   int64              `json:"shipping_cents"`
	TotalCents      int64              `json:"total_cents"`
	ShippingAddress *types.Address     `json:"shipping_address,omitempty"`
	PaymentLinkURL  *string            `json:"payment_link_url,omitempty"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	ExpiresAt       *time.Time         `json:"expires_at,omitempty"`
	SubOrders       []subOrderResponse `json:"sub_orders,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

type subOrderResponse struct {
	ID                 uuid.UUID      `json:"id"`
	OrderID            uuid.UUID      `json:"order_id"`
	StoreID            uuid.UUID      `json:"store_id"`
	SubOrderNumber     string         `json:"sub_order_number"`
	Status             string         `json:"status"`
	EscrowStatus       string         `json:"escrow_status"`
	RefundStatus       string         `json:"refund_status"`
	SubtotalCents      int64          `json:"subtotal_cents"`
	TotalCents         int64          `json:"total_cents"`
	CommissionCents    int64          `json:"commission_cents"`
	ProcessingFeeCents int64          `json:"processing_fee_cents"`
	PayoutCents        int64          `json:"payout_cents"`
	TrackingNumber     *string        `json:"tracking_number,omitempty"`
	Carrier            *string        `json:"carrier,omitempty"`
	ShippedAt          *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time     `json:"delivered_at,omitempty"`
	ReturnWindowEndsAt *time.Time     `json:"return_window_ends_at,omitempty"`
	Items              []itemResponse `json:"items,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

type itemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int64     `json:"line_total_cents"`
}

type productResponse struct {
	ID            uuid.UUID `json:"id"`
	StoreID       uuid.UUID `json:"store_id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   *string   `json:"description,omitempty"`
	PriceCents    int64     `json:"price_cents"`
	Currency      string    `json:"currency"`
	StockQuantity int       `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

type storeResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type walletResponse struct {
	StoreID               uuid.UUID `json:"store_id"`
	Currency              string    `json:"currency"`
	PendingBalanceCents   int64     `json:"pending_balance_cents"`
	AvailableBalanceCents int64     `json:"available_balance_cents"`
}

type walletEntryResponse struct {
	ID                  uuid.UUID  `json:"id"`
	SubOrderID          *uuid.UUID `json:"sub_order_id,omitempty"`
	EntryType           string     `json:"entry_type"`
	AmountCents         int64      `json:"amount_cents"`
	PendingAfterCents   int64      `json:"pending_after_cents"`
	AvailableAfterCents int64      `json:"available_after_cents"`
	Memo                *string    `json:"memo,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type returnResponse struct {
	ID                uuid.UUID  `json:"id"`
	SubOrderID        uuid.UUID  `json:"sub_order_id"`
	Status            string     `json:"status"`
	Reason            string     `json:"reason"`
	DecisionNote      *string    `json:"decision_note,omitempty"`
	RefundAmountCents *int64     `json:"refund_amount_cents,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type auditLogResponse struct {
	ID          uuid.UUID       `json:"id"`
	AdminUserID uuid.UUID       `json:"admin_user_id"`
	Action      string          `json:"action"`
	TargetType  string          `json:"target_type"`
	TargetID    uuid.UUID       `json:"target_id"`
	Detail      json.RawMessage `json:"detail,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	subOrders := make([]subOrderResponse, 0, len(order.SubOrders))
	for i := range order.SubOrders {
		subOrders = append(subOrders, newSubOrderResponse(&order.SubOrders[i]))
	}
	return orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status.String(),
		PaymentStatus:   order.PaymentStatus.String(),
		Currency:        string(order.Currency),
		SubtotalCents:   order.SubtotalCents,
		ShippingCents:   order.ShippingCents,
		TotalCents:      order.TotalCents,
		ShippingAddress: order.ShippingAddress,
		PaymentLinkURL:  order.PaymentLinkURL,
		PaidAt:          order.PaidAt,
		ExpiresAt:       order.ExpiresAt,
		SubOrders:       subOrders,
		CreatedAt:       order.CreatedAt,
	}
}

func newOrderListResponse(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	return out
}

func newSubOrderResponse(subOrder *models.SubOrder) subOrderResponse {
	if subOrder == nil {
		return subOrderResponse{}
	}
	items := make([]itemResponse, 0, len(subOrder.Items))
	for _, item := range subOrder.Items {
		items = append(items, itemResponse{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return subOrderResponse{
		ID:                 subOrder.ID,
		OrderID:            subOrder.OrderID,
		StoreID:            subOrder.StoreID,
		SubOrderNumber:     subOrder.SubOrderNumber,
		Status:             subOrder.Status.String(),
		EscrowStatus:       subOrder.EscrowStatus.String(),
		RefundStatus:       subOrder.RefundStatus.String(),
		SubtotalCents:      subOrder.SubtotalCents,
		TotalCents:         subOrder.TotalCents,
		CommissionCents:    subOrder.CommissionCents,
		ProcessingFeeCents: subOrder.ProcessingFeeCents,
		PayoutCents:        subOrder.PayoutCents,
		TrackingNumber:     subOrder.TrackingNumber,
		Carrier:            subOrder.Carrier,
		ShippedAt:          subOrder.ShippedAt,
		DeliveredAt:        subOrder.DeliveredAt,
		ReturnWindowEndsAt: subOrder.ReturnWindowEndsAt,
		Items:              items,
		CreatedAt:          subOrder.CreatedAt,
	}
}

func newSubOrderListResponse(subOrders []models.SubOrder) []subOrderResponse {
	out := make([]subOrderResponse, 0, len(subOrders))
	for i := range subOrders {
		out = append(out, newSubOrderResponse(&subOrders[i]))
	}
	return out
}

func newProductResponse(product *models.Product) productResponse {
	if product == nil {
		return productResponse{}
	}
	return productResponse{
		ID:            product.ID,
		StoreID:       product.StoreID,
		Name:          product.Name,
		Slug:          product.Slug,
		Description:   product.Description,
		PriceCents:    product.PriceCents,
		Currency:      string(product.Currency),
		StockQuantity: product.StockQuantity,
		IsActive:      product.IsActive,
		CreatedAt:     product.CreatedAt,
	}
}

func newStoreResponse(store *models.Store) storeResponse {
	if store == nil {
		return storeResponse{}
	}
	return storeResponse{
		ID:          store.ID,
		Name:        store.Name,
		Slug:        store.Slug,
		Description: store.Description,
		Status:      store.Status.String(),
		ApprovedAt:  store.ApprovedAt,
		CreatedAt:   store.CreatedAt,
	}
}

func newWalletResponse(wallet *models.StoreWallet) walletResponse {
	if wallet == nil {
		return walletResponse{}
	}
	return walletResponse{
		StoreID:               wallet.StoreID,
		Currency:              string(wallet.Currency),
		PendingBalanceCents:   wallet.PendingBalanceCents,
		AvailableBalanceCents: wallet.AvailableBalanceCents,
	}
}

func newWalletEntryResponse(entry *models.WalletEntry) walletEntryResponse {
	if entry == nil {
		return walletEntryResponse{}
	}
	return walletEntryResponse{
		ID:                  entry.ID,
		SubOrderID:          entry.SubOrderID,
		EntryType:           entry.EntryType.String(),
		AmountCents:         entry.AmountCents,
		PendingAfterCents:   entry.PendingAfterCents,
		AvailableAfterCents: entry.AvailableAfterCents,
		Memo:                entry.Memo,
		CreatedAt:           entry.CreatedAt,
	}
}

func newAuditLogResponse(row *models.AuditLog) auditLogResponse {
	if row == nil {
		return auditLogResponse{}
	}
	return auditLogResponse{
		ID:          row.ID,
		AdminUserID: row.AdminUserID,
		Action:      row.Action.String(),
		TargetType:  row.TargetType,
		TargetID:    row.TargetID,
		Detail:      row.Detail,
		CreatedAt:   row.CreatedAt,
	}
}

func newReturnResponse(request *models.ReturnRequest) returnResponse {
	if request == nil {
		return returnResponse{}
	}
	return returnResponse{
		ID:                request.ID,
		SubOrderID:        request.SubOrderID,
		Status:            request.Status.String(),
		Reason:            request.Reason,
		DecisionNote:      request.DecisionNote,
		RefundAmountCents: request.RefundAmountCents,
		DecidedAt:         request.DecidedAt,
		RefundedAt:        request.RefundedAt,
		CreatedAt:         request.CreatedAt,
	}
}

package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
)

// PaymentLinkCreateParams contains the inputs for a hosted checkout link.
type PaymentLinkCreateParams struct {
	Name           string
	AmountCents    int64
	Currency       string
	ReferenceID    string
	RedirectURL    string
	IdempotencyKey string
}

func (p PaymentLinkCreateParams) toSquareRequest(idempotencyKey, locationID string) *sqcheckout.CreatePaymentLinkRequest {
	req := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		QuickPay: &sq.QuickPay{
			Name:       p.Name,
			PriceMoney: moneyPtr(p.AmountCents, p.Currency),
			LocationID: locationID,
		},
	}
	opts := &sq.CheckoutOptions{}
	hasOpts := false
	if trimmed := strings.TrimSpace(p.RedirectURL); trimmed != "" {
		opts.RedirectURL = ptrString(trimmed)
		hasOpts = true
	}
	if hasOpts {
		req.CheckoutOptions = opts
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.PaymentNote = ptrString(trimmed)
	}
	return req
}

// RefundCreateParams encapsulates the inputs for refunding a payment.
type RefundCreateParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundCreateParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountMoney:    moneyPtr(p.AmountCents, p.Currency),
	}
	if trimmed := strings.TrimSpace(p.PaymentID); trimmed != "" {
		req.PaymentID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

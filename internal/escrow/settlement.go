package escrow

import (
	"github.com/shopspring/decimal"

	"github.com/bazario/backend/pkg/config"
	pkgerrors "github.com/bazario/backend/pkg/errors"
)

// Settlement is the immutable money split snapshotted onto a sub-order at
// creation time. CommissionCents + ProcessingFeeCents + PayoutCents always
// equals TotalCents; the payout absorbs rounding.
type Settlement struct {
	SubtotalCents      int64
	ShippingCents      int64
	TotalCents         int64
	CommissionRate     decimal.Decimal
	CommissionCents    int64
	ProcessingFeeCents int64
	PayoutCents        int64
}

// Calculator derives settlement snapshots from the marketplace rate config.
type Calculator struct {
	commissionRate    decimal.Decimal
	processingFeeRate decimal.Decimal
	processingFeeFix  int64
}

// NewCalculator validates the marketplace config and builds a calculator.
func NewCalculator(cfg config.MarketplaceConfig) (*Calculator, error) {
	commissionRate, err := cfg.CommissionRateDecimal()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse commission rate")
	}
	feeRate, err := cfg.ProcessingFeeRateDecimal()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse processing fee rate")
	}
	if cfg.ProcessingFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processing fee cents must be non-negative")
	}
	return &Calculator{
		commissionRate:    commissionRate,
		processingFeeRate: feeRate,
		processingFeeFix:  cfg.ProcessingFeeCents,
	}, nil
}

// CommissionRate exposes the configured commission rate.
func (c *Calculator) CommissionRate() decimal.Decimal {
	return c.commissionRate
}

// Compute produces the settlement snapshot for a sub-order's amounts.
// Commission applies to the merchandise subtotal; the processing fee applies to
// the full charged total (subtotal plus shipping).
func (c *Calculator) Compute(subtotalCents, shippingCents int64) (Settlement, error) {
	if subtotalCents < 0 {
		return Settlement{}, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must be non-negative")
	}
	if shippingCents < 0 {
		return Settlement{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping must be non-negative")
	}

	totalCents := subtotalCents + shippingCents

	subtotal := decimal.NewFromInt(subtotalCents)
	total := decimal.NewFromInt(totalCents)

	commissionCents := subtotal.Mul(c.commissionRate).Round(0).IntPart()
	feeCents := total.Mul(c.processingFeeRate).Round(0).IntPart() + c.processingFeeFix

	payoutCents := totalCents - commissionCents - feeCents
	if payoutCents < 0 {
		return Settlement{}, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "settlement payout would be negative").
			WithDetails(map[string]int64{
				"total_cents":      totalCents,
				"commission_cents": commissionCents,
				"fee_cents":        feeCents,
			})
	}

	return Settlement{
		SubtotalCents:      subtotalCents,
		ShippingCents:      shippingCents,
		TotalCents:         totalCents,
		CommissionRate:     c.commissionRate,
		CommissionCents:    commissionCents,
		ProcessingFeeCents: feeCents,
		PayoutCents:        payoutCents,
	}, nil
}

package escrow

import (
	"testing"

	"github.com/bazario/backend/pkg/config"
	pkgerrors "github.com/bazario/backend/pkg/errors"
)

func defaultConfig() config.MarketplaceConfig {
	return config.MarketplaceConfig{
		CommissionRate:     "0.10",
		ProcessingFeeRate:  "0.029",
		ProcessingFeeCents: 30,
	}
}

func TestComputeSplitsTotal(t *testing.T) {
	calc, err := NewCalculator(defaultConfig())
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	s, err := calc.Compute(10000, 500)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if s.TotalCents != 10500 {
		t.Fatalf("expected total 10500, got %d", s.TotalCents)
	}
	if s.CommissionCents != 1000 {
		t.Fatalf("expected commission 1000, got %d", s.CommissionCents)
	}
	// 10500 * 0.029 = 304.5 -> 305, plus 30 fixed
	if s.ProcessingFeeCents != 335 {
		t.Fatalf("expected fee 335, got %d", s.ProcessingFeeCents)
	}
	if got := s.CommissionCents + s.ProcessingFeeCents + s.PayoutCents; got != s.TotalCents {
		t.Fatalf("split does not cover total: %d != %d", got, s.TotalCents)
	}
}

func TestComputeRoundingNeverLeaks(t *testing.T) {
	calc, err := NewCalculator(defaultConfig())
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	for _, subtotal := range []int64{1, 33, 99, 101, 12345, 999999} {
		s, err := calc.Compute(subtotal, 0)
		if err != nil {
			t.Fatalf("Compute(%d): %v", subtotal, err)
		}
		if got := s.CommissionCents + s.ProcessingFeeCents + s.PayoutCents; got != s.TotalCents {
			t.Fatalf("subtotal %d: split %d != total %d", subtotal, got, s.TotalCents)
		}
	}
}

func TestComputeZeroSubtotal(t *testing.T) {
	calc, err := NewCalculator(defaultConfig())
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	if _, err := calc.Compute(0, 0); err == nil {
		t.Fatal("expected error for zero total with fixed fee")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected insufficient funds error, got %v", err)
	}
}

func TestComputeRejectsNegativeInputs(t *testing.T) {
	calc, err := NewCalculator(defaultConfig())
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	if _, err := calc.Compute(-1, 0); err == nil {
		t.Fatal("expected error for negative subtotal")
	}
	if _, err := calc.Compute(100, -1); err == nil {
		t.Fatal("expected error for negative shipping")
	}
}

func TestNewCalculatorRejectsBadRates(t *testing.T) {
	cfg := defaultConfig()
	cfg.CommissionRate = "not-a-number"
	if _, err := NewCalculator(cfg); err == nil {
		t.Fatal("expected error for malformed commission rate")
	}

	cfg = defaultConfig()
	cfg.ProcessingFeeCents = -5
	if _, err := NewCalculator(cfg); err == nil {
		t.Fatal("expected error for negative fixed fee")
	}
}

package services

import (
	"time"

	"nhatro_app/internal/models"
)

// Partial-payment business rules. Percent bounds are checked against the
// outstanding amount at validation time, inside the same per-bill critical
// section as the mutation that follows.
const (
	MinPaymentRatio      = 0.5 // at least 50% of outstanding
	FirstMaxPaymentRatio = 0.8 // at most 80% on the very first payment
	CooldownDays         = 30
	PaymentURLLockTTL    = 15 * time.Minute
)

// RuleEngine validates whether a proposed partial payment is allowed.
type RuleEngine struct{}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// ValidatePartialPayment checks tier bounds and the 30-day cooldown.
// paymentCount is the number of successfully applied payments on the bill so
// far; the 80% cap only binds the first one.
func (r *RuleEngine) ValidatePartialPayment(bill *models.Bill, amount float64, paymentCount int, now time.Time) error {
	if bill.Status || bill.OutstandingAmount <= 0 {
		return NewValidationError("bill %d is already fully paid", bill.ID)
	}
	if amount <= 0 {
		return NewValidationError("payment amount must be positive, got %.2f", amount)
	}

	minPayment := bill.OutstandingAmount * MinPaymentRatio
	if amount < minPayment {
		return NewValidationError(
			"payment amount %.0f is below the minimum %.0f (50%% of outstanding %.0f)",
			amount, minPayment, bill.OutstandingAmount)
	}

	maxPayment := bill.OutstandingAmount
	if paymentCount == 0 {
		maxPayment = bill.OutstandingAmount * FirstMaxPaymentRatio
		if amount > maxPayment {
			return NewValidationError(
				"payment amount %.0f exceeds the maximum %.0f (80%% of outstanding %.0f for a first payment)",
				amount, maxPayment, bill.OutstandingAmount)
		}
	} else if amount > maxPayment {
		return NewValidationError(
			"payment amount %.0f exceeds the outstanding amount %.0f",
			amount, maxPayment)
	}

	if bill.IsPartiallyPaid && bill.LastPaymentDate != nil {
		elapsed := now.Sub(*bill.LastPaymentDate)
		cooldown := time.Duration(CooldownDays) * 24 * time.Hour
		if elapsed < cooldown {
			remaining := CooldownDays - int(elapsed.Hours()/24)
			return NewValidationError(
				"next partial payment allowed %d days after the previous one: %d days remaining",
				CooldownDays, remaining)
		}
	}

	return nil
}

// CheckCashRequestLock rejects a new cash-payment request while the advisory
// payment-url lock from a previous request is still ticking. Gateway payments
// are not blocked by it.
func (r *RuleEngine) CheckCashRequestLock(bill *models.Bill, now time.Time) error {
	if bill.PaymentURLLocked(now) {
		remaining := bill.PaymentURLLockedUntil.Sub(now)
		minutes := int(remaining.Minutes()) + 1
		return NewValidationError(
			"a cash payment request for this bill is already pending: locked for %d more minute(s)",
			minutes)
	}
	return nil
}

package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

// CashPaymentService runs the two-step manual confirmation flow: a landlord
// records a tenant's cash offer as a PENDING history row plus a 15-minute
// advisory lock on the bill, then later confirms or rejects it. Terminal
// states are final.
type CashPaymentService struct {
	ledger   *LedgerService
	rules    *RuleEngine
	history  *HistoryRecorder
	interest *InterestCalculator
	logger   *zap.Logger
}

func NewCashPaymentService(ledger *LedgerService, rules *RuleEngine, history *HistoryRecorder, interest *InterestCalculator, logger *zap.Logger) *CashPaymentService {
	return &CashPaymentService{
		ledger:   ledger,
		rules:    rules,
		history:  history,
		interest: interest,
		logger:   logger,
	}
}

// RequestPartialPayment validates the proposed amount, places the payment-url
// lock and appends a PENDING history row. fee is the partial-payment fee to be
// collected alongside the principal on confirmation (zero when waived).
func (s *CashPaymentService) RequestPartialPayment(billID uint, amount, fee float64, notes string) (*models.PaymentHistory, error) {
	var row *models.PaymentHistory

	err := s.ledger.WithBill(billID, func(tx *gorm.DB, bill *models.Bill) error {
		now := time.Now()

		if err := s.rules.CheckCashRequestLock(bill, now); err != nil {
			return err
		}

		paymentCount, err := s.history.CountApplied(tx, bill.ID)
		if err != nil {
			return err
		}
		if err := s.rules.ValidatePartialPayment(bill, amount, paymentCount, now); err != nil {
			return err
		}
		if fee < 0 {
			return NewValidationError("partial payment fee must not be negative, got %.2f", fee)
		}

		lockedUntil := now.Add(PaymentURLLockTTL)
		bill.PaymentURLLockedUntil = &lockedUntil
		if err := tx.Save(bill).Error; err != nil {
			return err
		}

		months := s.interest.MonthsOverdue(bill.DueDate, now)
		row, err = s.history.Record(tx, RecordParams{
			Bill:              bill,
			Principal:         amount,
			TotalCollected:    amount + fee,
			PartialPaymentFee: fee,
			Method:            models.PaymentMethodCash,
			Status:            models.PaymentStatusPending,
			TransactionID:     "cash-" + uuid.New().String(),
			Notes:             notes,
			OutstandingBefore: bill.OutstandingAmount,
			PaidBefore:        bill.PaidAmount,
			MonthsOverdue:     months,
			PaymentDate:       now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cash payment requested",
		zap.Uint("bill_id", billID),
		zap.Uint("history_id", row.ID),
		zap.Float64("amount", amount))
	return row, nil
}

// Confirm transitions a PENDING cash request to SUCCESS: applies the principal
// and fee to the ledger, settles the bill status, clears the lock and stamps
// the audit snapshots onto the request row.
func (s *CashPaymentService) Confirm(billID, historyID uint) (*models.PaymentHistory, error) {
	var row *models.PaymentHistory

	err := s.ledger.WithBill(billID, func(tx *gorm.DB, bill *models.Bill) error {
		var err error
		row, err = s.history.GetByID(tx, historyID)
		if err != nil {
			return err
		}
		if err := s.checkPending(row, bill); err != nil {
			return err
		}

		outstandingBefore := bill.OutstandingAmount
		paidBefore := bill.PaidAmount

		if err := s.ledger.ApplyPayment(tx, bill, row.PaymentAmount); err != nil {
			return err
		}
		if err := s.ledger.AddFee(tx, bill, row.PartialPaymentFee); err != nil {
			return err
		}

		bill.PaymentURLLockedUntil = nil
		if err := s.ledger.SettleStatus(tx, bill); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":             models.PaymentStatusSuccess,
			"payment_date":       now,
			"outstanding_before": outstandingBefore,
			"outstanding_after":  bill.OutstandingAmount,
			"paid_before":        paidBefore,
			"paid_after":         bill.PaidAmount,
			"is_partial_payment": row.PaymentAmount < outstandingBefore,
			"notes":              appendNote(row.Notes, "confirmed by landlord"),
		}
		if err := tx.Model(row).Updates(updates).Error; err != nil {
			return err
		}

		row.Status = models.PaymentStatusSuccess
		row.PaymentDate = now
		row.OutstandingBefore = outstandingBefore
		row.OutstandingAfter = bill.OutstandingAmount
		row.PaidBefore = paidBefore
		row.PaidAfter = bill.PaidAmount
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cash payment confirmed",
		zap.Uint("bill_id", billID),
		zap.Uint("history_id", historyID))
	return row, nil
}

// Reject transitions a PENDING cash request to REJECTED and clears the lock
// without touching the ledger balance.
func (s *CashPaymentService) Reject(billID, historyID uint, reason string) (*models.PaymentHistory, error) {
	var row *models.PaymentHistory

	err := s.ledger.WithBill(billID, func(tx *gorm.DB, bill *models.Bill) error {
		var err error
		row, err = s.history.GetByID(tx, historyID)
		if err != nil {
			return err
		}
		if err := s.checkPending(row, bill); err != nil {
			return err
		}

		bill.PaymentURLLockedUntil = nil
		if err := tx.Save(bill).Error; err != nil {
			return err
		}

		note := "rejected"
		if reason != "" {
			note = "rejected: " + reason
		}
		updates := map[string]interface{}{
			"status": models.PaymentStatusRejected,
			"notes":  appendNote(row.Notes, note),
		}
		if err := tx.Model(row).Updates(updates).Error; err != nil {
			return err
		}
		row.Status = models.PaymentStatusRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cash payment rejected",
		zap.Uint("bill_id", billID),
		zap.Uint("history_id", historyID))
	return row, nil
}

// checkPending re-validates the bill/method/status triple before a terminal
// transition.
func (s *CashPaymentService) checkPending(row *models.PaymentHistory, bill *models.Bill) error {
	if row.BillID != bill.ID {
		return NewValidationError("payment %d does not belong to bill %d", row.ID, bill.ID)
	}
	if row.PaymentMethod != models.PaymentMethodCash {
		return NewValidationError("payment %d is not a cash payment", row.ID)
	}
	if row.Status != models.PaymentStatusPending {
		return NewValidationError("payment %d is already resolved (%s)", row.ID, row.Status)
	}
	return nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}

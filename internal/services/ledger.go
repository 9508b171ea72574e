package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

// LedgerService owns every mutation of a bill's balance. All writes to a given
// bill run inside WithBill, which holds a per-bill mutex for the whole
// snapshot-before / mutate / snapshot-after sequence and wraps it in one DB
// transaction. The service assumes a single-instance deployment; the unique
// index on PaymentHistory.TransactionID backstops gateway idempotency if that
// assumption is ever broken.
type LedgerService struct {
	db     *gorm.DB
	logger *zap.Logger

	mu        sync.Mutex
	billLocks map[uint]*sync.Mutex
}

func NewLedgerService(db *gorm.DB, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		db:        db,
		logger:    logger,
		billLocks: make(map[uint]*sync.Mutex),
	}
}

func (s *LedgerService) lockFor(billID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.billLocks[billID]
	if !ok {
		l = &sync.Mutex{}
		s.billLocks[billID] = l
	}
	return l
}

// WithBill serializes fn against every other writer of the same bill. The bill
// is loaded fresh inside the transaction so fn always sees committed state.
func (s *LedgerService) WithBill(billID uint, fn func(tx *gorm.DB, bill *models.Bill) error) error {
	l := s.lockFor(billID)
	l.Lock()
	defer l.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		var bill models.Bill
		if err := tx.First(&bill, billID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &NotFoundError{Resource: "bill", ID: billID}
			}
			return err
		}
		return fn(tx, &bill)
	})
}

// ApplyPayment adds principal to the bill's paid amount and recomputes the
// derived balance fields. It does not flip Status; the caller decides that
// from the recomputed outstanding. Must run inside WithBill.
func (s *LedgerService) ApplyPayment(tx *gorm.DB, bill *models.Bill, principal float64) error {
	if principal <= 0 {
		return NewValidationError("payment principal must be positive, got %.2f", principal)
	}

	now := time.Now()
	bill.PaidAmount += principal
	bill.LastPaymentDate = &now
	bill.Recalculate()

	if err := tx.Save(bill).Error; err != nil {
		return err
	}

	s.logger.Info("payment applied",
		zap.Uint("bill_id", bill.ID),
		zap.Float64("principal", principal),
		zap.Float64("outstanding", bill.OutstandingAmount))
	return nil
}

// AddFee accumulates a partial-payment fee on the bill. Fees never reduce the
// outstanding principal. Must run inside WithBill.
func (s *LedgerService) AddFee(tx *gorm.DB, bill *models.Bill, fee float64) error {
	if fee < 0 {
		return NewValidationError("fee must not be negative, got %.2f", fee)
	}
	if fee == 0 {
		return nil
	}

	bill.PartialPaymentFeesCollected += fee
	if err := tx.Save(bill).Error; err != nil {
		return err
	}

	s.logger.Info("fee collected",
		zap.Uint("bill_id", bill.ID),
		zap.Float64("fee", fee))
	return nil
}

// SettleStatus flips the paid flag from the recomputed outstanding amount.
func (s *LedgerService) SettleStatus(tx *gorm.DB, bill *models.Bill) error {
	bill.Status = bill.OutstandingAmount <= 0
	return tx.Save(bill).Error
}

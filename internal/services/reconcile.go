package services

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

const txnGuardTTL = 24 * time.Hour

// Reconciler ingests VNPAY callbacks (browser return and server IPN both land
// here) and applies each settled transaction to the ledger exactly once.
// Idempotency is layered: a Redis SetNX fast path absorbs straight duplicate
// deliveries, the history lookup under the per-bill lock is the authoritative
// check, and the unique index on transaction_id is the last line.
type Reconciler struct {
	ledger   *LedgerService
	history  *HistoryRecorder
	vnpay    *VNPayService
	interest *InterestCalculator
	cache    *RedisCache
	notify   *NotificationSender
	logger   *zap.Logger
}

func NewReconciler(ledger *LedgerService, history *HistoryRecorder, vnpay *VNPayService, interest *InterestCalculator, cache *RedisCache, notify *NotificationSender, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		ledger:   ledger,
		history:  history,
		vnpay:    vnpay,
		interest: interest,
		cache:    cache,
		notify:   notify,
		logger:   logger,
	}
}

// ReconcileResult is what a processed callback settled to.
type ReconcileResult struct {
	Bill      *models.Bill           `json:"bill"`
	Payment   *models.PaymentHistory `json:"payment"`
	Duplicate bool                   `json:"duplicate"`
}

// ProcessCallback verifies and applies one gateway notification. A duplicate
// transaction returns the previously recorded outcome with Duplicate set, not
// an error, so redelivered IPNs get a success acknowledgment.
func (r *Reconciler) ProcessCallback(ctx context.Context, query url.Values) (*ReconcileResult, error) {
	if err := r.vnpay.VerifyCallback(query); err != nil {
		r.logger.Warn("gateway callback rejected", zap.Error(err))
		return nil, err
	}

	cb, err := ParseCallback(query)
	if err != nil {
		return nil, err
	}
	if !cb.Success() {
		return nil, NewValidationError(
			"gateway reported failure: response code %s, transaction status %s",
			cb.ResponseCode, cb.TransactionStatus)
	}
	if cb.TransactionNo == "" {
		return nil, NewComputationError("callback carries no vnp_TransactionNo")
	}

	billID, originalAmount, hasOriginal, err := DecodeOrderInfo(cb.OrderInfo)
	if err != nil {
		return nil, err
	}
	if !hasOriginal {
		// Full payment: the whole charge is principal.
		originalAmount = cb.Amount
	}
	if originalAmount <= 0 {
		return nil, NewComputationError("resolved principal %.2f is not positive", originalAmount)
	}

	// Fast path: a concurrent redelivery loses SetNX and short-circuits to the
	// recorded outcome. Redis being down just means we fall through to the
	// authoritative check below.
	won, nxErr := r.cache.SetNX(ctx, "billing:vnpay-txn:"+cb.TransactionNo, billID, txnGuardTTL)
	if nxErr != nil {
		r.logger.Warn("redis duplicate guard unavailable", zap.Error(nxErr))
	} else if !won {
		if result, err := r.priorResult(cb.TransactionNo); err == nil && result != nil {
			return result, nil
		}
	}

	var result *ReconcileResult
	err = r.ledger.WithBill(billID, func(tx *gorm.DB, bill *models.Bill) error {
		existing, err := r.history.FindByTransactionID(tx, cb.TransactionNo)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &ReconcileResult{Bill: bill, Payment: existing, Duplicate: true}
			return nil
		}

		outstandingBefore := bill.OutstandingAmount
		paidBefore := bill.PaidAmount
		partialFee := cb.Amount - originalAmount
		if partialFee < 0 {
			partialFee = 0
		}

		if err := r.ledger.ApplyPayment(tx, bill, originalAmount); err != nil {
			return err
		}
		if err := r.ledger.AddFee(tx, bill, partialFee); err != nil {
			return err
		}

		bill.PaymentURLLockedUntil = nil
		if err := r.ledger.SettleStatus(tx, bill); err != nil {
			return err
		}

		now := time.Now()
		months := r.interest.MonthsOverdue(bill.DueDate, now)
		row, err := r.history.Record(tx, RecordParams{
			Bill:              bill,
			Principal:         originalAmount,
			TotalCollected:    cb.Amount,
			PartialPaymentFee: partialFee,
			Method:            models.PaymentMethodVNPay,
			Status:            models.PaymentStatusSuccess,
			TransactionID:     cb.TransactionNo,
			Notes:             "vnpay " + cb.TxnRef,
			OutstandingBefore: outstandingBefore,
			PaidBefore:        paidBefore,
			MonthsOverdue:     months,
			PaymentDate:       now,
		})
		if err != nil {
			return err
		}

		result = &ReconcileResult{Bill: bill, Payment: row}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		r.logger.Info("gateway payment reconciled",
			zap.Uint("bill_id", result.Bill.ID),
			zap.String("transaction_no", cb.TransactionNo),
			zap.Float64("principal", originalAmount),
			zap.Float64("total_charged", cb.Amount))

		// Best effort only; a notification failure never unwinds the ledger.
		go r.notify.PaymentReceived(result.Bill, result.Payment)
	}

	return result, nil
}

func (r *Reconciler) priorResult(transactionNo string) (*ReconcileResult, error) {
	row, err := r.history.FindByTransactionID(r.ledger.db, transactionNo)
	if err != nil || row == nil {
		return nil, err
	}
	var bill models.Bill
	if err := r.ledger.db.First(&bill, row.BillID).Error; err != nil {
		return nil, err
	}
	return &ReconcileResult{Bill: &bill, Payment: row, Duplicate: true}, nil
}

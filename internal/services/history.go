package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

const statsCacheTTL = 5 * time.Minute

// HistoryRecorder owns the append-only payment audit trail. Snapshots in
// RecordParams must be taken inside the same per-bill critical section as the
// ledger mutation, otherwise the before/after pairs race with other writers.
type HistoryRecorder struct {
	db     *gorm.DB
	cache  *RedisCache
	logger *zap.Logger
}

func NewHistoryRecorder(db *gorm.DB, cache *RedisCache, logger *zap.Logger) *HistoryRecorder {
	return &HistoryRecorder{db: db, cache: cache, logger: logger}
}

// RecordParams carries one payment attempt. OutstandingBefore/PaidBefore are
// the caller's pre-mutation snapshot; the after pair is read from the bill in
// its post-mutation state.
type RecordParams struct {
	Bill              *models.Bill
	Principal         float64
	TotalCollected    float64
	PartialPaymentFee float64
	OverdueInterest   float64
	Method            models.PaymentMethod
	Status            models.PaymentStatus
	TransactionID     string
	Notes             string
	OutstandingBefore float64
	PaidBefore        float64
	MonthsOverdue     int
	PaymentDate       time.Time
}

// Record appends one history row, assigning the next payment number for the
// bill. Must run inside LedgerService.WithBill.
func (r *HistoryRecorder) Record(tx *gorm.DB, p RecordParams) (*models.PaymentHistory, error) {
	var priorCount int64
	if err := tx.Model(&models.PaymentHistory{}).Where("bill_id = ?", p.Bill.ID).Count(&priorCount).Error; err != nil {
		return nil, err
	}

	row := &models.PaymentHistory{
		BillID:            p.Bill.ID,
		RoomID:            p.Bill.RoomID,
		TenantID:          p.Bill.TenantID,
		PaymentAmount:     p.Principal,
		TotalAmount:       p.TotalCollected,
		PartialPaymentFee: p.PartialPaymentFee,
		OverdueInterest:   p.OverdueInterest,
		PaymentMethod:     p.Method,
		PaymentNumber:     int(priorCount) + 1,
		PaymentDate:       p.PaymentDate,
		OutstandingBefore: p.OutstandingBefore,
		OutstandingAfter:  p.Bill.OutstandingAmount,
		PaidBefore:        p.PaidBefore,
		PaidAfter:         p.Bill.PaidAmount,
		TransactionID:     p.TransactionID,
		Status:            p.Status,
		IsPartialPayment:  p.Principal < p.OutstandingBefore,
		MonthsOverdue:     p.MonthsOverdue,
		Notes:             p.Notes,
	}

	if err := tx.Create(row).Error; err != nil {
		return nil, err
	}

	// Balance changed, cached stats are stale.
	_ = r.cache.Delete(context.Background(), statsCacheKey(p.Bill.ID))
	return row, nil
}

// FindByTransactionID is the reconciler's idempotency lookup. Returns nil, nil
// when no row exists.
func (r *HistoryRecorder) FindByTransactionID(tx *gorm.DB, transactionID string) (*models.PaymentHistory, error) {
	var row models.PaymentHistory
	err := tx.Where("transaction_id = ?", transactionID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// CountApplied returns the number of successfully applied payments on a bill,
// which is what the rule engine's first-payment cap keys on.
func (r *HistoryRecorder) CountApplied(tx *gorm.DB, billID uint) (int, error) {
	var count int64
	err := tx.Model(&models.PaymentHistory{}).
		Where("bill_id = ? AND status = ?", billID, models.PaymentStatusSuccess).
		Count(&count).Error
	return int(count), err
}

// GetByID loads one history row.
func (r *HistoryRecorder) GetByID(tx *gorm.DB, id uint) (*models.PaymentHistory, error) {
	var row models.PaymentHistory
	if err := tx.First(&row, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "payment history", ID: id}
		}
		return nil, err
	}
	return &row, nil
}

// ListByBill returns a bill's payment attempts, newest first.
func (r *HistoryRecorder) ListByBill(billID uint) ([]models.PaymentHistory, error) {
	var rows []models.PaymentHistory
	err := r.db.Where("bill_id = ?", billID).Order("payment_date desc").Find(&rows).Error
	return rows, err
}

// ListByRoom returns payment attempts across all of a room's bills, newest
// first, optionally bounded by a date range.
func (r *HistoryRecorder) ListByRoom(roomID uint, from, to *time.Time) ([]models.PaymentHistory, error) {
	q := r.db.Where("room_id = ?", roomID)
	if from != nil {
		q = q.Where("payment_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("payment_date <= ?", *to)
	}
	var rows []models.PaymentHistory
	err := q.Order("payment_date desc").Find(&rows).Error
	return rows, err
}

// PaymentStats are aggregates derived by summing applied history rows.
type PaymentStats struct {
	BillID        uint       `json:"bill_id"`
	TotalPaid     float64    `json:"total_paid"`
	TotalFees     float64    `json:"total_fees"`
	TotalInterest float64    `json:"total_interest"`
	PaymentCount  int        `json:"payment_count"`
	LatestPayment *time.Time `json:"latest_payment"`
}

// Stats sums the applied payments for a bill, cached briefly in Redis.
func (r *HistoryRecorder) Stats(ctx context.Context, billID uint) (PaymentStats, error) {
	return GetOrSet(r.cache, ctx, statsCacheKey(billID), statsCacheTTL, func() (PaymentStats, error) {
		stats := PaymentStats{BillID: billID}

		var rows []models.PaymentHistory
		err := r.db.Where("bill_id = ? AND status = ?", billID, models.PaymentStatusSuccess).
			Order("payment_date asc").Find(&rows).Error
		if err != nil {
			return stats, err
		}

		for _, row := range rows {
			stats.TotalPaid += row.PaymentAmount
			stats.TotalFees += row.PartialPaymentFee
			stats.TotalInterest += row.OverdueInterest
			stats.PaymentCount++
			d := row.PaymentDate
			stats.LatestPayment = &d
		}
		return stats, nil
	})
}

func statsCacheKey(billID uint) string {
	return fmt.Sprintf("billing:stats:%d", billID)
}

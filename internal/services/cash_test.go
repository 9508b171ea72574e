package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

func newCashService(db *gorm.DB) *CashPaymentService {
	logger := testLogger()
	ledger := NewLedgerService(db, logger)
	history := NewHistoryRecorder(db, nil, logger)
	return NewCashPaymentService(ledger, NewRuleEngine(), history, NewInterestCalculator(logger), logger)
}

func TestRequestPartialPaymentCreatesPendingRow(t *testing.T) {
	db := setupTestDB(t)
	svc := newCashService(db)
	bill := newTestBill(t, db, 1_000_000)

	row, err := svc.RequestPartialPayment(bill.ID, 600_000, 50_000, "tenant will pay in person")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, row.Status)
	assert.Equal(t, models.PaymentMethodCash, row.PaymentMethod)
	assert.Equal(t, 600_000.0, row.PaymentAmount)
	assert.Equal(t, 650_000.0, row.TotalAmount)
	assert.Equal(t, 50_000.0, row.PartialPaymentFee)
	assert.True(t, row.IsPartialPayment)
	assert.True(t, strings.HasPrefix(row.TransactionID, "cash-"))

	// Pending request must not move the ledger, only the advisory lock.
	var got models.Bill
	require.NoError(t, db.First(&got, bill.ID).Error)
	assert.Equal(t, 0.0, got.PaidAmount)
	assert.Equal(t, 1_000_000.0, got.OutstandingAmount)
	require.NotNil(t, got.PaymentURLLockedUntil)
	assert.True(t, got.PaymentURLLockedUntil.After(time.Now()))
}

func TestRequestPartialPaymentRejectedWhileLocked(t *testing.T) {
	db := setupTestDB(t)
	svc := newCashService(db)
	bill := newTestBill(t, db, 1_000_000)

	_, err := svc.RequestPartialPayment(bill.ID, 600_000, 0, "")
	require.NoError(t, err)

	_, err = svc.RequestPartialPayment(bill.ID, 600_000, 0, "")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestRequestPartialPaymentEnforcesRules(t *testing.T) {
	db := setupTestDB(t)
	svc := newCashService(db)
	bill := newTestBill(t, db, 1_000_000)

	// 40% is below the 50% floor, nothing should be written.
	_, err := svc.RequestPartialPayment(bill.ID, 400_000, 0, "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	var count int64
	require.NoError(t, db.Model(&models.PaymentHistory{}).Where("bill_id = ?", bill.ID).Count(&count).Error)
	assert.Zero(t, count)

	var got models.Bill
	require.NoError(t, db.First(&got, bill.ID).Error)
	assert.Nil(t, got.PaymentURLLockedUntil, "rejected request must not lock the bill")
}

func TestConfirmAppliesPaymentAndClearsLock(t *testing.T) {
	db := setupTestDB(t)
	svc := newCashService(db)
	bill := newTestBill(t, db, 1_000_000)

	pending, err := svc.RequestPartialPayment(bill.ID, 600_000, 50_000, "")
	require.NoError(t, err)

	row, err := svc.Confirm(bill.ID, pending.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusSuccess, row.Status)
	assert.Equal(t, 1_000_000.0, row.OutstandingBefore)
	assert.Equal(t, 400_000.0, row.OutstandingAfter)
	assert.Equal(t, 0.0, row.PaidBefore)
	assert.Equal(t, 600_000.0, row.PaidAfter)

	var got models.Bill
	require.NoError(t, db.First(&got, bill.ID).Error)
	assert.Equal(t, 600_000.0, got.PaidAmount)
	assert.Equal(t, 400_000.0, got.OutstandingAmount)
	assert.Equal(t, 50_000.0, got.PartialPaymentFeesCollected)
	assert.True(t, got.IsPartiallyPaid)
	assert.False(t, got.Status)
	assert.Nil(t, got.PaymentURLLockedUntil)
}

func TestConfirmSettlesFullPayment(t *testing.T) {
	db := setupTestDB(t)
	svc := newCashService(db)
	bill := newTestBill(t, db, 1_000_000)

	// First installment via direct ledger write so a 100% second payment is allowed.
	ledger := NewLedgerService(db, testLogger())
	history := NewHistoryRecorder(db, nil, testLogger())
	require.NoError(t, ledger.WithBill(bill.ID, func(tx *gorm.DB, b *models.Bill) error {
		before := b.OutstandingAmount
		paidBefore := b.PaidAmount
		if err := ledger.ApplyPayment(tx, b, 600_000); err != nil {
			return err
		}
		_, err := history.Record(tx, RecordParams{
			Bill:              b,
			Principal:         600_000,
			TotalCollected:    600_000,
			Method:            models.PaymentMethodCash,
			Status:            models.PaymentStatusSuccess,
			TransactionID:     "cash-seed",
			OutstandingBefore: before,
			PaidBefore:        paidBefore,
			PaymentDate:       time.Now().AddDate(0, 0, -31),
		})
		return err
	}))
	// Age the last payment past the cooldown window.
	aged := time.Now().AddDate(0, 0, -31)
	require.NoError(t, db.Model(&models.Bill{}).Where("id = ?", bill.ID).
		Update("last_payment_date", aged).Error)

	pending, err := svc.RequestPartialPayment(bill.ID, 400_000, 0, "")
	require.NoError(t, err)

	row, err := svc.Confirm(bill.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, row.Status)

	var got models.Bill
	require.NoError(t, db.First(&got, bill.ID).Error)
	assert.Equal(t, 0.0, got.OutstandingAmount)
	assert.True(t, got.Status)
}

func TestRejectLeavesBalanceUntouched(t *testing.T) {
	db := setupTestDB(t)
	svc := newCashService(db)
	bill := newTestBill(t, db, 1_000_000)

	pending, err := svc.RequestPartialPayment(bill.ID, 600_000, 0, "")
	require.NoError(t, err)

	row, err := svc.Reject(bill.ID, pending.ID, "tenant never showed up")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, row.Status)

	var gotRow models.PaymentHistory
	require.NoError(t, db.First(&gotRow, pending.ID).Error)
	assert.Contains(t, gotRow.Notes, "rejected: tenant never showed up")

	var got models.Bill
	require.NoError(t, db.First(&got, bill.ID).Error)
	assert.Equal(t, 0.0, got.PaidAmount)
	assert.Equal(t, 1_000_000.0, got.OutstandingAmount)
	assert.Nil(t, got.PaymentURLLockedUntil, "rejection releases the lock immediately")
}

func TestTerminalStatesAreFinal(t *testing.T) {
	db := setupTestDB(t)
	svc := newCashService(db)
	bill := newTestBill(t, db, 1_000_000)

	pending, err := svc.RequestPartialPayment(bill.ID, 600_000, 0, "")
	require.NoError(t, err)

	_, err = svc.Confirm(bill.ID, pending.ID)
	require.NoError(t, err)

	var vErr *ValidationError
	_, err = svc.Confirm(bill.ID, pending.ID)
	assert.ErrorAs(t, err, &vErr, "double confirm rejected")

	_, err = svc.Reject(bill.ID, pending.ID, "")
	assert.ErrorAs(t, err, &vErr, "reject after confirm rejected")

	var got models.Bill
	require.NoError(t, db.First(&got, bill.ID).Error)
	assert.Equal(t, 600_000.0, got.PaidAmount, "balance applied exactly once")
}

func TestConfirmWrongBillRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := newCashService(db)
	bill := newTestBill(t, db, 1_000_000)
	other := newTestBill(t, db, 2_000_000)

	pending, err := svc.RequestPartialPayment(bill.ID, 600_000, 0, "")
	require.NoError(t, err)

	_, err = svc.Confirm(other.ID, pending.ID)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

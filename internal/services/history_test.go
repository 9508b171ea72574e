package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

func recordSeed(t *testing.T, db *gorm.DB, bill *models.Bill, p RecordParams) *models.PaymentHistory {
	t.Helper()
	recorder := NewHistoryRecorder(db, nil, testLogger())
	p.Bill = bill

	var row *models.PaymentHistory
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = recorder.Record(tx, p)
		return err
	})
	require.NoError(t, err)
	return row
}

func TestRecordAssignsSequentialPaymentNumbers(t *testing.T) {
	db := setupTestDB(t)
	bill := newTestBill(t, db, 1_000_000)
	now := time.Now()

	first := recordSeed(t, db, bill, RecordParams{
		Principal:         600_000,
		TotalCollected:    650_000,
		PartialPaymentFee: 50_000,
		Method:            models.PaymentMethodVNPay,
		Status:            models.PaymentStatusSuccess,
		TransactionID:     "txn-1",
		OutstandingBefore: 1_000_000,
		PaymentDate:       now,
	})
	assert.Equal(t, 1, first.PaymentNumber)

	// Pending and rejected attempts still consume a sequence slot.
	second := recordSeed(t, db, bill, RecordParams{
		Principal:         200_000,
		TotalCollected:    200_000,
		Method:            models.PaymentMethodCash,
		Status:            models.PaymentStatusPending,
		TransactionID:     "txn-2",
		OutstandingBefore: 400_000,
		PaymentDate:       now.Add(time.Hour),
	})
	assert.Equal(t, 2, second.PaymentNumber)

	third := recordSeed(t, db, bill, RecordParams{
		Principal:         400_000,
		TotalCollected:    400_000,
		Method:            models.PaymentMethodVNPay,
		Status:            models.PaymentStatusSuccess,
		TransactionID:     "txn-3",
		OutstandingBefore: 400_000,
		PaymentDate:       now.Add(2 * time.Hour),
	})
	assert.Equal(t, 3, third.PaymentNumber)
}

func TestCountAppliedIgnoresPendingAndRejected(t *testing.T) {
	db := setupTestDB(t)
	recorder := NewHistoryRecorder(db, nil, testLogger())
	bill := newTestBill(t, db, 1_000_000)
	now := time.Now()

	for i, status := range []models.PaymentStatus{
		models.PaymentStatusSuccess,
		models.PaymentStatusPending,
		models.PaymentStatusRejected,
	} {
		recordSeed(t, db, bill, RecordParams{
			Principal:         100_000,
			TotalCollected:    100_000,
			Method:            models.PaymentMethodCash,
			Status:            status,
			TransactionID:     "txn-" + string(rune('a'+i)),
			OutstandingBefore: 1_000_000,
			PaymentDate:       now,
		})
	}

	count, err := recorder.CountApplied(db, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFindByTransactionID(t *testing.T) {
	db := setupTestDB(t)
	recorder := NewHistoryRecorder(db, nil, testLogger())
	bill := newTestBill(t, db, 1_000_000)

	seeded := recordSeed(t, db, bill, RecordParams{
		Principal:         600_000,
		TotalCollected:    600_000,
		Method:            models.PaymentMethodVNPay,
		Status:            models.PaymentStatusSuccess,
		TransactionID:     "14712345",
		OutstandingBefore: 1_000_000,
		PaymentDate:       time.Now(),
	})

	row, err := recorder.FindByTransactionID(db, "14712345")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, seeded.ID, row.ID)

	row, err = recorder.FindByTransactionID(db, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestStatsSumsAppliedPaymentsOnly(t *testing.T) {
	db := setupTestDB(t)
	recorder := NewHistoryRecorder(db, nil, testLogger())
	bill := newTestBill(t, db, 1_000_000)
	now := time.Now()

	recordSeed(t, db, bill, RecordParams{
		Principal:         600_000,
		TotalCollected:    650_000,
		PartialPaymentFee: 50_000,
		Method:            models.PaymentMethodVNPay,
		Status:            models.PaymentStatusSuccess,
		TransactionID:     "txn-1",
		OutstandingBefore: 1_000_000,
		PaymentDate:       now.Add(-time.Hour),
	})
	recordSeed(t, db, bill, RecordParams{
		Principal:         300_000,
		TotalCollected:    300_000,
		Method:            models.PaymentMethodCash,
		Status:            models.PaymentStatusSuccess,
		TransactionID:     "txn-2",
		OutstandingBefore: 400_000,
		PaymentDate:       now,
	})
	// Rejected attempt must not count.
	recordSeed(t, db, bill, RecordParams{
		Principal:         100_000,
		TotalCollected:    100_000,
		Method:            models.PaymentMethodCash,
		Status:            models.PaymentStatusRejected,
		TransactionID:     "txn-3",
		OutstandingBefore: 100_000,
		PaymentDate:       now,
	})

	stats, err := recorder.Stats(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, bill.ID, stats.BillID)
	assert.Equal(t, 900_000.0, stats.TotalPaid)
	assert.Equal(t, 50_000.0, stats.TotalFees)
	assert.Equal(t, 2, stats.PaymentCount)
	require.NotNil(t, stats.LatestPayment)
	assert.WithinDuration(t, now, *stats.LatestPayment, time.Second)
}

func TestListByBillNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	recorder := NewHistoryRecorder(db, nil, testLogger())
	bill := newTestBill(t, db, 1_000_000)
	now := time.Now()

	recordSeed(t, db, bill, RecordParams{
		Principal: 600_000, TotalCollected: 600_000,
		Method: models.PaymentMethodVNPay, Status: models.PaymentStatusSuccess,
		TransactionID: "txn-old", OutstandingBefore: 1_000_000,
		PaymentDate: now.Add(-48 * time.Hour),
	})
	recordSeed(t, db, bill, RecordParams{
		Principal: 400_000, TotalCollected: 400_000,
		Method: models.PaymentMethodVNPay, Status: models.PaymentStatusSuccess,
		TransactionID: "txn-new", OutstandingBefore: 400_000,
		PaymentDate: now,
	})

	rows, err := recorder.ListByBill(bill.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "txn-new", rows[0].TransactionID)
	assert.Equal(t, "txn-old", rows[1].TransactionID)
}

func TestListByRoomDateRange(t *testing.T) {
	db := setupTestDB(t)
	recorder := NewHistoryRecorder(db, nil, testLogger())
	bill := newTestBill(t, db, 1_000_000)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, txn := range []string{"txn-feb", "txn-mar", "txn-apr"} {
		recordSeed(t, db, bill, RecordParams{
			Principal: 100_000, TotalCollected: 100_000,
			Method: models.PaymentMethodCash, Status: models.PaymentStatusSuccess,
			TransactionID: txn, OutstandingBefore: 1_000_000,
			PaymentDate: base.AddDate(0, i-1, 0),
		})
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	rows, err := recorder.ListByRoom(bill.RoomID, &from, &to)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "txn-mar", rows[0].TransactionID)

	rows, err = recorder.ListByRoom(bill.RoomID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

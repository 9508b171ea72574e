package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

func TestMonthsOverdue(t *testing.T) {
	calc := NewInterestCalculator(testLogger())
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"not yet due", due.AddDate(0, 0, -5), 0},
		{"exactly due", due, 0},
		{"one day late", due.AddDate(0, 0, 1), 1},
		{"30 days late", due.AddDate(0, 0, 30), 1},
		{"31 days late", due.AddDate(0, 0, 31), 2},
		{"60 days late", due.AddDate(0, 0, 60), 2},
		{"61 days late", due.AddDate(0, 0, 61), 3},
		{"150 days late capped at 3", due.AddDate(0, 0, 150), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.MonthsOverdue(due, tt.now))
		})
	}
}

func TestInterestForTiers(t *testing.T) {
	calc := NewInterestCalculator(testLogger())

	assert.Equal(t, 0.0, calc.InterestFor(0))
	assert.Equal(t, 200_000.0, calc.InterestFor(1))
	assert.Equal(t, 500_000.0, calc.InterestFor(2))
	assert.Equal(t, 1_000_000.0, calc.InterestFor(3))
	assert.Equal(t, 1_000_000.0, calc.InterestFor(7), "everything past three months pays the top tier")
}

func TestGeneratePenaltyBill(t *testing.T) {
	db := setupTestDB(t)
	calc := NewInterestCalculator(testLogger())
	now := time.Now()

	bill := newTestBill(t, db, 2_000_000)
	// Two overdue months
	bill.DueDate = now.AddDate(0, 0, -45)
	require.NoError(t, db.Save(bill).Error)

	var penalty *models.Bill
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		penalty, err = calc.GeneratePenaltyBill(tx, bill, now)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, models.BillTypeLatePenalty, penalty.BillType)
	require.NotNil(t, penalty.OriginalBillID)
	assert.Equal(t, bill.ID, *penalty.OriginalBillID)
	assert.Equal(t, 500_000.0, penalty.TotalAmount)
	assert.Equal(t, 500_000.0, penalty.PenaltyAmount)
	assert.Equal(t, 500_000.0, penalty.OutstandingAmount)
	assert.Equal(t, 45, penalty.OverdueDays)
	assert.InDelta(t, 0.25, penalty.PenaltyRate, 1e-9)
	assert.WithinDuration(t, now.AddDate(0, 0, 7), penalty.DueDate, time.Second)
	assert.False(t, penalty.Status)
}

func TestGeneratePenaltyBillRejections(t *testing.T) {
	db := setupTestDB(t)
	calc := NewInterestCalculator(testLogger())
	now := time.Now()

	t.Run("not overdue", func(t *testing.T) {
		bill := newTestBill(t, db, 1_000_000)
		_, err := calc.GeneratePenaltyBill(db, bill, now)
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("fully paid", func(t *testing.T) {
		bill := newTestBill(t, db, 1_000_000)
		bill.DueDate = now.AddDate(0, 0, -10)
		bill.PaidAmount = 1_000_000
		bill.Recalculate()
		bill.Status = true
		require.NoError(t, db.Save(bill).Error)

		_, err := calc.GeneratePenaltyBill(db, bill, now)
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("penalty bill cannot be penalized", func(t *testing.T) {
		bill := newTestBill(t, db, 1_000_000)
		bill.DueDate = now.AddDate(0, 0, -40)
		require.NoError(t, db.Save(bill).Error)

		penalty, err := calc.GeneratePenaltyBill(db, bill, now)
		require.NoError(t, err)

		penalty.DueDate = now.AddDate(0, 0, -1)
		require.NoError(t, db.Save(penalty).Error)

		_, err = calc.GeneratePenaltyBill(db, penalty, now)
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("one open penalty per original", func(t *testing.T) {
		bill := newTestBill(t, db, 1_000_000)
		bill.DueDate = now.AddDate(0, 0, -10)
		require.NoError(t, db.Save(bill).Error)

		_, err := calc.GeneratePenaltyBill(db, bill, now)
		require.NoError(t, err)

		_, err = calc.GeneratePenaltyBill(db, bill, now)
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

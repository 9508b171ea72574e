package services

import (
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

// Flat overdue-interest tiers in VND. Interest is per tier, not accrued daily.
const (
	InterestTierOneMonth   = 200_000.0
	InterestTierTwoMonths  = 500_000.0
	InterestTierThreePlus  = 1_000_000.0
	MaxOverdueMonths       = 3
	daysPerOverdueMonth    = 30.0 // single rounding base used everywhere
	penaltyBillDueDateDays = 7
)

// InterestCalculator computes overdue tiers and generates late-penalty bills.
type InterestCalculator struct {
	logger *zap.Logger
}

func NewInterestCalculator(logger *zap.Logger) *InterestCalculator {
	return &InterestCalculator{logger: logger}
}

// MonthsOverdue buckets the days past due into 30-day months, rounded up and
// capped at 3. Zero when the bill is not yet due.
func (c *InterestCalculator) MonthsOverdue(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	days := now.Sub(dueDate).Hours() / 24
	months := int(math.Ceil(days / daysPerOverdueMonth))
	if months < 1 {
		months = 1
	}
	if months > MaxOverdueMonths {
		months = MaxOverdueMonths
	}
	return months
}

// DaysOverdue returns whole days past the due date, zero if not overdue.
func (c *InterestCalculator) DaysOverdue(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	return int(now.Sub(dueDate).Hours() / 24)
}

// InterestFor maps an overdue-month bucket to its flat tier amount.
func (c *InterestCalculator) InterestFor(monthsOverdue int) float64 {
	switch {
	case monthsOverdue <= 0:
		return 0
	case monthsOverdue == 1:
		return InterestTierOneMonth
	case monthsOverdue == 2:
		return InterestTierTwoMonths
	default:
		return InterestTierThreePlus
	}
}

// GeneratePenaltyBill creates a LATE_PENALTY bill linked to an overdue unpaid
// bill. Penalty bills can never themselves be penalized, and at most one open
// penalty bill exists per original.
func (c *InterestCalculator) GeneratePenaltyBill(tx *gorm.DB, bill *models.Bill, now time.Time) (*models.Bill, error) {
	if bill.BillType == models.BillTypeLatePenalty {
		return nil, NewValidationError("bill %d is a late-penalty bill and cannot be penalized again", bill.ID)
	}
	if bill.Status {
		return nil, NewValidationError("bill %d is fully paid, nothing to penalize", bill.ID)
	}
	if !now.After(bill.DueDate) {
		return nil, NewValidationError("bill %d is not overdue yet (due %s)", bill.ID, bill.DueDate.Format("2006-01-02"))
	}

	var existing int64
	err := tx.Model(&models.Bill{}).
		Where("original_bill_id = ? AND bill_type = ? AND status = ?", bill.ID, models.BillTypeLatePenalty, false).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, NewValidationError("bill %d already has an open penalty bill", bill.ID)
	}

	months := c.MonthsOverdue(bill.DueDate, now)
	overdueDays := c.DaysOverdue(bill.DueDate, now)
	penaltyAmount := c.InterestFor(months)

	penaltyRate := 0.0
	if bill.TotalAmount > 0 {
		penaltyRate = penaltyAmount / bill.TotalAmount
	}

	originalID := bill.ID
	penalty := &models.Bill{
		RoomID:         bill.RoomID,
		TenantID:       bill.TenantID,
		Title:          "Late penalty for " + bill.Title,
		TotalAmount:    penaltyAmount,
		BillType:       models.BillTypeLatePenalty,
		OriginalBillID: &originalID,
		DueDate:        now.AddDate(0, 0, penaltyBillDueDateDays),
		PenaltyRate:    penaltyRate,
		OverdueDays:    overdueDays,
		PenaltyAmount:  penaltyAmount,
	}
	penalty.Recalculate()

	if err := tx.Create(penalty).Error; err != nil {
		return nil, err
	}

	c.logger.Info("penalty bill generated",
		zap.Uint("original_bill_id", bill.ID),
		zap.Uint("penalty_bill_id", penalty.ID),
		zap.Int("months_overdue", months),
		zap.Float64("penalty_amount", penaltyAmount))
	return penalty, nil
}

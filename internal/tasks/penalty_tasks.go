package tasks

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
	"nhatro_app/internal/services"
)

// PenaltyCheckArgs defines the arguments for the penalty sweep. GraceDays
// delays penalization for bills that are only just past due.
type PenaltyCheckArgs struct {
	GraceDays int `json:"grace_days"`
}

// PenaltyCheckTaskDef is the recurring sweep that turns overdue unpaid bills
// into late-penalty bills. It reuses the same generation path as the
// on-demand endpoint, so the one-open-penalty-per-bill rule holds either way.
type PenaltyCheckTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *PenaltyCheckTaskDef) TaskID() string {
	return "penalty_check"
}

// CreateTask builds the recurring ScheduledTask record, due daily.
func (t *PenaltyCheckTaskDef) CreateTask(args PenaltyCheckArgs, firstDue time.Time) (*models.ScheduledTask, error) {
	rule := "FREQ=DAILY"
	return BuildScheduledTask(t.TaskID(), args, firstDue, &rule, models.ScheduledTaskTypeRecurring, 3)
}

// HandleExecution scans for overdue unpaid bills and generates penalty bills.
func (t *PenaltyCheckTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	var args PenaltyCheckArgs
	if err := decodeArgs(task.Arguments, &args); err != nil {
		return nil, err
	}

	now := time.Now()
	cutoff := now.AddDate(0, 0, -args.GraceDays)

	var overdue []models.Bill
	err := db.Where("status = ? AND bill_type <> ? AND due_date < ?",
		false, models.BillTypeLatePenalty, cutoff).Find(&overdue).Error
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	ledger := services.NewLedgerService(db, logger)
	calc := services.NewInterestCalculator(logger)

	created := 0
	skipped := 0
	failed := 0
	for _, bill := range overdue {
		if ctx.Err() != nil {
			break
		}

		err := ledger.WithBill(bill.ID, func(tx *gorm.DB, locked *models.Bill) error {
			_, genErr := calc.GeneratePenaltyBill(tx, locked, now)
			return genErr
		})
		if err != nil {
			// An already-open penalty is the expected steady state, not a failure.
			if _, ok := err.(*services.ValidationError); ok {
				skipped++
				continue
			}
			log.Printf("Failed to generate penalty for bill %d: %v", bill.ID, err)
			failed++
			continue
		}
		created++
	}

	return map[string]interface{}{
		"status":  "success",
		"scanned": len(overdue),
		"created": created,
		"skipped": skipped,
		"failed":  failed,
	}, nil
}

// PenaltyCheckTask is the singleton instance of PenaltyCheckTaskDef
var PenaltyCheckTask = &PenaltyCheckTaskDef{}

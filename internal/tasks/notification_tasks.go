package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"nhatro_app/internal/models"
	"nhatro_app/internal/services"
)

// SendPaymentNoticeArgs defines the arguments for a payment-notice task.
type SendPaymentNoticeArgs struct {
	TenantID     uint    `json:"tenant_id"`
	BillID       uint    `json:"bill_id"`
	Subject      string  `json:"subject"`
	Message      string  `json:"message"`
	Amount       float64 `json:"amount"`
	AttemptCount int     `json:"attempt_count"`
}

// SendPaymentNoticeTaskDef delivers billing notices (payment received, bill
// overdue, penalty issued) out of band so a slow SMTP relay never sits inside
// a payment request.
type SendPaymentNoticeTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendPaymentNoticeTaskDef) TaskID() string {
	return "send_payment_notice"
}

// CreateTask builds a one-time ScheduledTask record for this notice
func (t *SendPaymentNoticeTaskDef) CreateTask(args SendPaymentNoticeArgs) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, time.Now(), nil, models.ScheduledTaskTypeOneTime, 3)
}

// HandleExecution sends the notice by email, rescheduling itself on failure
// until the max attempt count is reached.
func (t *SendPaymentNoticeTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	var args SendPaymentNoticeArgs
	if err := decodeArgs(task.Arguments, &args); err != nil {
		return nil, err
	}

	var tenant models.Tenant
	if err := db.First(&tenant, args.TenantID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tenant %d: %w", args.TenantID, err)
	}
	if tenant.Email == "" {
		return map[string]interface{}{"status": "skipped", "message": "tenant has no email"}, nil
	}

	subject := args.Subject
	if subject == "" {
		subject = "Billing notice"
	}

	emailService := services.NewEmailService()
	sendErr := emailService.SendEmail([]string{tenant.Email}, subject, args.Message)
	if sendErr == nil {
		return map[string]interface{}{"status": "success", "tenant_id": args.TenantID}, nil
	}

	attempt := args.AttemptCount
	if attempt < task.MaxAttempt {
		log.Printf("Payment notice to tenant %d failed, rescheduling attempt %d: %v", args.TenantID, attempt+1, sendErr)

		newArgs := args
		newArgs.AttemptCount = attempt + 1

		newTask, err := BuildScheduledTask(t.TaskID(), newArgs, time.Now().Add(5*time.Minute), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
		if err == nil {
			db.Create(newTask)
		} else {
			log.Printf("Failed to create retry task: %v", err)
		}
		return map[string]interface{}{"status": "rescheduled", "attempt": attempt + 1}, nil
	}

	return nil, fmt.Errorf("max attempts (%d) reached delivering notice to tenant %d: %w", task.MaxAttempt, args.TenantID, sendErr)
}

// SendPaymentNoticeTask is the singleton instance of SendPaymentNoticeTaskDef
var SendPaymentNoticeTask = &SendPaymentNoticeTaskDef{}

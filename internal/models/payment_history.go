package models

import (
	"time"

	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodVNPay PaymentMethod = "VNPAY"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// PaymentHistory is one immutable record per payment attempt: one row per applied
// gateway payment, one per pending/rejected cash request. Rows are never the source
// of truth for the current balance; the Bill columns are authoritative.
type PaymentHistory struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	BillID   uint `gorm:"index" json:"bill_id"`
	RoomID   uint `gorm:"index" json:"room_id"`
	TenantID uint `gorm:"index" json:"tenant_id"`

	PaymentAmount     float64 `gorm:"type:decimal(15,2)" json:"payment_amount"` // principal only
	TotalAmount       float64 `gorm:"type:decimal(15,2)" json:"total_amount"`   // principal + fee + interest collected
	PartialPaymentFee float64 `gorm:"type:decimal(15,2)" json:"partial_payment_fee"`
	OverdueInterest   float64 `gorm:"type:decimal(15,2)" json:"overdue_interest"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentNumber int           `json:"payment_number"` // 1-based sequence per bill
	PaymentDate   time.Time     `json:"payment_date"`

	OutstandingBefore float64 `gorm:"type:decimal(15,2)" json:"outstanding_before"`
	OutstandingAfter  float64 `gorm:"type:decimal(15,2)" json:"outstanding_after"`
	PaidBefore        float64 `gorm:"type:decimal(15,2)" json:"paid_before"`
	PaidAfter         float64 `gorm:"type:decimal(15,2)" json:"paid_after"`

	// External reference: gateway transaction no for VNPAY, generated request id for
	// cash. Unique index is the idempotency backstop for duplicated IPN deliveries.
	TransactionID string `gorm:"type:varchar(100);uniqueIndex" json:"transaction_id"`

	Status           PaymentStatus `gorm:"type:varchar(20)" json:"status"`
	IsPartialPayment bool          `json:"is_partial_payment"`
	MonthsOverdue    int           `json:"months_overdue"`
	Notes            string        `gorm:"type:text" json:"notes"`

	// Relationships
	Bill Bill `gorm:"foreignKey:BillID" json:"bill,omitempty"`
}

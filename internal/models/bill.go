package models

import (
	"time"

	"gorm.io/gorm"
)

// BillType distinguishes normal monthly bills from ad-hoc and penalty bills
type BillType string

const (
	BillTypeRegular     BillType = "regular"
	BillTypeCustom      BillType = "custom"
	BillTypeLatePenalty BillType = "late_penalty"
)

// Bill represents one billing period for one room contract.
// PaidAmount and PartialPaymentFeesCollected only ever grow; OutstandingAmount is
// derived as max(0, TotalAmount - PaidAmount) and recomputed on every mutation.
type Bill struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	RoomID   uint   `gorm:"index" json:"room_id"`
	TenantID uint   `gorm:"index" json:"tenant_id"`
	Title    string `gorm:"type:varchar(255)" json:"title"`

	TotalAmount                 float64 `gorm:"type:decimal(15,2)" json:"total_amount"`
	PaidAmount                  float64 `gorm:"type:decimal(15,2)" json:"paid_amount"`
	PartialPaymentFeesCollected float64 `gorm:"type:decimal(15,2)" json:"partial_payment_fees_collected"`
	OutstandingAmount           float64 `gorm:"type:decimal(15,2)" json:"outstanding_amount"`
	IsPartiallyPaid             bool    `gorm:"default:false" json:"is_partially_paid"`
	Status                      bool    `gorm:"default:false" json:"status"` // true once fully paid

	DueDate               time.Time  `json:"due_date"`
	LastPaymentDate       *time.Time `json:"last_payment_date"`
	PaymentURLLockedUntil *time.Time `json:"payment_url_locked_until"`

	BillType       BillType `gorm:"type:varchar(20);default:'regular'" json:"bill_type"`
	OriginalBillID *uint    `gorm:"index" json:"original_bill_id,omitempty"`

	// Penalty-only fields, zero on regular/custom bills
	PenaltyRate   float64 `gorm:"type:decimal(8,4)" json:"penalty_rate,omitempty"`
	OverdueDays   int     `json:"overdue_days,omitempty"`
	PenaltyAmount float64 `gorm:"type:decimal(15,2)" json:"penalty_amount,omitempty"`

	// Relationships
	Room         Room             `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	OriginalBill *Bill            `gorm:"foreignKey:OriginalBillID" json:"original_bill,omitempty"`
	Payments     []PaymentHistory `gorm:"foreignKey:BillID" json:"payments,omitempty"`
}

// Recalculate refreshes the derived balance fields from TotalAmount/PaidAmount.
// Callers mutate PaidAmount through the ledger service only.
func (b *Bill) Recalculate() {
	outstanding := b.TotalAmount - b.PaidAmount
	if outstanding < 0 {
		outstanding = 0
	}
	b.OutstandingAmount = outstanding
	b.IsPartiallyPaid = b.PaidAmount > 0 && outstanding > 0
}

// PaymentURLLocked reports whether the advisory cash-request lock is still active.
func (b *Bill) PaymentURLLocked(now time.Time) bool {
	return b.PaymentURLLockedUntil != nil && now.Before(*b.PaymentURLLockedUntil)
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Room is the collaborator boundary for room/contract management, which lives
// outside this service. Only the fields billing needs are modeled here.
type Room struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name     string `gorm:"type:varchar(100)" json:"name"`
	TenantID uint   `gorm:"index" json:"tenant_id"`

	Bills []Bill `gorm:"foreignKey:RoomID" json:"bills,omitempty"`
}

// Tenant mirrors the user service's record; billing only reads contact fields
// for notifications.
type Tenant struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string `gorm:"type:varchar(255)" json:"name"`
	Email       string `gorm:"type:varchar(255)" json:"email"`
	PhoneNumber string `gorm:"type:varchar(30)" json:"phone_number"`
}

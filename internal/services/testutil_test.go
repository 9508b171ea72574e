package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nhatro_app/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A fresh pool connection to :memory: would see an empty schema.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Tenant{},
		&models.Room{},
		&models.Bill{},
		&models.PaymentHistory{},
	))
	return db
}

// newTestBill creates an unpaid bill with the given total, due in 10 days.
func newTestBill(t *testing.T, db *gorm.DB, total float64) *models.Bill {
	t.Helper()

	bill := &models.Bill{
		RoomID:      1,
		TenantID:    1,
		Title:       "Rent 01/2026",
		TotalAmount: total,
		BillType:    models.BillTypeRegular,
		DueDate:     time.Now().AddDate(0, 0, 10),
	}
	bill.Recalculate()
	require.NoError(t, db.Create(bill).Error)
	return bill
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

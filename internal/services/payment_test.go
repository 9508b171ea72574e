package services

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

func newPaymentService(db *gorm.DB, vnpay *VNPayService) *PaymentService {
	logger := testLogger()
	ledger := NewLedgerService(db, logger)
	history := NewHistoryRecorder(db, nil, logger)
	return NewPaymentService(ledger, NewRuleEngine(), history, vnpay, logger)
}

func TestInitiateGatewayPartialPayment(t *testing.T) {
	db := setupTestDB(t)
	vnpay := testVNPay()
	svc := newPaymentService(db, vnpay)
	bill := newTestBill(t, db, 1_000_000)

	result, err := svc.InitiateGatewayPayment(bill.ID, 600_000, "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, 600_000.0, result.Principal)
	assert.Equal(t, 50_000.0, result.PartialFee)
	assert.Equal(t, 650_000.0, result.TotalCharge)

	parsed, err := url.Parse(result.PaymentURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "65000000", q.Get("vnp_Amount"), "fee is charged through the gateway")
	assert.Contains(t, q.Get("vnp_OrderInfo"), "originalAmount:600000")
	assert.NoError(t, vnpay.VerifyCallback(q))

	// Initiation never touches the ledger.
	var got models.Bill
	require.NoError(t, db.First(&got, bill.ID).Error)
	assert.Equal(t, 0.0, got.PaidAmount)
}

func TestInitiateGatewayFullPaymentHasNoFee(t *testing.T) {
	db := setupTestDB(t)
	vnpay := testVNPay()
	svc := newPaymentService(db, vnpay)
	bill := newTestBill(t, db, 1_000_000)

	// Seed one applied payment so the 80% first-payment cap no longer binds.
	recordSeed(t, db, bill, RecordParams{
		Principal:         600_000,
		TotalCollected:    600_000,
		Method:            models.PaymentMethodVNPay,
		Status:            models.PaymentStatusSuccess,
		TransactionID:     "txn-seed",
		OutstandingBefore: 1_000_000,
	})

	result, err := svc.InitiateGatewayPayment(bill.ID, 1_000_000, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.PartialFee)
	assert.Equal(t, 1_000_000.0, result.TotalCharge)

	parsed, err := url.Parse(result.PaymentURL)
	require.NoError(t, err)
	assert.NotContains(t, parsed.Query().Get("vnp_OrderInfo"), "originalAmount")
}

func TestInitiateGatewayPaymentEnforcesRules(t *testing.T) {
	db := setupTestDB(t)
	svc := newPaymentService(db, testVNPay())
	bill := newTestBill(t, db, 1_000_000)

	_, err := svc.InitiateGatewayPayment(bill.ID, 400_000, "203.0.113.9")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = svc.InitiateGatewayPayment(9999, 600_000, "203.0.113.9")
	var nfErr *NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

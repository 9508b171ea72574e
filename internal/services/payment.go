package services

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

// PartialPaymentFlatFee is the gateway-side convenience fee charged on top of
// the principal when a tenant pays less than the full outstanding amount. The
// reconciler never trusts this constant; it re-derives the fee from the
// charged total minus the embedded originalAmount.
const PartialPaymentFlatFee = 50_000.0

// PaymentService starts gateway payments: it validates the proposed amount
// against the partial-payment rules and hands back a signed VNPAY redirect URL
// with the bill reference and intended principal encoded in the order info.
type PaymentService struct {
	ledger  *LedgerService
	rules   *RuleEngine
	history *HistoryRecorder
	vnpay   *VNPayService
	logger  *zap.Logger
}

func NewPaymentService(ledger *LedgerService, rules *RuleEngine, history *HistoryRecorder, vnpay *VNPayService, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		ledger:  ledger,
		rules:   rules,
		history: history,
		vnpay:   vnpay,
		logger:  logger,
	}
}

// InitiatePaymentResult carries the redirect the tenant's browser follows.
type InitiatePaymentResult struct {
	PaymentURL  string  `json:"payment_url"`
	Principal   float64 `json:"principal"`
	PartialFee  float64 `json:"partial_fee"`
	TotalCharge float64 `json:"total_charge"`
}

// InitiateGatewayPayment validates and prices a proposed payment, then builds
// the signed pay URL. Nothing is applied to the ledger here; that happens when
// the gateway callback comes back through the reconciler.
func (s *PaymentService) InitiateGatewayPayment(billID uint, amount float64, clientIP string) (*InitiatePaymentResult, error) {
	var result *InitiatePaymentResult

	err := s.ledger.WithBill(billID, func(tx *gorm.DB, bill *models.Bill) error {
		now := time.Now()

		paymentCount, err := s.history.CountApplied(tx, bill.ID)
		if err != nil {
			return err
		}
		if err := s.rules.ValidatePartialPayment(bill, amount, paymentCount, now); err != nil {
			return err
		}

		partial := amount < bill.OutstandingAmount
		fee := 0.0
		if partial {
			fee = PartialPaymentFlatFee
		}
		totalCharge := amount + fee

		result = &InitiatePaymentResult{
			PaymentURL:  s.vnpay.BuildPaymentURL(bill.ID, amount, totalCharge, partial, clientIP, now),
			Principal:   amount,
			PartialFee:  fee,
			TotalCharge: totalCharge,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("gateway payment initiated",
		zap.Uint("bill_id", billID),
		zap.Float64("principal", result.Principal),
		zap.Float64("total_charge", result.TotalCharge))
	return result, nil
}

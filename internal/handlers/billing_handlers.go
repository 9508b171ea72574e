package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
	"nhatro_app/internal/services"
)

type BillingHandler struct {
	db       *gorm.DB
	ledger   *services.LedgerService
	payments *services.PaymentService
	cash     *services.CashPaymentService
	interest *services.InterestCalculator
	exporter *services.PDFExportClient
}

func NewBillingHandler(db *gorm.DB, ledger *services.LedgerService, payments *services.PaymentService, cash *services.CashPaymentService, interest *services.InterestCalculator, exporter *services.PDFExportClient) *BillingHandler {
	return &BillingHandler{
		db:       db,
		ledger:   ledger,
		payments: payments,
		cash:     cash,
		interest: interest,
		exporter: exporter,
	}
}

// GetBill returns a bill with its current balance.
func (h *BillingHandler) GetBill(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	var bill models.Bill
	if err := h.db.Preload("Room").First(&bill, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Bill not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

type PartialPaymentRequest struct {
	BillID uint    `json:"bill_id" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// InitiatePartialPayment validates the proposed amount and returns the signed
// gateway redirect URL. The ledger is only touched when the callback returns.
func (h *BillingHandler) InitiatePartialPayment(c echo.Context) error {
	var req PartialPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.payments.InitiateGatewayPayment(req.BillID, req.Amount, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

type CashPaymentRequest struct {
	BillID uint    `json:"bill_id" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Fee    float64 `json:"fee" validate:"gte=0"`
	Notes  string  `json:"notes"`
}

// RequestCashPayment creates a PENDING cash request and the 15-minute
// payment-url lock.
func (h *BillingHandler) RequestCashPayment(c echo.Context) error {
	var req CashPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	row, err := h.cash.RequestPartialPayment(req.BillID, req.Amount, req.Fee, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, row)
}

// ConfirmCashPayment applies a pending cash request to the ledger.
func (h *BillingHandler) ConfirmCashPayment(c echo.Context) error {
	billID, err := paramUint(c, "billId")
	if err != nil {
		return err
	}
	historyID, err := paramUint(c, "historyId")
	if err != nil {
		return err
	}

	row, err := h.cash.Confirm(billID, historyID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

type RejectCashPaymentRequest struct {
	Reason string `json:"reason"`
}

// RejectCashPayment resolves a pending cash request without touching the
// balance.
func (h *BillingHandler) RejectCashPayment(c echo.Context) error {
	billID, err := paramUint(c, "billId")
	if err != nil {
		return err
	}
	historyID, err := paramUint(c, "historyId")
	if err != nil {
		return err
	}

	var req RejectCashPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	row, err := h.cash.Reject(billID, historyID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

// GeneratePenalty creates a late-penalty bill for an overdue unpaid bill on
// demand. The scheduled worker runs the same logic daily.
func (h *BillingHandler) GeneratePenalty(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	var penalty *models.Bill
	err = h.ledger.WithBill(id, func(tx *gorm.DB, bill *models.Bill) error {
		var genErr error
		penalty, genErr = h.interest.GeneratePenaltyBill(tx, bill, time.Now())
		return genErr
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, penalty)
}

// ExportBill proxies the PDF render from the document collaborator.
func (h *BillingHandler) ExportBill(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	var bill models.Bill
	if err := h.db.First(&bill, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Bill not found")
		}
		return err
	}

	pdf, err := h.exporter.ExportBill(bill.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to export bill: "+err.Error())
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

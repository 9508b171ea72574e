package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nhatro_app/internal/models"
)

// NotificationSender talks to the notification collaborator service and the
// SMTP relay after a ledger mutation succeeds. Everything here is best effort:
// failures are logged and swallowed, never surfaced to the payment caller.
type NotificationSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
	email   *EmailService
	db      *gorm.DB
	logger  *zap.Logger
}

func NewNotificationSender(db *gorm.DB, email *EmailService, logger *zap.Logger) *NotificationSender {
	url := os.Getenv("NOTIFY_BASE_URL")
	if url == "" {
		url = "http://notifier:3000"
	}
	return &NotificationSender{
		baseURL: url,
		apiKey:  os.Getenv("NOTIFY_API_KEY"),
		client:  &http.Client{},
		email:   email,
		db:      db,
		logger:  logger,
	}
}

func (s *NotificationSender) makeRequest(method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("%s%s", s.baseURL, endpoint), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// PaymentReceived pushes a payment notice to the tenant via the notification
// service, falling back to email when push delivery fails.
func (s *NotificationSender) PaymentReceived(bill *models.Bill, payment *models.PaymentHistory) {
	if s == nil {
		return
	}

	var tenant models.Tenant
	if err := s.db.First(&tenant, bill.TenantID).Error; err != nil {
		s.logger.Warn("payment notice skipped, tenant lookup failed",
			zap.Uint("tenant_id", bill.TenantID), zap.Error(err))
		return
	}

	msg := fmt.Sprintf("Payment of %.0f VND received for %s. Remaining balance: %.0f VND.",
		payment.PaymentAmount, bill.Title, bill.OutstandingAmount)

	err := s.makeRequest("POST", "/api/notifications/send", map[string]string{
		"phone":   NormalizePhone(tenant.PhoneNumber),
		"message": msg,
	})
	if err == nil {
		return
	}
	s.logger.Warn("push notification failed, falling back to email",
		zap.Uint("tenant_id", tenant.ID), zap.Error(err))

	if tenant.Email == "" {
		return
	}
	if err := s.email.SendEmail([]string{tenant.Email}, "Payment received", msg); err != nil {
		s.logger.Warn("payment notice email failed",
			zap.Uint("tenant_id", tenant.ID), zap.Error(err))
	}
}

// NormalizePhone standardizes Vietnamese numbers to the international 84
// prefix the notification service expects.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.TrimPrefix(phone, "+")

	if strings.HasPrefix(phone, "0") {
		phone = "84" + strings.TrimPrefix(phone, "0")
	}
	return phone
}

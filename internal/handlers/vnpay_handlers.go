package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"nhatro_app/internal/services"
)

// VNPayHandler funnels both gateway callback channels into the reconciler.
type VNPayHandler struct {
	reconciler *services.Reconciler
}

func NewVNPayHandler(reconciler *services.Reconciler) *VNPayHandler {
	return &VNPayHandler{reconciler: reconciler}
}

// Return handles the browser redirect after the tenant finishes on the
// gateway's pages. It applies the payment (the IPN may not have landed yet)
// and reports the outcome as JSON for the frontend result page.
func (h *VNPayHandler) Return(c echo.Context) error {
	result, err := h.reconciler.ProcessCallback(c.Request().Context(), c.QueryParams())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ipnResponse is the machine-readable acknowledgment VNPAY requires. The
// gateway retries until it reads RspCode 00, so every outcome answers with
// HTTP 200 and a gateway status code instead of an HTTP error.
type ipnResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// IPN handles the server-to-server notification.
func (h *VNPayHandler) IPN(c echo.Context) error {
	_, err := h.reconciler.ProcessCallback(c.Request().Context(), c.QueryParams())
	if err == nil {
		return c.JSON(http.StatusOK, ipnResponse{RspCode: "00", Message: "Confirm Success"})
	}

	var signatureErr *services.SignatureError
	var notFoundErr *services.NotFoundError
	var computationErr *services.ComputationError
	var validationErr *services.ValidationError

	switch {
	case errors.As(err, &signatureErr):
		return c.JSON(http.StatusOK, ipnResponse{RspCode: "97", Message: "Invalid Checksum"})
	case errors.As(err, &notFoundErr):
		return c.JSON(http.StatusOK, ipnResponse{RspCode: "01", Message: "Order not found"})
	case errors.As(err, &computationErr):
		return c.JSON(http.StatusOK, ipnResponse{RspCode: "01", Message: "Order not found"})
	case errors.As(err, &validationErr):
		// Failed/aborted transaction: nothing applied, acknowledge so the
		// gateway stops retrying.
		return c.JSON(http.StatusOK, ipnResponse{RspCode: "00", Message: "Confirm Success"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusOK, ipnResponse{RspCode: "99", Message: "Unknown error"})
	}
}

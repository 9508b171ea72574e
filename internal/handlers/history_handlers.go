package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"nhatro_app/internal/services"
)

type HistoryHandler struct {
	history *services.HistoryRecorder
}

func NewHistoryHandler(history *services.HistoryRecorder) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListBillPayments returns a bill's payment attempts, newest first.
func (h *HistoryHandler) ListBillPayments(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	rows, err := h.history.ListByBill(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// BillPaymentStats returns the summed totals for a bill's applied payments.
func (h *HistoryHandler) BillPaymentStats(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	stats, err := h.history.Stats(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// ListRoomPayments returns payments across a room's bills, optionally bounded
// by ?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *HistoryHandler) ListRoomPayments(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}

	var from, to *time.Time
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date (use YYYY-MM-DD)")
		}
		from = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date (use YYYY-MM-DD)")
		}
		// Inclusive end of day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		to = &t
	}

	rows, err := h.history.ListByRoom(id, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

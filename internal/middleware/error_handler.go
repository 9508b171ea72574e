package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"nhatro_app/internal/services"
)

// CustomErrorHandler maps service-layer error types onto JSON responses.
// Duplicate gateway transactions never reach here; the reconciler resolves
// them as success-no-op before returning.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again later."

	var validationErr *services.ValidationError
	var notFoundErr *services.NotFoundError
	var signatureErr *services.SignatureError
	var computationErr *services.ComputationError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &validationErr):
		code = http.StatusBadRequest
		message = validationErr.Message
	case errors.As(err, &computationErr):
		code = http.StatusBadRequest
		message = computationErr.Message
	case errors.As(err, &notFoundErr):
		code = http.StatusNotFound
		message = notFoundErr.Error()
	case errors.As(err, &signatureErr):
		code = http.StatusBadRequest
		message = signatureErr.Error()
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			message = msg
		}
	}

	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if jsonErr := c.JSON(code, map[string]string{"message": message}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}

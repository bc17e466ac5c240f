package apperror

import (
	"errors"

	"imalat-backend/internal/config"

	"github.com/gofiber/fiber/v2"
)

type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    Code   `json:"code"`
	Details any    `json:"details,omitempty"`
}

// FiberErrorHandler: fiber.Config.ErrorHandler olarak kullanılır.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(Response{
			Success: false,
			Error:   fe.Message,
			Code:    codeForStatus(fe.Code),
		})
	}

	code := CodeOf(err)
	msg := err.Error()
	switch code {
	case CodeInternal:
		config.LogError(config.GetLogger(), "apperror", "FiberErrorHandler", c.Method()+" "+c.Path(), nil, err)
		msg = "Beklenmeyen sunucu hatası"
	case CodeTimeout:
		msg = "İşlem zaman aşımına uğradı, tekrar deneyin"
	}

	return c.Status(StatusOf(err)).JSON(Response{
		Success: false,
		Error:   msg,
		Code:    code,
		Details: DetailsOf(err),
	})
}

func codeForStatus(status int) Code {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return CodeValidation
	case fiber.StatusUnauthorized:
		return CodeUnauthorized
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusConflict:
		return CodeConcurrencyConflict
	default:
		return CodeInternal
	}
}

package response

import (
	"errors"

	"tng-backend/internal/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object. Code carries the ledger error
// discriminant so clients can branch without parsing messages.
type ErrorDetail struct {
	Message    string      `json:"message"`
	Code       string      `json:"code,omitempty"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusOK).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	return errorWithCode(c, message, "", statusCode, details)
}

func errorWithCode(c *fiber.Ctx, message, code string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			Code:       code,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// LedgerError maps a typed ledger failure to the transport. Validation,
// balance, conflict and not-found errors return their specific message;
// integrity errors return an opaque message while the full detail goes to
// the server log only.
func LedgerError(c *fiber.Ctx, err error) error {
	code := ledger.CodeOf(err)
	status := code.HTTPStatus()

	if code.Integrity() {
		log.Error().Err(err).
			Str("code", string(code)).
			Str("path", c.Path()).
			Msg("internal ledger error")
		return errorWithCode(c, "Internal Server Error", string(code), status, nil)
	}

	message := "request rejected"
	var le *ledger.Error
	if errors.As(err, &le) {
		message = le.Message
	}
	return errorWithCode(c, message, string(code), status, nil)
}

// Unauthorized sends 401 with the same shape as other errors.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}

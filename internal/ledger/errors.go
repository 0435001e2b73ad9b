package ledger

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Code discriminates ledger failures so the API layer can map them to
// transport status codes without string matching.
type Code string

const (
	// Validation: rejected before any storage write, safe to retry after fixing input.
	CodeInvalidAmount Code = "INVALID_AMOUNT"
	CodeInvalidAsset  Code = "INVALID_ASSET"
	CodeInvalidUser   Code = "INVALID_USER"
	CodeSelfTransfer  Code = "SELF_TRANSFER"

	// Balance: pre-commit rejections.
	CodeInsufficientBalance          Code = "INSUFFICIENT_BALANCE"
	CodeInsufficientAvailableBalance Code = "INSUFFICIENT_AVAILABLE_BALANCE"

	// Conflict: concurrent or replayed request.
	CodeDuplicateIdempotencyKey Code = "DUPLICATE_IDEMPOTENCY_KEY"
	CodeHoldAlreadyReleased     Code = "HOLD_ALREADY_RELEASED"
	CodeRateLimited             Code = "RATE_LIMITED"

	// Not found: referential mistake by the caller.
	CodeAssetNotFound Code = "ASSET_NOT_FOUND"
	CodeHoldNotFound  Code = "HOLD_NOT_FOUND"

	// Integrity: a bug or infrastructure fault. Logged at high severity,
	// surfaced to clients as an opaque internal error.
	CodeLedgerImbalance Code = "LEDGER_IMBALANCE"
	CodeDatabaseError   Code = "DATABASE_ERROR"
	CodeInternalError   Code = "INTERNAL_ERROR"
)

// Error is the typed failure crossing every component boundary here.
// No panics or untyped errors escape the ledger core.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a ledger error with a caller-facing message.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches an underlying cause (kept for logs, not for clients).
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the discriminant; unknown errors are INTERNAL_ERROR.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternalError
}

// Integrity reports whether the code is a bug/infra class failure whose
// detail must stay server-side.
func (c Code) Integrity() bool {
	switch c {
	case CodeLedgerImbalance, CodeDatabaseError, CodeInternalError:
		return true
	}
	return false
}

// HTTPStatus maps an error code to the transport status the API layer returns.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidAmount, CodeInvalidAsset, CodeInvalidUser, CodeSelfTransfer,
		CodeInsufficientBalance, CodeInsufficientAvailableBalance:
		return fiber.StatusBadRequest
	case CodeAssetNotFound, CodeHoldNotFound:
		return fiber.StatusNotFound
	case CodeDuplicateIdempotencyKey, CodeHoldAlreadyReleased:
		return fiber.StatusConflict
	case CodeRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

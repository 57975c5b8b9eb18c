package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string categorizing application errors. The pipeline
// never aborts a run on these; codes exist so call sites can decide between
// skip, fallback, and record-and-continue.
type ErrorCode string

const (
	// Conditions Provider failures. A provider outage or timeout skips the
	// affected spot's triggers for this run; the next scheduled run retries.
	ErrCodeProviderUnavailable ErrorCode = "provider_unavailable"
	// ErrCodeProviderNoData means the provider responded but carried no
	// forecast fields. This is a normal non-match, not an error.
	ErrCodeProviderNoData ErrorCode = "provider_no_data"

	// Message generation failures. Recovered locally via the deterministic
	// fallback text; never surfaced to the user.
	ErrCodeGenerationFailed ErrorCode = "generation_failed"
	ErrCodeGenerationEmpty  ErrorCode = "generation_empty_response"

	// Dispatch failures, recorded per channel in the ledger entry.
	ErrCodeDispatchInvalidRecipient ErrorCode = "dispatch_invalid_recipient"
	ErrCodeDispatchTransport        ErrorCode = "dispatch_transport_failed"
	ErrCodeEmailBlocked             ErrorCode = "email_blocked"

	// Persistence failures.
	ErrCodeLedgerWrite ErrorCode = "ledger_write_failed"
	ErrCodeInternalDB  ErrorCode = "internal_database_error"

	// Upstream transport classification used by the BaseClient.
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"

	// Validation of trigger/recipient data.
	ErrCodeValidationTriggerRange ErrorCode = "validation_trigger_range_invalid"
	ErrCodeValidationEmail        ErrorCode = "validation_invalid_email"
	ErrCodeValidationNoDevice     ErrorCode = "validation_no_push_device"

	// Configuration loading failures. All fatal: the runner refuses to start
	// on a partial or invalid configuration.
	ErrCodeConfigSecretResolution ErrorCode = "config_secret_resolution_failed"
	ErrCodeConfigParse            ErrorCode = "config_parse_failed"
	ErrCodeConfigInvalid          ErrorCode = "config_validation_failed"

	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// AppError is the standard application error type. Domain errors are
// expressed as AppError so call sites can branch on Code with errors.As
// while keeping the underlying cause in the chain.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// IsTransport reports whether the error is a transport-level dispatch
// failure as opposed to a recipient validation failure.
func IsTransport(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return true // unclassified errors are treated as transport failures
	}
	switch appErr.Code {
	case ErrCodeDispatchInvalidRecipient, ErrCodeValidationEmail, ErrCodeValidationNoDevice:
		return false
	}
	return true
}

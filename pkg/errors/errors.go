// Package errors provides structured error handling for Vigil.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input or missing prerequisite state
	ExitNetwork  = 3 // Explorer unreachable or rejected the request
	ExitNotFound = 4 // Resource not found
)

// VigilError is the structured error type for Vigil.
type VigilError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *VigilError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *VigilError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for VigilError. Two errors match when their codes match.
func (e *VigilError) Is(target error) bool {
	var t *VigilError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &VigilError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	// ErrAPI is returned when the explorer answers with a non-success status.
	ErrAPI = &VigilError{
		Code:     "API_ERROR",
		Message:  "explorer request failed",
		ExitCode: ExitNetwork,
	}

	// ErrRateLimited is returned when the explorer keeps answering 429.
	ErrRateLimited = &VigilError{
		Code:       "RATE_LIMITED",
		Message:    "rate limited by explorer",
		Suggestion: "wait a minute and try again, or raise history.request_delay",
		ExitCode:   ExitNetwork,
	}

	// ErrInput is returned when a prerequisite stored state is missing or input is malformed.
	ErrInput = &VigilError{
		Code:     "INPUT_ERROR",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	// ErrNetwork is returned on transport-level failures and timeouts.
	ErrNetwork = &VigilError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitNetwork,
	}

	// ErrNotFound is returned when the explorer answers 404 for an endpoint.
	ErrNotFound = &VigilError{
		Code:       "NOT_FOUND",
		Message:    "resource not found",
		Suggestion: "check explorer.balance_api and explorer.mempool_api",
		ExitCode:   ExitNotFound,
	}

	ErrConfigInvalid = &VigilError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &VigilError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}

	// ErrStore is returned when the local key/value store fails.
	ErrStore = &VigilError{
		Code:     "STORE_ERROR",
		Message:  "local storage failed",
		ExitCode: ExitGeneral,
	}

	ErrInvalidXpub = &VigilError{
		Code:       "INVALID_XPUB",
		Message:    "invalid extended public key",
		Suggestion: "provide an account-level xpub, ypub or zpub",
		ExitCode:   ExitInput,
	}

	// ErrBatchTooLarge marks a caller passing more addresses than the explorer accepts per request.
	ErrBatchTooLarge = &VigilError{
		Code:     "BATCH_TOO_LARGE",
		Message:  "too many addresses in one request",
		ExitCode: ExitGeneral,
	}
)

// New creates a new VigilError with the given code and message.
func New(code, message string) *VigilError {
	return &VigilError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ve *VigilError
	if errors.As(err, &ve) {
		return &VigilError{
			Code:       ve.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ve.Message),
			Details:    ve.Details,
			Suggestion: ve.Suggestion,
			Cause:      ve.Cause,
			ExitCode:   ve.ExitCode,
		}
	}

	return &VigilError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ve *VigilError
	if errors.As(err, &ve) {
		return &VigilError{
			Code:       ve.Code,
			Message:    ve.Message,
			Details:    details,
			Suggestion: ve.Suggestion,
			Cause:      ve.Cause,
			ExitCode:   ve.ExitCode,
		}
	}

	return &VigilError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause attaches an underlying cause to a sentinel.
func WithCause(err, cause error) error {
	if err == nil {
		return nil
	}

	var ve *VigilError
	if errors.As(err, &ve) {
		return &VigilError{
			Code:       ve.Code,
			Message:    ve.Message,
			Details:    ve.Details,
			Suggestion: ve.Suggestion,
			Cause:      cause,
			ExitCode:   ve.ExitCode,
		}
	}

	return fmt.Errorf("%w: %w", err, cause)
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ve *VigilError
	if errors.As(err, &ve) {
		return &VigilError{
			Code:       ve.Code,
			Message:    ve.Message,
			Details:    ve.Details,
			Suggestion: suggestion,
			Cause:      ve.Cause,
			ExitCode:   ve.ExitCode,
		}
	}

	return &VigilError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// Input builds an INPUT_ERROR with a specific message and suggestion.
func Input(message, suggestion string) error {
	return &VigilError{
		Code:       ErrInput.Code,
		Message:    message,
		Suggestion: suggestion,
		ExitCode:   ExitInput,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ve *VigilError
	if errors.As(err, &ve) {
		return ve.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ve *VigilError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}

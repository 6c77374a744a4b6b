package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Code is a stable, machine-readable classification of a failure. It decides
// whether the failure is relayed to the user, retried on the next tick, or
// terminal for the request.
type Code int

const (
	CodeInternal Code = iota
	// CodeUnresolvedReference means a symbol or address could not be
	// determined. Recoverable: ask the user for the missing value.
	CodeUnresolvedReference
	CodeMissingAmount
	CodeInsufficientBalance
	CodeInsufficientReserve
	// CodeNoRoute means the aggregator found no viable swap route.
	CodeNoRoute
	// CodeRejectedByUser is terminal for the intent but not an error condition.
	CodeRejectedByUser
	// CodeSubmissionFailed means the ledger rejected the transaction.
	CodeSubmissionFailed
	// CodeConfirmationTimeout means the transaction was submitted but no
	// terminal status was observed within the polling budget. Distinct from
	// CodeSubmissionFailed: the transaction may still land.
	CodeConfirmationTimeout
	// CodeUnavailable covers infra failures (RPC unreachable, price feed
	// down). Logged and retried, not surfaced to the user on deferred paths.
	CodeUnavailable
)

func (c Code) String() string {
	switch c {
	case CodeUnresolvedReference:
		return "unresolved_reference"
	case CodeMissingAmount:
		return "missing_amount"
	case CodeInsufficientBalance:
		return "insufficient_balance"
	case CodeInsufficientReserve:
		return "insufficient_reserve"
	case CodeNoRoute:
		return "no_route"
	case CodeRejectedByUser:
		return "rejected_by_user"
	case CodeSubmissionFailed:
		return "submission_failed"
	case CodeConfirmationTimeout:
		return "confirmation_timeout"
	case CodeUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a typed error carrying a stable code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// As extracts a typed error from an error chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// IsRecoverable reports whether the user can fix the failure by amending the
// request (as opposed to infra failures or terminal outcomes).
func IsRecoverable(err error) bool {
	switch CodeOf(err) {
	case CodeUnresolvedReference, CodeMissingAmount, CodeInsufficientBalance,
		CodeInsufficientReserve, CodeNoRoute:
		return true
	}
	return false
}

// ShortfallError reports a balance or reserve insufficiency with the exact
// required and available amounts so the caller can relay a precise message.
type ShortfallError struct {
	Code      Code
	Asset     string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *ShortfallError) Error() string {
	kind := "balance"
	if e.Code == CodeInsufficientReserve {
		kind = "reserve"
	}
	return fmt.Sprintf("insufficient %s for %s: required %s, available %s",
		kind, e.Asset, e.Required.String(), e.Available.String())
}

// InsufficientBalance builds a typed shortfall error for a spend that exceeds
// the wallet balance.
func InsufficientBalance(asset string, required, available decimal.Decimal) error {
	short := &ShortfallError{Code: CodeInsufficientBalance, Asset: asset, Required: required, Available: available}
	return &Error{Code: CodeInsufficientBalance, Message: short.Error(), Cause: short}
}

// InsufficientReserve builds a typed shortfall error for a native-asset
// balance that would fall below the fee/rent reserve.
func InsufficientReserve(asset string, required, available decimal.Decimal) error {
	short := &ShortfallError{Code: CodeInsufficientReserve, Asset: asset, Required: required, Available: available}
	return &Error{Code: CodeInsufficientReserve, Message: short.Error(), Cause: short}
}

// ShortfallOf extracts the shortfall detail from an error chain, if present.
func ShortfallOf(err error) (*ShortfallError, bool) {
	var target *ShortfallError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

package pricing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the stable identifier UI adapters match on.
type ErrorCode string

const (
	CodeInvalidItem     ErrorCode = "invalid-item"
	CodeMissingPlan     ErrorCode = "missing-plan"
	CodeInvalidAddon    ErrorCode = "invalid-addon"
	CodeInvalidCurrency ErrorCode = "invalid-currency"
	CodeUnremovableItem ErrorCode = "unremovable-item"
	CodeInProgress      ErrorCode = "in-progress"
	CodeNotFound        ErrorCode = "not-found"
)

var (
	ErrInvalidItem     = errors.New("pricing: invalid item")
	ErrMissingPlan     = errors.New("pricing: a plan must be selected first")
	ErrInvalidAddon    = errors.New("pricing: add-on is not available for the plan")
	ErrInvalidCurrency = errors.New("pricing: currency is not supported by the plan")
	ErrUnremovableItem = errors.New("pricing: item is not part of the selection")
	ErrInProgress      = errors.New("pricing: another update is in progress")
	ErrNotFound        = errors.New("pricing: not found")

	ErrNilResolver = errors.New("pricing: resolver is required")
)

var sentinels = map[ErrorCode]error{
	CodeInvalidItem:     ErrInvalidItem,
	CodeMissingPlan:     ErrMissingPlan,
	CodeInvalidAddon:    ErrInvalidAddon,
	CodeInvalidCurrency: ErrInvalidCurrency,
	CodeUnremovableItem: ErrUnremovableItem,
	CodeInProgress:      ErrInProgress,
	CodeNotFound:        ErrNotFound,
}

// Error is a pricing error with a stable code and the context that caused it.
// It unwraps to the sentinel for its code and to Err, if set.
type Error struct {
	Code ErrorCode

	Field          Field          // invalid-item, unremovable-item, not-found
	ID             string         // unremovable-item, not-found
	PlanCode       string         // invalid-addon, not-found
	AddonCode      string         // invalid-addon
	CurrencyCode   CurrencyCode   // invalid-currency
	PlanCurrencies []CurrencyCode // invalid-currency

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if sentinel, ok := sentinels[e.Code]; ok {
		b.WriteString(sentinel.Error())
	} else {
		b.WriteString("pricing: ")
		b.WriteString(string(e.Code))
	}

	switch e.Code {
	case CodeInvalidItem:
		fmt.Fprintf(&b, " (type %q)", e.Field)
	case CodeInvalidAddon:
		fmt.Fprintf(&b, " (plan %q, add-on %q)", e.PlanCode, e.AddonCode)
	case CodeInvalidCurrency:
		fmt.Fprintf(&b, " (currency %q, plan currencies %v)", e.CurrencyCode, e.PlanCurrencies)
	case CodeUnremovableItem, CodeNotFound:
		fmt.Fprintf(&b, " (type %q, id %q)", e.Field, e.ID)
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// ErrorCode returns the code as a string for code-aware loggers.
func (e *Error) ErrorCode() string { return string(e.Code) }

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := sentinels[e.Code]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// CodeOf returns the pricing error code carried by err, or "" when err is
// not a pricing error.
func CodeOf(err error) ErrorCode {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}

// IsNotFound reports whether err marks a missing catalog entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFound builds the not-found error resolvers return for missing entities.
func NotFound(field Field, id string) *Error {
	return &Error{Code: CodeNotFound, Field: field, ID: id}
}

// IsUsageError reports whether err is a caller mistake rather than an
// upstream failure.
func IsUsageError(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidItem, CodeMissingPlan, CodeInvalidAddon, CodeInvalidCurrency, CodeUnremovableItem:
		return true
	}
	return false
}

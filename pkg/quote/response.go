package quote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// Response is the JSON envelope of every quote endpoint.
type Response struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request. Pricing errors carry their code
// and context fields in Details.
type ErrorDetail struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// SessionView is the state of a checkout session.
type SessionView struct {
	ID         string                `json:"id"`
	Selection  pricing.Selection     `json:"selection"`
	Snapshot   pricing.PriceSnapshot `json:"snapshot"`
	Superseded bool                  `json:"superseded,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, code string, data any) {
	writeJSON(w, status, Response{Code: code, Data: data})
}

// writeError maps err to a status code and error body. Upstream failures
// are reported without their internal message.
func writeError(w http.ResponseWriter, err error) {
	status, detail := errorDetail(err)
	writeJSON(w, status, Response{Code: detail.Code, Error: detail})
}

func errorDetail(err error) (int, *ErrorDetail) {
	var perr *pricing.Error
	if errors.As(err, &perr) {
		return statusFor(perr.Code), &ErrorDetail{
			Code:    string(perr.Code),
			Message: perr.Error(),
			Details: pricingDetails(perr),
		}
	}

	var verr validationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, &ErrorDetail{
			Code:    "validation_error",
			Message: "request validation failed",
			Details: verr.details(),
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, &ErrorDetail{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, &ErrorDetail{Code: "session_not_found", Message: err.Error()}
	}
	return http.StatusBadGateway, &ErrorDetail{
		Code:    "upstream_error",
		Message: http.StatusText(http.StatusBadGateway),
	}
}

func statusFor(code pricing.ErrorCode) int {
	switch code {
	case pricing.CodeNotFound:
		return http.StatusNotFound
	case pricing.CodeInProgress:
		return http.StatusConflict
	case pricing.CodeInvalidItem, pricing.CodeMissingPlan, pricing.CodeInvalidAddon,
		pricing.CodeInvalidCurrency, pricing.CodeUnremovableItem:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func pricingDetails(e *pricing.Error) map[string]any {
	d := map[string]any{}
	if e.Field != "" {
		d["type"] = e.Field
	}
	if e.ID != "" {
		d["id"] = e.ID
	}
	if e.PlanCode != "" {
		d["plan_code"] = e.PlanCode
	}
	if e.AddonCode != "" {
		d["addon_code"] = e.AddonCode
	}
	if e.CurrencyCode != "" {
		d["currency_code"] = e.CurrencyCode
	}
	if len(e.PlanCurrencies) > 0 {
		d["plan_currencies"] = e.PlanCurrencies
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

// validationError lists invalid request fields.
type validationError map[string][]string

func (v validationError) Error() string { return "quote: request validation failed" }

func (v validationError) Unwrap() error { return ErrInvalidRequest }

func (v validationError) details() map[string]any {
	d := make(map[string]any, len(v))
	for k, msgs := range v {
		d[k] = msgs
	}
	return d
}

package logger

import (
	"errors"
	"log/slog"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// codedError is implemented by errors that carry a stable code.
type codedError interface {
	error
	ErrorCode() string
}

// Error records err under "error". Errors carrying a code also get
// "error_code". Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	var coded codedError
	if errors.As(err, &coded) {
		return Group("error",
			slog.String("message", err.Error()),
			slog.String("code", coded.ErrorCode()),
		)
	}
	return slog.Any("error", err)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// EngineID records the pricing engine instance under "engine_id".
func EngineID(id string) slog.Attr {
	return slog.String("engine_id", id)
}

// SessionID records the checkout session under "session_id".
func SessionID(id string) slog.Attr {
	return slog.String("session_id", id)
}

// RequestID records the request identifier under "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// Field records the selection field under "field".
func Field(name string) slog.Attr {
	return slog.String("field", name)
}

// PlanCode records the plan code under "plan_code".
func PlanCode(code string) slog.Attr {
	return slog.String("plan_code", code)
}

// AddonCode records the add-on code under "addon_code".
func AddonCode(code string) slog.Attr {
	return slog.String("addon_code", code)
}

// CouponCode records the coupon code under "coupon_code".
func CouponCode(code string) slog.Attr {
	return slog.String("coupon_code", code)
}

// Currency records the currency under "currency".
func Currency(code string) slog.Attr {
	return slog.String("currency", code)
}

// Generation records the selection generation under "generation".
func Generation(gen uint64) slog.Attr {
	return slog.Uint64("generation", gen)
}

// Operation records a resolver operation under "op".
func Operation(op string) slog.Attr {
	return slog.String("op", op)
}

// Duration records a duration under "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

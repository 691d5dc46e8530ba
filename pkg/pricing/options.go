package pricing

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ConcurrencyPolicy decides what happens when Set/Remove calls overlap.
type ConcurrencyPolicy string

const (
	// LastWriterWins drops the mutation and snapshot of any call that was
	// overtaken by a later Set, Remove or Reset while it was waiting on the
	// resolver. The dropped call reports Result.Superseded.
	LastWriterWins ConcurrencyPolicy = "last-writer-wins"

	// FirstWriterWins rejects new calls with an in-progress error while
	// another call is still running.
	FirstWriterWins ConcurrencyPolicy = "first-writer-wins"

	// Unordered applies every call as it completes. A slow call may
	// overwrite the results of a faster, later one.
	Unordered ConcurrencyPolicy = "unordered"
)

// CouponPolicy decides what happens to the coupon when the plan changes.
type CouponPolicy string

const (
	// KeepCoupon leaves the coupon in place; it stays until removed.
	KeepCoupon CouponPolicy = "keep"

	// ClearCouponOnPlanChange drops the coupon whenever a different plan is selected.
	ClearCouponOnPlanChange CouponPolicy = "clear"
)

// DefaultCurrency is used when no other default is configured.
const DefaultCurrency CurrencyCode = "USD"

// ErrInvalidConfig is returned by Config.Options for unknown settings.
var ErrInvalidConfig = errors.New("pricing: invalid configuration")

// Config holds the engine settings loaded from the environment.
type Config struct {
	DefaultCurrency   string `env:"PRICING_DEFAULT_CURRENCY" envDefault:"USD"`
	ConcurrencyPolicy string `env:"PRICING_CONCURRENCY_POLICY" envDefault:"last-writer-wins"`
	CouponPolicy      string `env:"PRICING_COUPON_POLICY" envDefault:"keep"`
}

// Options converts the config into engine options.
func (c Config) Options() ([]Option, error) {
	var opts []Option

	if c.DefaultCurrency != "" {
		opts = append(opts, WithDefaultCurrency(CurrencyCode(strings.ToUpper(c.DefaultCurrency))))
	}

	if c.ConcurrencyPolicy != "" {
		policy := ConcurrencyPolicy(c.ConcurrencyPolicy)
		if !policy.valid() {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("unknown concurrency policy %q", c.ConcurrencyPolicy))
		}
		opts = append(opts, WithConcurrencyPolicy(policy))
	}

	if c.CouponPolicy != "" {
		policy := CouponPolicy(c.CouponPolicy)
		if !policy.valid() {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("unknown coupon policy %q", c.CouponPolicy))
		}
		opts = append(opts, WithCouponPolicy(policy))
	}

	return opts, nil
}

func (p ConcurrencyPolicy) valid() bool {
	switch p {
	case LastWriterWins, FirstWriterWins, Unordered:
		return true
	}
	return false
}

func (p CouponPolicy) valid() bool {
	switch p {
	case KeepCoupon, ClearCouponOnPlanChange:
		return true
	}
	return false
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Nil loggers are ignored.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithDefaultCurrency sets the currency used by new and reset selections.
func WithDefaultCurrency(code CurrencyCode) Option {
	return func(e *Engine) {
		if code != "" {
			e.defaultCurrency = code
		}
	}
}

// WithConcurrencyPolicy sets how overlapping calls are resolved.
// Panics on unknown policies so misconfiguration fails at startup.
func WithConcurrencyPolicy(p ConcurrencyPolicy) Option {
	if !p.valid() {
		panic(fmt.Errorf("pricing: invalid concurrency policy %q", p))
	}
	return func(e *Engine) { e.concurrency = p }
}

// WithCouponPolicy sets what happens to the coupon on plan changes.
// Panics on unknown policies so misconfiguration fails at startup.
func WithCouponPolicy(p CouponPolicy) Option {
	if !p.valid() {
		panic(fmt.Errorf("pricing: invalid coupon policy %q", p))
	}
	return func(e *Engine) { e.couponPolicy = p }
}

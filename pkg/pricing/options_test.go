package pricing_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pricingkit/pkg/logger"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

func TestConfig_Options(t *testing.T) {
	t.Run("defaults from env tags", func(t *testing.T) {
		var cfg pricing.Config
		require.NoError(t, env.Parse(&cfg))

		assert.Equal(t, "USD", cfg.DefaultCurrency)
		assert.Equal(t, string(pricing.LastWriterWins), cfg.ConcurrencyPolicy)
		assert.Equal(t, string(pricing.KeepCoupon), cfg.CouponPolicy)
	})

	t.Run("values from the environment", func(t *testing.T) {
		t.Setenv("PRICING_DEFAULT_CURRENCY", "eur")
		t.Setenv("PRICING_COUPON_POLICY", "clear")

		var cfg pricing.Config
		require.NoError(t, env.Parse(&cfg))

		opts, err := cfg.Options()
		require.NoError(t, err)

		e := pricing.New(newStubResolver(), opts...)
		assert.Equal(t, pricing.CurrencyCode("EUR"), e.Selection().Currency)
	})

	t.Run("unknown policies", func(t *testing.T) {
		_, err := pricing.Config{ConcurrencyPolicy: "random"}.Options()
		require.ErrorIs(t, err, pricing.ErrInvalidConfig)

		_, err = pricing.Config{CouponPolicy: "sometimes"}.Options()
		require.ErrorIs(t, err, pricing.ErrInvalidConfig)
	})
}

func TestOptions_PanicOnInvalidPolicy(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { pricing.WithConcurrencyPolicy("random") })
	assert.Panics(t, func() { pricing.WithCouponPolicy("sometimes") })
	assert.NotPanics(t, func() { pricing.WithConcurrencyPolicy(pricing.Unordered) })
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelDebug))

	e := pricing.New(newStubResolver(), pricing.WithLogger(log))
	_, err := e.SetAddon(context.Background(), "seats")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"engine_id":"`+e.ID()+`"`)
	assert.Contains(t, out, `"code":"missing-plan"`)
}

package logger_test

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pricingkit/pkg/logger"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	assert.Len(t, attr.Value.Group(), 2)
}

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("nil error", func(t *testing.T) {
		t.Parallel()
		assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	})

	t.Run("plain error", func(t *testing.T) {
		t.Parallel()
		err := errors.New("boom")
		attr := logger.Error(err)
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, err, attr.Value.Any())
	})

	t.Run("coded error", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("wrapped: %w", &pricing.Error{Code: pricing.CodeMissingPlan})
		attr := logger.Error(err)
		require.Equal(t, slog.KindGroup, attr.Value.Kind())

		group := attr.Value.Group()
		require.Len(t, group, 2)
		assert.Equal(t, "code", group[1].Key)
		assert.Equal(t, "missing-plan", group[1].Value.String())
	})
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plan_code", logger.PlanCode("pro").Key)
	assert.Equal(t, "addon_code", logger.AddonCode("seats").Key)
	assert.Equal(t, "coupon_code", logger.CouponCode("SAVE").Key)
	assert.Equal(t, "currency", logger.Currency("USD").Key)
	assert.Equal(t, uint64(3), logger.Generation(3).Value.Uint64())
	assert.True(t, logger.RequestID(nil).Equal(slog.Attr{}))
	assert.Equal(t, "r-1", logger.RequestID("r-1").Value.Any())
}

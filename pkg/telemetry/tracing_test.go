package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pricingkit/pkg/logger"
	"github.com/dmitrymomot/pricingkit/pkg/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{}, "pricingd", "test", logger.Discard())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

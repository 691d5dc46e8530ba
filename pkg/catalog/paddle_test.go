package catalog_test

import (
	"context"
	"errors"
	"testing"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pricingkit/pkg/catalog"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

type mockPaddle struct {
	mock.Mock
}

func (m *mockPaddle) GetPrice(ctx context.Context, id string) (*paddle.Price, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*paddle.Price), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaddle) FindDiscount(ctx context.Context, code string) (*paddle.Discount, error) {
	args := m.Called(ctx, code)
	if d := args.Get(0); d != nil {
		return d.(*paddle.Discount), args.Error(1)
	}
	return nil, args.Error(1)
}

func money(amount, currency string) paddle.Money {
	return paddle.Money{Amount: amount, CurrencyCode: paddle.CurrencyCode(currency)}
}

func proPrice() *paddle.Price {
	return &paddle.Price{
		ID:          "pri_pro",
		Name:        paddle.PtrTo("Pro"),
		Description: "Pro monthly",
		Status:      paddle.StatusActive,
		UnitPrice:   money("1000", "USD"),
		UnitPriceOverrides: []paddle.UnitPriceOverride{
			{UnitPrice: money("900", "EUR")},
			{UnitPrice: money("1000", "USD")},
		},
		CustomData: paddle.CustomData{
			"setup_fee_cents": float64(500),
			"addons":          []any{"pri_seats"},
		},
	}
}

func seatsPrice() *paddle.Price {
	return &paddle.Price{
		ID:          "pri_seats",
		Description: "Seats",
		Status:      paddle.StatusActive,
		UnitPrice:   money("200", "USD"),
		CustomData:  paddle.CustomData{"default_quantity": "3"},
	}
}

func TestPaddle_GetPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("maps price to plan", func(t *testing.T) {
		t.Parallel()
		api := &mockPaddle{}
		api.On("GetPrice", mock.Anything, "pri_pro").Return(proPrice(), nil)
		api.On("GetPrice", mock.Anything, "pri_seats").Return(seatsPrice(), nil)

		plan, err := catalog.NewPaddle(api).GetPlan(ctx, "pri_pro")
		require.NoError(t, err)

		assert.Equal(t, "pri_pro", plan.Code)
		assert.Equal(t, "Pro", plan.Name)
		assert.False(t, plan.Trial)
		assert.Equal(t, []pricing.PlanPrice{
			{Currency: "USD", UnitAmountCents: 1000, SetupFeeCents: 500},
			{Currency: "EUR", UnitAmountCents: 900, SetupFeeCents: 500},
		}, plan.Prices)

		require.Len(t, plan.Addons, 1)
		addon := plan.Addons[0]
		assert.Equal(t, "pri_seats", addon.Code)
		assert.Equal(t, "Seats", addon.Name)
		require.NotNil(t, addon.DefaultQuantity)
		assert.Equal(t, 3, *addon.DefaultQuantity)
		api.AssertExpectations(t)
	})

	t.Run("trial period marks trial plan", func(t *testing.T) {
		t.Parallel()
		price := seatsPrice()
		price.TrialPeriod = &paddle.Duration{Frequency: 14}
		price.CustomData = paddle.CustomData{"tax_exempt": true}

		api := &mockPaddle{}
		api.On("GetPrice", mock.Anything, "pri_seats").Return(price, nil)

		plan, err := catalog.NewPaddle(api).GetPlan(ctx, "pri_seats")
		require.NoError(t, err)
		assert.True(t, plan.Trial)
		assert.True(t, plan.TaxExempt)
		assert.Empty(t, plan.Addons)
	})

	t.Run("archived price is not found", func(t *testing.T) {
		t.Parallel()
		price := proPrice()
		price.Status = paddle.StatusArchived

		api := &mockPaddle{}
		api.On("GetPrice", mock.Anything, "pri_pro").Return(price, nil)

		_, err := catalog.NewPaddle(api).GetPlan(ctx, "pri_pro")
		assert.True(t, pricing.IsNotFound(err))
	})

	t.Run("api failure is upstream", func(t *testing.T) {
		t.Parallel()
		api := &mockPaddle{}
		api.On("GetPrice", mock.Anything, "pri_pro").Return(nil, errors.New("timeout"))

		_, err := catalog.NewPaddle(api).GetPlan(ctx, "pri_pro")
		require.ErrorIs(t, err, catalog.ErrUpstream)
		assert.False(t, pricing.IsNotFound(err))
	})

	t.Run("malformed amount", func(t *testing.T) {
		t.Parallel()
		price := seatsPrice()
		price.UnitPrice = money("12.50", "USD")

		api := &mockPaddle{}
		api.On("GetPrice", mock.Anything, "pri_seats").Return(price, nil)

		_, err := catalog.NewPaddle(api).GetPlan(ctx, "pri_seats")
		require.ErrorIs(t, err, catalog.ErrUpstream)
	})
}

func TestPaddle_GetCoupon(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("percentage discount", func(t *testing.T) {
		t.Parallel()
		api := &mockPaddle{}
		api.On("FindDiscount", mock.Anything, "SAVE10").Return(&paddle.Discount{
			ID:          "dsc_1",
			Status:      paddle.DiscountStatusActive,
			Description: "Save 10%",
			Type:        paddle.DiscountTypePercentage,
			Amount:      "10",
			Code:        paddle.PtrTo("SAVE10"),
		}, nil)

		c, err := catalog.NewPaddle(api).GetCoupon(ctx, "pri_pro", "SAVE10")
		require.NoError(t, err)
		assert.Equal(t, "SAVE10", c.Code)
		assert.Equal(t, "Save 10%", c.Name)
		assert.Equal(t, pricing.DiscountPercent, c.Discount.Type)
		assert.InDelta(t, 0.1, c.Discount.Rate, 1e-9)
	})

	t.Run("flat discount", func(t *testing.T) {
		t.Parallel()
		usd := paddle.CurrencyCode("USD")
		api := &mockPaddle{}
		api.On("FindDiscount", mock.Anything, "FLAT5").Return(&paddle.Discount{
			ID:           "dsc_2",
			Status:       paddle.DiscountStatusActive,
			Type:         paddle.DiscountTypeFlat,
			Amount:       "500",
			CurrencyCode: &usd,
			RestrictTo:   []string{"pri_pro"},
		}, nil)

		c, err := catalog.NewPaddle(api).GetCoupon(ctx, "pri_pro", "FLAT5")
		require.NoError(t, err)
		assert.Equal(t, pricing.DiscountFixed, c.Discount.Type)
		assert.Equal(t, map[pricing.CurrencyCode]int64{"USD": 500}, c.Discount.Amounts)
	})

	t.Run("restricted to another price", func(t *testing.T) {
		t.Parallel()
		api := &mockPaddle{}
		api.On("FindDiscount", mock.Anything, "FLAT5").Return(&paddle.Discount{
			Status:     paddle.DiscountStatusActive,
			Type:       paddle.DiscountTypePercentage,
			Amount:     "5",
			RestrictTo: []string{"pri_other"},
		}, nil)

		_, err := catalog.NewPaddle(api).GetCoupon(ctx, "pri_pro", "FLAT5")
		require.Error(t, err)

		var perr *pricing.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, pricing.CodeNotFound, perr.Code)
		assert.Equal(t, "pri_pro", perr.PlanCode)
	})

	t.Run("unknown code", func(t *testing.T) {
		t.Parallel()
		api := &mockPaddle{}
		api.On("FindDiscount", mock.Anything, "NOPE").Return(nil, nil)

		_, err := catalog.NewPaddle(api).GetCoupon(ctx, "pri_pro", "NOPE")
		assert.True(t, pricing.IsNotFound(err))
	})
}

func TestPaddle_GetTaxRates(t *testing.T) {
	t.Parallel()
	rates, err := catalog.NewPaddle(&mockPaddle{}).GetTaxRates(context.Background(), pricing.Address{"country": "US"})
	require.NoError(t, err)
	assert.Nil(t, rates)
}

func TestNewPaddleClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	_, err := catalog.NewPaddleClient(catalog.PaddleConfig{})
	require.ErrorIs(t, err, catalog.ErrMissingPaddleConfig)
}

package catalog_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/pricingkit/pkg/catalog"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

func intPtr(n int) *int { return &n }

func testCatalog() catalog.Catalog {
	return catalog.Catalog{
		Plans: []pricing.Plan{
			{
				Code: "pro",
				Name: "Pro",
				Prices: []pricing.PlanPrice{
					{Currency: "USD", UnitAmountCents: 1000, SetupFeeCents: 500},
					{Currency: "EUR", UnitAmountCents: 900},
				},
				Addons: []pricing.AddonDefinition{
					{Code: "seats", Prices: []pricing.AddonPrice{{Currency: "USD", UnitAmountCents: 200}}},
					{Code: "storage", DefaultQuantity: intPtr(2), Prices: []pricing.AddonPrice{{Currency: "USD", UnitAmountCents: 300}}},
				},
			},
			{
				Code:      "nonprofit",
				TaxExempt: true,
				Prices:    []pricing.PlanPrice{{Currency: "USD", UnitAmountCents: 500}},
			},
		},
		Coupons: []catalog.Coupon{
			{Coupon: pricing.Coupon{Code: "SAVE10", Discount: pricing.Discount{Type: pricing.DiscountPercent, Rate: 0.1}}},
			{
				Coupon: pricing.Coupon{Code: "PRO5", Discount: pricing.Discount{
					Type:    pricing.DiscountFixed,
					Amounts: map[pricing.CurrencyCode]int64{"USD": 500},
				}},
				Plans: []string{"pro"},
			},
		},
		TaxRules: []catalog.TaxRule{
			{Country: "US", Rates: []pricing.TaxEntry{{Type: pricing.TaxTypeUSSalesTax, Rate: 0.05}}},
			{Country: "US", PostalCode: "10001", Rates: []pricing.TaxEntry{{Type: pricing.TaxTypeUSSalesTax, Rate: 0.08875}}},
			{Country: "DE", Rates: []pricing.TaxEntry{{Type: "vat", Rate: 0.19}}},
		},
	}
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) GetPlan(ctx context.Context, code string) (pricing.Plan, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(pricing.Plan), args.Error(1)
}

func (m *mockResolver) GetCoupon(ctx context.Context, planCode, code string) (pricing.Coupon, error) {
	args := m.Called(ctx, planCode, code)
	return args.Get(0).(pricing.Coupon), args.Error(1)
}

func (m *mockResolver) GetTaxRates(ctx context.Context, addr pricing.Address) ([]pricing.TaxEntry, error) {
	args := m.Called(ctx, addr)
	if rates := args.Get(0); rates != nil {
		return rates.([]pricing.TaxEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

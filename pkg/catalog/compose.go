package catalog

import (
	"context"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

type composed struct {
	plans   pricing.PlanResolver
	coupons pricing.CouponResolver
	taxes   pricing.TaxResolver
}

// Compose builds a Resolver from separate plan, coupon and tax sources, e.g.
// Paddle for plans and coupons with a Postgres tax table.
// Panics if any source is nil.
func Compose(plans pricing.PlanResolver, coupons pricing.CouponResolver, taxes pricing.TaxResolver) pricing.Resolver {
	if plans == nil || coupons == nil || taxes == nil {
		panic("catalog: plan, coupon and tax sources are required")
	}
	return composed{plans: plans, coupons: coupons, taxes: taxes}
}

func (c composed) GetPlan(ctx context.Context, code string) (pricing.Plan, error) {
	return c.plans.GetPlan(ctx, code)
}

func (c composed) GetCoupon(ctx context.Context, planCode, code string) (pricing.Coupon, error) {
	return c.coupons.GetCoupon(ctx, planCode, code)
}

func (c composed) GetTaxRates(ctx context.Context, addr pricing.Address) ([]pricing.TaxEntry, error) {
	return c.taxes.GetTaxRates(ctx, addr)
}

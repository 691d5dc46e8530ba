package pricing

import "context"

// PlanResolver fetches plans by code.
type PlanResolver interface {
	GetPlan(ctx context.Context, code string) (Plan, error)
}

// CouponResolver fetches coupons valid for a plan.
type CouponResolver interface {
	GetCoupon(ctx context.Context, planCode, code string) (Coupon, error)
}

// TaxResolver fetches the tax rates that apply to an address.
type TaxResolver interface {
	GetTaxRates(ctx context.Context, addr Address) ([]TaxEntry, error)
}

// Resolver is the remote catalog the Engine resolves entities from.
// Implementations report missing entities with NotFound and must not retry;
// the Engine propagates every error unchanged.
type Resolver interface {
	PlanResolver
	CouponResolver
	TaxResolver
}

package pricing_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

func intPtr(n int) *int { return &n }

// basicPlan: $10.00 + $5.00 setup, or €9.00 without setup fee.
func basicPlan() pricing.Plan {
	return pricing.Plan{
		Code: "basic",
		Name: "Basic",
		Prices: []pricing.PlanPrice{
			{Currency: "USD", UnitAmountCents: 1000, SetupFeeCents: 500},
			{Currency: "EUR", UnitAmountCents: 900},
		},
		Addons: []pricing.AddonDefinition{
			{
				Code: "seats",
				Prices: []pricing.AddonPrice{
					{Currency: "USD", UnitAmountCents: 200},
					{Currency: "EUR", UnitAmountCents: 180},
				},
			},
			{
				Code: "storage",
				Prices: []pricing.AddonPrice{
					{Currency: "USD", UnitAmountCents: 300},
					{Currency: "EUR", UnitAmountCents: 250},
				},
				DefaultQuantity: intPtr(2),
			},
		},
	}
}

// trialPlan: $20.00 after the trial, $5.00 setup fee due now.
func trialPlan() pricing.Plan {
	return pricing.Plan{
		Code:  "trial",
		Trial: true,
		Prices: []pricing.PlanPrice{
			{Currency: "USD", UnitAmountCents: 2000, SetupFeeCents: 500},
		},
		Addons: []pricing.AddonDefinition{
			{Code: "seats", Prices: []pricing.AddonPrice{{Currency: "USD", UnitAmountCents: 200}}},
		},
	}
}

// euroPlan is only sold in EUR and GBP and has no add-ons.
func euroPlan() pricing.Plan {
	return pricing.Plan{
		Code: "euro",
		Prices: []pricing.PlanPrice{
			{Currency: "EUR", UnitAmountCents: 800},
			{Currency: "GBP", UnitAmountCents: 700},
		},
	}
}

func exemptPlan() pricing.Plan {
	p := basicPlan()
	p.Code = "exempt"
	p.TaxExempt = true
	return p
}

func tenOff() pricing.Coupon {
	return pricing.Coupon{
		Code:     "TENOFF",
		Discount: pricing.Discount{Type: pricing.DiscountPercent, Rate: 0.1},
	}
}

func flat20() pricing.Coupon {
	return pricing.Coupon{
		Code: "FLAT20",
		Discount: pricing.Discount{
			Type:    pricing.DiscountFixed,
			Amounts: map[pricing.CurrencyCode]int64{"USD": 2000, "EUR": 1500},
		},
	}
}

func usAddress() pricing.Address {
	return pricing.Address{pricing.AddressCountry: "US", pricing.AddressPostalCode: "94110"}
}

// stubResolver serves a fixed catalog. Plans named in gates block in
// GetPlan until the gate is closed; entered receives the code first.
type stubResolver struct {
	mu      sync.Mutex
	plans   map[string]pricing.Plan
	coupons map[string]pricing.Coupon
	taxes   map[string][]pricing.TaxEntry
	taxErr  error

	gates   map[string]chan struct{}
	entered chan string
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		plans: map[string]pricing.Plan{
			"basic":  basicPlan(),
			"trial":  trialPlan(),
			"euro":   euroPlan(),
			"exempt": exemptPlan(),
		},
		coupons: map[string]pricing.Coupon{
			"TENOFF": tenOff(),
			"FLAT20": flat20(),
		},
		taxes: map[string][]pricing.TaxEntry{
			"US": {{Type: pricing.TaxTypeUSSalesTax, Rate: 0.1}},
			"DE": {{Type: "vat", Rate: 0.19}},
		},
		gates:   map[string]chan struct{}{},
		entered: make(chan string, 8),
	}
}

// gate makes GetPlan(code) block until the returned func is called.
func (r *stubResolver) gate(code string) func() {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gates[code] = ch
	r.mu.Unlock()
	return func() { close(ch) }
}

func (r *stubResolver) GetPlan(ctx context.Context, code string) (pricing.Plan, error) {
	r.mu.Lock()
	gate := r.gates[code]
	plan, ok := r.plans[code]
	r.mu.Unlock()

	if gate != nil {
		r.entered <- code
		select {
		case <-gate:
		case <-ctx.Done():
			return pricing.Plan{}, ctx.Err()
		}
	}
	if !ok {
		return pricing.Plan{}, pricing.NotFound(pricing.FieldPlan, code)
	}
	return plan, nil
}

func (r *stubResolver) GetCoupon(_ context.Context, _, code string) (pricing.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.coupons[code]; ok {
		return c, nil
	}
	return pricing.Coupon{}, pricing.NotFound(pricing.FieldCoupon, code)
}

func (r *stubResolver) GetTaxRates(_ context.Context, addr pricing.Address) ([]pricing.TaxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taxErr != nil {
		return nil, r.taxErr
	}
	return r.taxes[addr.Country()], nil
}

func (r *stubResolver) failTaxes(err error) {
	r.mu.Lock()
	r.taxErr = err
	r.mu.Unlock()
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pricing.TaxEntry), args.Error(1)
}

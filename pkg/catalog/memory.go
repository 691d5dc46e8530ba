package catalog

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// Memory is a pricing.Resolver over an in-memory catalog. It copies the
// catalog on load and every value it returns, so neither callers nor the
// original catalog can change its state. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	plans   map[string]pricing.Plan
	coupons map[string]Coupon
	rules   []TaxRule
}

var _ pricing.Resolver = (*Memory)(nil)

// NewMemory returns a resolver serving a deep copy of c.
// Panics if the catalog does not validate, so a broken catalog stops startup.
func NewMemory(c Catalog) *Memory {
	m := &Memory{}
	if err := m.Replace(c); err != nil {
		panic(err)
	}
	return m
}

// Replace swaps in a new catalog atomically. Invalid catalogs are rejected
// and the current one stays in place.
func (m *Memory) Replace(c Catalog) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c = c.Clone()

	plans := make(map[string]pricing.Plan, len(c.Plans))
	for _, p := range c.Plans {
		plans[p.Code] = p
	}
	coupons := make(map[string]Coupon, len(c.Coupons))
	for _, cp := range c.Coupons {
		coupons[cp.Code] = cp
	}

	m.mu.Lock()
	m.plans = plans
	m.coupons = coupons
	m.rules = c.TaxRules
	m.mu.Unlock()
	return nil
}

// Catalog returns a copy of the served catalog, with plans and coupons
// sorted by code.
func (m *Memory) Catalog() Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := Catalog{
		Plans:    make([]pricing.Plan, 0, len(m.plans)),
		Coupons:  make([]Coupon, 0, len(m.coupons)),
		TaxRules: m.rules,
	}
	for _, p := range m.plans {
		c.Plans = append(c.Plans, p)
	}
	for _, cp := range m.coupons {
		c.Coupons = append(c.Coupons, cp)
	}
	slices.SortFunc(c.Plans, func(a, b pricing.Plan) int { return cmp.Compare(a.Code, b.Code) })
	slices.SortFunc(c.Coupons, func(a, b Coupon) int { return cmp.Compare(a.Code, b.Code) })
	return c.Clone()
}

// GetPlan returns the plan with the given code.
func (m *Memory) GetPlan(_ context.Context, code string) (pricing.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[code]
	if !ok {
		return pricing.Plan{}, pricing.NotFound(pricing.FieldPlan, code)
	}
	return p.Clone(), nil
}

// GetCoupon returns the coupon if it exists and applies to the plan.
func (m *Memory) GetCoupon(_ context.Context, planCode, code string) (pricing.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.coupons[code]
	if !ok || !cp.AppliesTo(planCode) {
		return pricing.Coupon{}, couponNotFound(planCode, code)
	}
	return cp.Coupon.Clone(), nil
}

// GetTaxRates returns the rates of the most specific rule for the address:
// a postal code rule wins over a country rule. No match means no tax.
func (m *Memory) GetTaxRates(_ context.Context, addr pricing.Address) ([]pricing.TaxEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best  []pricing.TaxEntry
		score int
	)
	for _, r := range m.rules {
		if s := r.matches(addr); s > score {
			best, score = r.Rates, s
		}
	}
	return slices.Clone(best), nil
}

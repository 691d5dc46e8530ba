package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// Catalog is a complete set of plans, coupons and tax rules, as stored in
// catalog files, S3 objects and the Postgres tables.
type Catalog struct {
	Plans    []pricing.Plan `json:"plans" yaml:"plans"`
	Coupons  []Coupon       `json:"coupons,omitempty" yaml:"coupons,omitempty"`
	TaxRules []TaxRule      `json:"tax_rules,omitempty" yaml:"tax_rules,omitempty"`
}

// Coupon is a catalog coupon. An empty Plans list makes it valid for every plan.
type Coupon struct {
	pricing.Coupon `yaml:",inline"`
	Plans          []string `json:"plans,omitempty" yaml:"plans,omitempty"`
}

// AppliesTo reports whether the coupon may be used with the plan.
func (c Coupon) AppliesTo(planCode string) bool {
	return len(c.Plans) == 0 || slices.Contains(c.Plans, planCode)
}

// TaxRule lists the rates for a country, optionally narrowed to one postal code.
type TaxRule struct {
	Country    string             `json:"country" yaml:"country"`
	PostalCode string             `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	Rates      []pricing.TaxEntry `json:"rates" yaml:"rates"`
}

// matches reports how well the rule fits the address: 0 for no match,
// 1 for a country rule and 2 for a postal code rule.
func (r TaxRule) matches(addr pricing.Address) int {
	if r.Country == "" || r.Country != addr.Country() {
		return 0
	}
	if r.PostalCode == "" {
		return 1
	}
	if r.PostalCode == addr.PostalCode() {
		return 2
	}
	return 0
}

// Validate checks the catalog for duplicate codes and malformed entries.
func (c Catalog) Validate() error {
	var errs []error

	plans := make(map[string]struct{}, len(c.Plans))
	for i, p := range c.Plans {
		switch {
		case p.Code == "":
			errs = append(errs, fmt.Errorf("plan #%d: code is required", i))
			continue
		case len(p.Prices) == 0:
			errs = append(errs, fmt.Errorf("plan %q: at least one price is required", p.Code))
		}
		if _, ok := plans[p.Code]; ok {
			errs = append(errs, fmt.Errorf("plan %q: duplicate code", p.Code))
		}
		plans[p.Code] = struct{}{}

		addons := make(map[string]struct{}, len(p.Addons))
		for _, a := range p.Addons {
			if a.Code == "" {
				errs = append(errs, fmt.Errorf("plan %q: add-on code is required", p.Code))
				continue
			}
			if _, ok := addons[a.Code]; ok {
				errs = append(errs, fmt.Errorf("plan %q: duplicate add-on %q", p.Code, a.Code))
			}
			addons[a.Code] = struct{}{}
		}
	}

	coupons := make(map[string]struct{}, len(c.Coupons))
	for i, cp := range c.Coupons {
		if cp.Code == "" {
			errs = append(errs, fmt.Errorf("coupon #%d: code is required", i))
			continue
		}
		if _, ok := coupons[cp.Code]; ok {
			errs = append(errs, fmt.Errorf("coupon %q: duplicate code", cp.Code))
		}
		coupons[cp.Code] = struct{}{}

		switch cp.Discount.Type {
		case pricing.DiscountPercent:
			if cp.Discount.Rate < 0 || cp.Discount.Rate > 1 {
				errs = append(errs, fmt.Errorf("coupon %q: rate must be between 0 and 1", cp.Code))
			}
		case pricing.DiscountFixed:
			if len(cp.Discount.Amounts) == 0 {
				errs = append(errs, fmt.Errorf("coupon %q: fixed discount needs amounts", cp.Code))
			}
		default:
			errs = append(errs, fmt.Errorf("coupon %q: unknown discount type %q", cp.Code, cp.Discount.Type))
		}
	}

	for i, r := range c.TaxRules {
		if r.Country == "" {
			errs = append(errs, fmt.Errorf("tax rule #%d: country is required", i))
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidCatalog}, errs...)...)
	}
	return nil
}

// Clone returns a deep copy of the catalog.
func (c Catalog) Clone() Catalog {
	out := Catalog{
		Plans:    make([]pricing.Plan, len(c.Plans)),
		Coupons:  make([]Coupon, len(c.Coupons)),
		TaxRules: make([]TaxRule, len(c.TaxRules)),
	}
	for i, p := range c.Plans {
		out.Plans[i] = p.Clone()
	}
	for i, cp := range c.Coupons {
		out.Coupons[i] = Coupon{Coupon: cp.Coupon.Clone(), Plans: slices.Clone(cp.Plans)}
	}
	for i, r := range c.TaxRules {
		out.TaxRules[i] = TaxRule{
			Country:    r.Country,
			PostalCode: r.PostalCode,
			Rates:      slices.Clone(r.Rates),
		}
	}
	return out
}

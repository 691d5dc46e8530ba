package pricing

import (
	"maps"
	"slices"
)

// CurrencyCode is an ISO 4217 currency code, e.g. "USD".
type CurrencyCode string

// Field names one part of a Selection.
type Field string

const (
	FieldPlan     Field = "plan"
	FieldAddon    Field = "addon"
	FieldCoupon   Field = "coupon"
	FieldAddress  Field = "address"
	FieldCurrency Field = "currency"
)

// TaxTypeUSSalesTax marks US sales tax entries, which tax-exempt plans skip.
const TaxTypeUSSalesTax = "usst"

// PlanPrice is a plan's price in a single currency, in cents.
type PlanPrice struct {
	Currency        CurrencyCode `json:"currency" yaml:"currency"`
	UnitAmountCents int64        `json:"unit_amount_cents" yaml:"unit_amount_cents"`
	SetupFeeCents   int64        `json:"setup_fee_cents" yaml:"setup_fee_cents"`
}

// AddonPrice is an add-on's unit price in a single currency, in cents.
type AddonPrice struct {
	Currency        CurrencyCode `json:"currency" yaml:"currency"`
	UnitAmountCents int64        `json:"unit_amount_cents" yaml:"unit_amount_cents"`
}

// Plan is a catalog plan. Prices keep the catalog order; the first entry is
// the fallback currency when the selected one is not offered.
type Plan struct {
	Code      string            `json:"code" yaml:"code"`
	Name      string            `json:"name,omitempty" yaml:"name,omitempty"`
	Trial     bool              `json:"trial,omitempty" yaml:"trial,omitempty"`
	TaxExempt bool              `json:"tax_exempt,omitempty" yaml:"tax_exempt,omitempty"`
	Prices    []PlanPrice       `json:"prices" yaml:"prices"`
	Addons    []AddonDefinition `json:"addons,omitempty" yaml:"addons,omitempty"`
}

// PriceIn returns the plan price for the currency.
func (p Plan) PriceIn(currency CurrencyCode) (PlanPrice, bool) {
	for _, price := range p.Prices {
		if price.Currency == currency {
			return price, true
		}
	}
	return PlanPrice{}, false
}

// Currencies lists the plan's currencies in catalog order.
func (p Plan) Currencies() []CurrencyCode {
	out := make([]CurrencyCode, 0, len(p.Prices))
	for _, price := range p.Prices {
		out = append(out, price.Currency)
	}
	return out
}

// Addon returns the add-on definition with the given code.
func (p Plan) Addon(code string) (AddonDefinition, bool) {
	for _, addon := range p.Addons {
		if addon.Code == code {
			return addon.Clone(), true
		}
	}
	return AddonDefinition{}, false
}

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	out := p
	out.Prices = slices.Clone(p.Prices)
	if p.Addons != nil {
		out.Addons = make([]AddonDefinition, len(p.Addons))
		for i, addon := range p.Addons {
			out.Addons[i] = addon.Clone()
		}
	}
	return out
}

// AddonDefinition describes an add-on offered with a plan.
type AddonDefinition struct {
	Code            string       `json:"code" yaml:"code"`
	Name            string       `json:"name,omitempty" yaml:"name,omitempty"`
	Prices          []AddonPrice `json:"prices" yaml:"prices"`
	DefaultQuantity *int         `json:"default_quantity,omitempty" yaml:"default_quantity,omitempty"`
}

// PriceIn returns the add-on unit price for the currency.
func (a AddonDefinition) PriceIn(currency CurrencyCode) (AddonPrice, bool) {
	for _, price := range a.Prices {
		if price.Currency == currency {
			return price, true
		}
	}
	return AddonPrice{}, false
}

// Clone returns a deep copy of the definition.
func (a AddonDefinition) Clone() AddonDefinition {
	out := a
	out.Prices = slices.Clone(a.Prices)
	if a.DefaultQuantity != nil {
		q := *a.DefaultQuantity
		out.DefaultQuantity = &q
	}
	return out
}

// AddonSelection is a selected add-on: a copy of its definition plus a
// quantity that is always at least 1.
type AddonSelection struct {
	AddonDefinition
	Quantity int `json:"quantity"`
}

// Clone returns a deep copy of the selection.
func (a AddonSelection) Clone() AddonSelection {
	return AddonSelection{AddonDefinition: a.AddonDefinition.Clone(), Quantity: a.Quantity}
}

// DiscountType tells how a coupon discounts.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Discount holds either a rate (0.1 for 10%) or per-currency fixed amounts in cents.
type Discount struct {
	Type    DiscountType           `json:"type" yaml:"type"`
	Rate    float64                `json:"rate,omitempty" yaml:"rate,omitempty"`
	Amounts map[CurrencyCode]int64 `json:"amounts,omitempty" yaml:"amounts,omitempty"`
}

// Coupon is a discount code scoped to the plan it was fetched for.
type Coupon struct {
	Code     string   `json:"code" yaml:"code"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Discount Discount `json:"discount" yaml:"discount"`
}

// Clone returns a deep copy of the coupon.
func (c Coupon) Clone() Coupon {
	out := c
	out.Discount.Amounts = maps.Clone(c.Discount.Amounts)
	return out
}

// Address is an opaque set of address fields used as the tax lookup key.
type Address map[string]string

const (
	AddressCountry    = "country"
	AddressPostalCode = "postal_code"
)

// Country returns the country field.
func (a Address) Country() string { return a[AddressCountry] }

// PostalCode returns the postal code field.
func (a Address) PostalCode() string { return a[AddressPostalCode] }

// Equal reports whether both addresses hold the same fields.
func (a Address) Equal(other Address) bool {
	return maps.Equal(a, other)
}

// Clone returns a copy of the address.
func (a Address) Clone() Address {
	return maps.Clone(a)
}

// TaxEntry is a single tax rate returned for an address.
type TaxEntry struct {
	Type string  `json:"type" yaml:"type"`
	Rate float64 `json:"rate" yaml:"rate"`
}

package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// TaxRatesFunc looks up the tax rates for an address during a Calculation Pass.
type TaxRatesFunc func(ctx context.Context, addr Address) ([]TaxEntry, error)

// Calculate runs a full Calculation Pass over the selection. The steps run in
// a fixed order because each one works on the subtotal left by the previous:
// base price, add-ons, coupon, setup fee, tax, total. Amounts stay in cents
// until the final formatting step.
//
// taxes is only called when the selection has an address; its error aborts
// the pass.
func Calculate(ctx context.Context, sel Selection, taxes TaxRatesFunc) (PriceSnapshot, error) {
	c := &calculation{sel: sel, addons: make(map[string]decimal.Decimal)}

	c.base()
	c.addOns()
	c.discount()
	c.setupFee()
	if err := c.tax(ctx, taxes); err != nil {
		return PriceSnapshot{}, err
	}
	c.total()

	return c.snapshot(), nil
}

type stageCents struct {
	subtotal decimal.Decimal
	addons   decimal.Decimal
	discount decimal.Decimal
	setupFee decimal.Decimal
	tax      decimal.Decimal
	total    decimal.Decimal
}

func (s stageCents) format() Stage {
	return Stage{
		Subtotal: FormatCents(s.subtotal),
		Addons:   FormatCents(s.addons),
		Discount: FormatCents(s.discount),
		SetupFee: FormatCents(s.setupFee),
		Tax:      FormatCents(s.tax),
		Total:    FormatCents(s.total),
	}
}

type calculation struct {
	sel    Selection
	now    stageCents
	next   stageCents
	addons map[string]decimal.Decimal
}

func (c *calculation) trial() bool {
	return c.sel.Plan != nil && c.sel.Plan.Trial
}

func (c *calculation) planPrice() (PlanPrice, bool) {
	if c.sel.Plan == nil {
		return PlanPrice{}, false
	}
	return c.sel.Plan.PriceIn(c.sel.Currency)
}

// base sets both subtotals to the plan amount; nothing is due now during a trial.
func (c *calculation) base() {
	var amount decimal.Decimal
	if price, ok := c.planPrice(); ok {
		amount = decimal.NewFromInt(price.UnitAmountCents).Mul(decimal.NewFromInt(c.sel.planQuantity()))
	}

	c.next.subtotal = amount
	if c.trial() {
		c.now.subtotal = decimal.Zero
	} else {
		c.now.subtotal = amount
	}
}

// addOns records the unit price of every plan add-on and adds the selected
// ones to the subtotals. During a trial they only count towards next.
func (c *calculation) addOns() {
	if c.sel.Plan != nil {
		for _, def := range c.sel.Plan.Addons {
			var unit decimal.Decimal
			if price, ok := def.PriceIn(c.sel.Currency); ok {
				unit = decimal.NewFromInt(price.UnitAmountCents)
			}
			c.addons[def.Code] = unit

			i := c.sel.addonIndex(def.Code)
			if i < 0 {
				continue
			}
			amount := unit.Mul(decimal.NewFromInt(int64(c.sel.Addons[i].Quantity)))
			if !c.trial() {
				c.now.addons = c.now.addons.Add(amount)
			}
			c.next.addons = c.next.addons.Add(amount)
		}
	}

	c.now.subtotal = c.now.subtotal.Add(c.now.addons)
	c.next.subtotal = c.next.subtotal.Add(c.next.addons)
}

// discount applies the coupon to each stage's subtotal so far.
func (c *calculation) discount() {
	coupon := c.sel.Coupon
	if coupon == nil {
		return
	}

	switch coupon.Discount.Type {
	case DiscountPercent:
		rate := decimal.NewFromFloat(coupon.Discount.Rate)
		c.now.discount = c.now.subtotal.Mul(rate)
		c.next.discount = c.next.subtotal.Mul(rate)
	case DiscountFixed:
		amount := decimal.NewFromInt(coupon.Discount.Amounts[c.sel.Currency])
		c.now.discount = amount
		c.next.discount = amount
	}

	c.now.subtotal = c.now.subtotal.Sub(c.now.discount)
	c.next.subtotal = c.next.subtotal.Sub(c.next.discount)
}

// setupFee is a one-time charge, so it only lands in now.
func (c *calculation) setupFee() {
	if price, ok := c.planPrice(); ok {
		c.now.setupFee = decimal.NewFromInt(price.SetupFeeCents)
	}
	c.now.subtotal = c.now.subtotal.Add(c.now.setupFee)
}

// tax applies every rate to the discounted subtotal. Rates never compound on
// each other.
func (c *calculation) tax(ctx context.Context, taxes TaxRatesFunc) error {
	if len(c.sel.Address) == 0 || taxes == nil {
		return nil
	}

	entries, err := taxes(ctx, c.sel.Address.Clone())
	if err != nil {
		return err
	}

	exempt := c.sel.Plan != nil && c.sel.Plan.TaxExempt
	for _, entry := range entries {
		if entry.Type == TaxTypeUSSalesTax && exempt {
			continue
		}
		rate := decimal.NewFromFloat(entry.Rate)
		c.now.tax = c.now.tax.Add(c.now.subtotal.Mul(rate))
		c.next.tax = c.next.tax.Add(c.next.subtotal.Mul(rate))
	}
	return nil
}

func (c *calculation) total() {
	c.now.total = c.now.subtotal.Add(c.now.tax)
	c.next.total = c.next.subtotal.Add(c.next.tax)
}

func (c *calculation) snapshot() PriceSnapshot {
	addons := make(map[string]string, len(c.addons))
	for code, unit := range c.addons {
		addons[code] = FormatCents(unit)
	}
	return PriceSnapshot{
		Now:    c.now.format(),
		Next:   c.next.format(),
		Addons: addons,
		Currency: CurrencyInfo{
			Code:   c.sel.Currency,
			Symbol: CurrencySymbol(c.sel.Currency),
		},
	}
}

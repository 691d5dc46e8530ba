package pricing

import (
	"strconv"
	"strings"
)

// Item is a single-field update for Engine.Set. Build it with one of the
// Select* constructors; the zero Item is rejected with invalid-item.
type Item struct {
	field    Field
	code     string
	quantity *int
	raw      *string
	address  Address
}

// SelectPlan selects the plan with the given code.
func SelectPlan(code string) Item { return Item{field: FieldPlan, code: code} }

// SelectAddon selects an add-on of the current plan. Without a quantity the
// definition's default quantity (or 1) is used.
func SelectAddon(code string) Item { return Item{field: FieldAddon, code: code} }

// SelectCoupon applies a coupon; an empty code clears the current one.
func SelectCoupon(code string) Item { return Item{field: FieldCoupon, code: code} }

// SelectAddress sets the billing address used for tax lookups.
func SelectAddress(addr Address) Item {
	return Item{field: FieldAddress, address: addr.Clone()}
}

// SelectCurrency switches the pricing currency.
func SelectCurrency(code CurrencyCode) Item {
	return Item{field: FieldCurrency, code: string(code)}
}

// WithQuantity sets an explicit quantity for plan and add-on items.
func (i Item) WithQuantity(n int) Item {
	i.quantity = &n
	i.raw = nil
	return i
}

// WithRawQuantity sets the quantity from user input. The leading integer is
// used ("2.7" is 2); input without one is treated as not-a-number.
func (i Item) WithRawQuantity(s string) Item {
	i.raw = &s
	i.quantity = nil
	return i
}

// Field reports which part of the selection the item updates.
func (i Item) Field() Field { return i.field }

// Code returns the plan, add-on, coupon or currency code of the item.
func (i Item) Code() string { return i.code }

// Address returns a copy of the item's address.
func (i Item) Address() Address { return i.address.Clone() }

// explicitQuantity resolves the requested quantity. ok is false when none
// was given; valid is false for input that is not a number.
func (i Item) explicitQuantity() (qty int, ok, valid bool) {
	switch {
	case i.quantity != nil:
		return *i.quantity, true, true
	case i.raw != nil:
		n, valid := parseLeadingInt(*i.raw)
		return n, true, valid
	}
	return 0, false, true
}

// Removal names the selection entry Engine.Remove should drop. Build it with
// one of the Remove* constructors; the zero Removal is rejected with invalid-item.
type Removal struct {
	field   Field
	id      string
	any     bool
	address Address
}

// RemovePlan removes the plan if its code matches.
func RemovePlan(code string) Removal { return Removal{field: FieldPlan, id: code} }

// RemoveAddon removes the selected add-on with the given code.
func RemoveAddon(code string) Removal { return Removal{field: FieldAddon, id: code} }

// RemoveCoupon removes the coupon if its code matches.
func RemoveCoupon(code string) Removal { return Removal{field: FieldCoupon, id: code} }

// RemoveAddress removes the address if it equals addr.
func RemoveAddress(addr Address) Removal {
	return Removal{field: FieldAddress, address: addr.Clone()}
}

// RemoveAny removes whatever value the field currently holds. For add-ons
// that is every selected add-on.
func RemoveAny(field Field) Removal { return Removal{field: field, any: true} }

// Field reports which part of the selection the removal targets.
func (r Removal) Field() Field { return r.field }

// ID returns the code the removal matches, empty for address and "any" removals.
func (r Removal) ID() string { return r.id }

// parseLeadingInt reads an optionally signed integer prefix, skipping leading
// whitespace and ignoring anything after the digits.
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

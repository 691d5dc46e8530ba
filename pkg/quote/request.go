package quote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

const maxBodyBytes = 64 << 10

// Quantity accepts a JSON number or string. Strings go through the engine's
// user-input parsing, so "2 seats" means 2 and "many" means removal.
type Quantity struct {
	n   *int
	raw *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*q = Quantity{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		q.raw, q.n = &s, nil
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("quantity must be a number or string: %w", err)
	}
	n := int(f)
	q.n, q.raw = &n, nil
	return nil
}

// MarshalJSON implements json.Marshaler.
func (q Quantity) MarshalJSON() ([]byte, error) {
	switch {
	case q.n != nil:
		return json.Marshal(*q.n)
	case q.raw != nil:
		return json.Marshal(*q.raw)
	}
	return []byte("null"), nil
}

// IntQuantity returns a numeric quantity.
func IntQuantity(n int) *Quantity { return &Quantity{n: &n} }

func (q *Quantity) apply(item pricing.Item) pricing.Item {
	switch {
	case q == nil:
		return item
	case q.n != nil:
		return item.WithQuantity(*q.n)
	case q.raw != nil:
		return item.WithRawQuantity(*q.raw)
	}
	return item
}

// SetRequest is the body of POST /sessions/{id}/set.
type SetRequest struct {
	Type     string            `json:"type"`
	Code     string            `json:"code,omitempty"`
	Quantity *Quantity         `json:"quantity,omitempty"`
	Address  map[string]string `json:"address,omitempty"`
}

// Item converts the request into an engine item. Unknown types give the
// zero Item, which the engine rejects with invalid-item.
func (r SetRequest) Item() pricing.Item {
	switch pricing.Field(strings.ToLower(r.Type)) {
	case pricing.FieldPlan:
		return r.Quantity.apply(pricing.SelectPlan(r.Code))
	case pricing.FieldAddon:
		return r.Quantity.apply(pricing.SelectAddon(r.Code))
	case pricing.FieldCoupon:
		return pricing.SelectCoupon(r.Code)
	case pricing.FieldAddress:
		return pricing.SelectAddress(r.Address)
	case pricing.FieldCurrency:
		return pricing.SelectCurrency(pricing.CurrencyCode(strings.ToUpper(r.Code)))
	}
	return pricing.Item{}
}

// RemoveRequest is the body of POST /sessions/{id}/remove. Any removes the
// current value regardless of ID; for add-ons that is every selected one.
type RemoveRequest struct {
	Type    string            `json:"type"`
	ID      string            `json:"id,omitempty"`
	Address map[string]string `json:"address,omitempty"`
	Any     bool              `json:"any,omitempty"`
}

// Removal converts the request into an engine removal.
func (r RemoveRequest) Removal() pricing.Removal {
	field := pricing.Field(strings.ToLower(r.Type))
	if r.Any {
		return pricing.RemoveAny(field)
	}
	switch field {
	case pricing.FieldPlan:
		return pricing.RemovePlan(r.ID)
	case pricing.FieldAddon:
		return pricing.RemoveAddon(r.ID)
	case pricing.FieldCoupon:
		return pricing.RemoveCoupon(r.ID)
	case pricing.FieldAddress:
		return pricing.RemoveAddress(r.Address)
	}
	return pricing.Removal{}
}

// AddonRequest selects one add-on in a QuoteRequest.
type AddonRequest struct {
	Code     string    `json:"code"`
	Quantity *Quantity `json:"quantity,omitempty"`
}

// QuoteRequest describes a complete selection priced in one call.
type QuoteRequest struct {
	Plan     string            `json:"plan"`
	Quantity *Quantity         `json:"quantity,omitempty"`
	Addons   []AddonRequest    `json:"addons,omitempty"`
	Coupon   string            `json:"coupon,omitempty"`
	Address  map[string]string `json:"address,omitempty"`
	Currency string            `json:"currency,omitempty"`
}

// validate reports missing fields as details keyed by JSON field name.
func (r QuoteRequest) validate() map[string][]string {
	details := map[string][]string{}
	if strings.TrimSpace(r.Plan) == "" {
		details["plan"] = append(details["plan"], "plan is required")
	}
	for i, a := range r.Addons {
		if strings.TrimSpace(a.Code) == "" {
			key := fmt.Sprintf("addons[%d].code", i)
			details[key] = append(details[key], "add-on code is required")
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// Items returns the updates that build the requested selection, in the
// order they must be applied.
func (r QuoteRequest) Items() []pricing.Item {
	items := make([]pricing.Item, 0, len(r.Addons)+4)
	if r.Currency != "" {
		items = append(items, pricing.SelectCurrency(pricing.CurrencyCode(strings.ToUpper(r.Currency))))
	}
	items = append(items, r.Quantity.apply(pricing.SelectPlan(r.Plan)))
	for _, a := range r.Addons {
		items = append(items, a.Quantity.apply(pricing.SelectAddon(a.Code)))
	}
	if r.Coupon != "" {
		items = append(items, pricing.SelectCoupon(r.Coupon))
	}
	if len(r.Address) > 0 {
		items = append(items, pricing.SelectAddress(r.Address))
	}
	return items
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Join(ErrInvalidRequest, err)
	}
	return nil
}

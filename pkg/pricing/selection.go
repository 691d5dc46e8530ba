package pricing

// Selection is the customer's in-progress choice. The Engine owns it; callers
// only ever see copies.
type Selection struct {
	Plan         *Plan            `json:"plan,omitempty"`
	PlanQuantity int              `json:"plan_quantity,omitempty"`
	Addons       []AddonSelection `json:"addons"`
	Coupon       *Coupon          `json:"coupon,omitempty"`
	Address      Address          `json:"address,omitempty"`
	Currency     CurrencyCode     `json:"currency"`
}

// NewSelection returns an empty selection in the given currency.
func NewSelection(currency CurrencyCode) Selection {
	return Selection{Addons: []AddonSelection{}, Currency: currency}
}

// Clone returns a deep copy of the selection.
func (s Selection) Clone() Selection {
	out := Selection{
		PlanQuantity: s.PlanQuantity,
		Addons:       make([]AddonSelection, len(s.Addons)),
		Address:      s.Address.Clone(),
		Currency:     s.Currency,
	}
	if s.Plan != nil {
		plan := s.Plan.Clone()
		out.Plan = &plan
	}
	for i, addon := range s.Addons {
		out.Addons[i] = addon.Clone()
	}
	if s.Coupon != nil {
		coupon := s.Coupon.Clone()
		out.Coupon = &coupon
	}
	return out
}

// addonIndex returns the position of the selected add-on or -1.
func (s Selection) addonIndex(code string) int {
	for i, addon := range s.Addons {
		if addon.Code == code {
			return i
		}
	}
	return -1
}

func (s Selection) planQuantity() int64 {
	if s.PlanQuantity < 1 {
		return 1
	}
	return int64(s.PlanQuantity)
}

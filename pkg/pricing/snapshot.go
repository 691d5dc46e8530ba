package pricing

import (
	"maps"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stage is one column of the price breakdown. All values are decimal strings
// with two fraction digits and never negative.
type Stage struct {
	Subtotal string `json:"subtotal"`
	Addons   string `json:"addons"`
	Discount string `json:"discount"`
	SetupFee string `json:"setup_fee"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

// CurrencyInfo identifies the currency of a snapshot.
type CurrencyInfo struct {
	Code   CurrencyCode `json:"code"`
	Symbol string       `json:"symbol"`
}

// PriceSnapshot is the result of one Calculation Pass: what is due now, what
// is due on the next billing cycle, and the unit price of every plan add-on.
type PriceSnapshot struct {
	Now      Stage             `json:"now"`
	Next     Stage             `json:"next"`
	Addons   map[string]string `json:"addons"`
	Currency CurrencyInfo      `json:"currency"`
}

// Equal reports whether both snapshots hold the same values.
func (p PriceSnapshot) Equal(other PriceSnapshot) bool {
	return p.Now == other.Now &&
		p.Next == other.Next &&
		p.Currency == other.Currency &&
		maps.Equal(p.Addons, other.Addons)
}

// IsZero reports whether the snapshot was never computed.
func (p PriceSnapshot) IsZero() bool {
	return p.Equal(PriceSnapshot{})
}

// Clone returns a deep copy of the snapshot.
func (p PriceSnapshot) Clone() PriceSnapshot {
	out := p
	out.Addons = maps.Clone(p.Addons)
	return out
}

var hundred = decimal.NewFromInt(100)

// FormatCents rounds a cents value to the nearest cent, clamps it at zero and
// renders it in major units with two fraction digits: 1999.6 becomes "20.00".
func FormatCents(cents decimal.Decimal) string {
	rounded := decimal.Max(cents.Round(0), decimal.Zero)
	return rounded.Div(hundred).StringFixed(2)
}

var symbols sync.Map // CurrencyCode -> string

// CurrencySymbol returns the English display symbol for an ISO code, or the
// code itself when it is not a known currency.
func CurrencySymbol(code CurrencyCode) string {
	if v, ok := symbols.Load(code); ok {
		return v.(string)
	}

	symbol := string(code)
	if unit, err := currency.ParseISO(string(code)); err == nil {
		if s := message.NewPrinter(language.English).Sprint(currency.Symbol(unit)); s != "" {
			symbol = s
		}
	}

	symbols.Store(code, symbol)
	return symbol
}

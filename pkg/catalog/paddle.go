package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/PaddleHQ/paddle-go-sdk/v4/pkg/paddleerr"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// PaddleConfig holds the Paddle Billing API settings.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	BaseURL     string `env:"PADDLE_BASE_URL"` // Optional: overrides the environment URL
}

// Custom data keys read from Paddle prices.
const (
	paddleSetupFee        = "setup_fee_cents"
	paddleTaxExempt       = "tax_exempt"
	paddleAddons          = "addons"
	paddleDefaultQuantity = "default_quantity"
)

// PaddleAPI is the Paddle surface the catalog uses. NewPaddleClient adapts
// the SDK to it.
type PaddleAPI interface {
	GetPrice(ctx context.Context, id string) (*paddle.Price, error)
	// FindDiscount returns the active discount with the code, or nil when
	// there is none.
	FindDiscount(ctx context.Context, code string) (*paddle.Discount, error)
}

// NewPaddleClient creates a Paddle SDK client for the configured environment.
func NewPaddleClient(cfg PaddleConfig) (PaddleAPI, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingPaddleConfig
	}

	var opts []paddle.Option
	if cfg.BaseURL != "" {
		opts = append(opts, paddle.WithBaseURL(cfg.BaseURL))
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey, opts...)
	case "production", "":
		client, err = paddle.New(cfg.APIKey, opts...)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}
	return paddleSDK{sdk: client}, nil
}

type paddleSDK struct {
	sdk *paddle.SDK
}

func (p paddleSDK) GetPrice(ctx context.Context, id string) (*paddle.Price, error) {
	return p.sdk.GetPrice(ctx, &paddle.GetPriceRequest{PriceID: id})
}

func (p paddleSDK) FindDiscount(ctx context.Context, code string) (*paddle.Discount, error) {
	res, err := p.sdk.ListDiscounts(ctx, &paddle.ListDiscountsRequest{
		Code:   []string{code},
		Status: []string{string(paddle.DiscountStatusActive)},
	})
	if err != nil {
		return nil, err
	}

	var found *paddle.Discount
	err = res.Iter(ctx, func(d *paddle.Discount) (bool, error) {
		if d.Code != nil && strings.EqualFold(*d.Code, code) {
			found = d
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Paddle resolves plans from Paddle prices and coupons from Paddle discounts.
//
// A plan code is a Paddle price ID. The base unit price and every currency
// override become plan prices. Price custom data may carry
// "setup_fee_cents", "tax_exempt" and "addons" (a list of add-on price IDs,
// each of which may set "default_quantity"). A trial period marks a trial plan.
//
// Paddle has no tax rate lookup, so GetTaxRates always returns no rates;
// pair Paddle with another tax source through Compose.
type Paddle struct {
	api PaddleAPI
}

var _ pricing.Resolver = (*Paddle)(nil)

// NewPaddle returns a resolver backed by the Paddle API.
// Panics if api is nil.
func NewPaddle(api PaddleAPI) *Paddle {
	if api == nil {
		panic("catalog: paddle client is required")
	}
	return &Paddle{api: api}
}

// GetPlan fetches the price and its add-on prices.
func (p *Paddle) GetPlan(ctx context.Context, code string) (pricing.Plan, error) {
	price, err := p.getPrice(ctx, pricing.FieldPlan, code)
	if err != nil {
		return pricing.Plan{}, err
	}

	plan := pricing.Plan{
		Code:      price.ID,
		Name:      paddlePriceName(price),
		Trial:     price.TrialPeriod != nil,
		TaxExempt: customBool(price.CustomData, paddleTaxExempt),
	}

	setupFee, _ := customInt(price.CustomData, paddleSetupFee)
	for _, money := range paddleMoney(price) {
		amount, err := parseCents(money.Amount)
		if err != nil {
			return pricing.Plan{}, errors.Join(ErrUpstream, fmt.Errorf("price %s: %w", price.ID, err))
		}
		plan.Prices = append(plan.Prices, pricing.PlanPrice{
			Currency:        pricing.CurrencyCode(money.CurrencyCode),
			UnitAmountCents: amount,
			SetupFeeCents:   setupFee,
		})
	}

	for _, addonID := range customStrings(price.CustomData, paddleAddons) {
		addon, err := p.getAddon(ctx, addonID)
		if err != nil {
			return pricing.Plan{}, err
		}
		plan.Addons = append(plan.Addons, addon)
	}

	return plan, nil
}

func (p *Paddle) getAddon(ctx context.Context, id string) (pricing.AddonDefinition, error) {
	price, err := p.getPrice(ctx, pricing.FieldAddon, id)
	if err != nil {
		return pricing.AddonDefinition{}, err
	}

	addon := pricing.AddonDefinition{
		Code: price.ID,
		Name: paddlePriceName(price),
	}
	if n, ok := customInt(price.CustomData, paddleDefaultQuantity); ok {
		q := int(n)
		addon.DefaultQuantity = &q
	}
	for _, money := range paddleMoney(price) {
		amount, err := parseCents(money.Amount)
		if err != nil {
			return pricing.AddonDefinition{}, errors.Join(ErrUpstream, fmt.Errorf("price %s: %w", price.ID, err))
		}
		addon.Prices = append(addon.Prices, pricing.AddonPrice{
			Currency:        pricing.CurrencyCode(money.CurrencyCode),
			UnitAmountCents: amount,
		})
	}
	return addon, nil
}

func (p *Paddle) getPrice(ctx context.Context, field pricing.Field, id string) (*paddle.Price, error) {
	price, err := p.api.GetPrice(ctx, id)
	if err != nil {
		if isPaddleNotFound(err) {
			return nil, pricing.NotFound(field, id)
		}
		return nil, errors.Join(ErrUpstream, err)
	}
	if price.Status != paddle.StatusActive {
		return nil, pricing.NotFound(field, id)
	}
	return price, nil
}

// GetCoupon looks up an active discount by its checkout code. Discounts
// restricted to other prices are reported as not found.
func (p *Paddle) GetCoupon(ctx context.Context, planCode, code string) (pricing.Coupon, error) {
	found, err := p.api.FindDiscount(ctx, code)
	if err != nil {
		return pricing.Coupon{}, errors.Join(ErrUpstream, err)
	}
	if found == nil || found.Status != paddle.DiscountStatusActive ||
		(len(found.RestrictTo) > 0 && !slices.Contains(found.RestrictTo, planCode)) {
		return pricing.Coupon{}, couponNotFound(planCode, code)
	}

	coupon := pricing.Coupon{Code: code, Name: found.Description}
	switch found.Type {
	case paddle.DiscountTypePercentage:
		rate, err := strconv.ParseFloat(found.Amount, 64)
		if err != nil {
			return pricing.Coupon{}, errors.Join(ErrUpstream, fmt.Errorf("discount %s amount: %w", found.ID, err))
		}
		coupon.Discount = pricing.Discount{Type: pricing.DiscountPercent, Rate: rate / 100}
	default:
		amount, err := parseCents(found.Amount)
		if err != nil {
			return pricing.Coupon{}, errors.Join(ErrUpstream, fmt.Errorf("discount %s amount: %w", found.ID, err))
		}
		coupon.Discount = pricing.Discount{Type: pricing.DiscountFixed, Amounts: map[pricing.CurrencyCode]int64{}}
		if found.CurrencyCode != nil {
			coupon.Discount.Amounts[pricing.CurrencyCode(*found.CurrencyCode)] = amount
		}
	}
	return coupon, nil
}

// GetTaxRates returns no rates; Paddle computes tax at checkout.
func (p *Paddle) GetTaxRates(context.Context, pricing.Address) ([]pricing.TaxEntry, error) {
	return nil, nil
}

func paddlePriceName(price *paddle.Price) string {
	if price.Name != nil && *price.Name != "" {
		return *price.Name
	}
	return price.Description
}

// paddleMoney returns the base price and one override per extra currency.
func paddleMoney(price *paddle.Price) []paddle.Money {
	out := []paddle.Money{price.UnitPrice}
	seen := map[paddle.CurrencyCode]bool{price.UnitPrice.CurrencyCode: true}
	for _, o := range price.UnitPriceOverrides {
		if seen[o.UnitPrice.CurrencyCode] {
			continue
		}
		seen[o.UnitPrice.CurrencyCode] = true
		out = append(out, o.UnitPrice)
	}
	return out
}

func isPaddleNotFound(err error) bool {
	var perr *paddleerr.Error
	if errors.As(err, &perr) {
		return perr.Code == "not_found" || strings.HasSuffix(perr.Code, "_not_found")
	}
	return false
}

// parseCents parses Paddle amounts, which are strings in the lowest denomination.
func parseCents(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func customInt(data paddle.CustomData, key string) (int64, bool) {
	switch v := data[key].(type) {
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func customBool(data paddle.CustomData, key string) bool {
	switch v := data[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func customStrings(data paddle.CustomData, key string) []string {
	switch v := data[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

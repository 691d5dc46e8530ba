package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// APIKeyHeader carries the catalog API key on every request.
const APIKeyHeader = "X-API-Key"

// HTTPConfig points the HTTP resolver at a remote catalog service.
type HTTPConfig struct {
	BaseURL string        `env:"RESOLVER_URL"`
	APIKey  string        `env:"RESOLVER_API_KEY"`
	Timeout time.Duration `env:"RESOLVER_TIMEOUT" envDefault:"10s"`
}

// errorBody is the error envelope shared by the catalog server and client.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
	ID       string `json:"id,omitempty"`
	PlanCode string `json:"plan_code,omitempty"`
}

type taxBody struct {
	Taxes []pricing.TaxEntry `json:"taxes"`
}

// HTTP is a pricing.Resolver that calls a remote catalog service over
// HTTP, such as the one served by NewHandler.
type HTTP struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
}

var _ pricing.Resolver = (*HTTP)(nil)

// HTTPOption configures the HTTP resolver.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// NewHTTP creates an HTTP resolver.
func NewHTTP(cfg HTTPConfig, opts ...HTTPOption) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid resolver URL: %w", err)
	}

	h := &HTTP{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// GetPlan fetches GET /plans/{code}.
func (h *HTTP) GetPlan(ctx context.Context, code string) (pricing.Plan, error) {
	var plan pricing.Plan
	err := h.get(ctx, pricing.FieldPlan, code, []string{"plans", code}, nil, &plan)
	return plan, err
}

// GetCoupon fetches GET /plans/{plan}/coupons/{code}.
func (h *HTTP) GetCoupon(ctx context.Context, planCode, code string) (pricing.Coupon, error) {
	var coupon pricing.Coupon
	err := h.get(ctx, pricing.FieldCoupon, code, []string{"plans", planCode, "coupons", code}, nil, &coupon)
	return coupon, err
}

// GetTaxRates fetches GET /tax with every address field as a query parameter.
func (h *HTTP) GetTaxRates(ctx context.Context, addr pricing.Address) ([]pricing.TaxEntry, error) {
	q := url.Values{}
	for k, v := range addr {
		q.Set(k, v)
	}

	var body taxBody
	if err := h.get(ctx, pricing.FieldAddress, addr.Country(), []string{"tax"}, q, &body); err != nil {
		return nil, err
	}
	return body.Taxes, nil
}

func (h *HTTP) get(ctx context.Context, field pricing.Field, id string, path []string, q url.Values, v any) error {
	u := h.baseURL.JoinPath(path...)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Join(ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set(APIKeyHeader, h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Join(ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeHTTPError(resp, field, id)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Join(ErrUpstream, fmt.Errorf("decode %s response: %w", field, err))
	}
	return nil
}

func decodeHTTPError(resp *http.Response, field pricing.Field, id string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Code == "" {
		if resp.StatusCode == http.StatusNotFound {
			return pricing.NotFound(field, id)
		}
		return errors.Join(ErrUpstream, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	if pricing.ErrorCode(body.Error.Code) == pricing.CodeNotFound {
		e := pricing.NotFound(field, id)
		if body.Error.Field != "" {
			e.Field = pricing.Field(body.Error.Field)
		}
		if body.Error.ID != "" {
			e.ID = body.Error.ID
		}
		e.PlanCode = body.Error.PlanCode
		return e
	}
	return errors.Join(ErrUpstream, fmt.Errorf("status %d: %s: %s", resp.StatusCode, body.Error.Code, body.Error.Message))
}

// errorDetailFor renders err into the shared error envelope.
func errorDetailFor(err error) (int, errorDetail) {
	var perr *pricing.Error
	if errors.As(err, &perr) && perr.Code == pricing.CodeNotFound {
		return http.StatusNotFound, errorDetail{
			Code:     string(perr.Code),
			Message:  perr.Error(),
			Field:    string(perr.Field),
			ID:       perr.ID,
			PlanCode: perr.PlanCode,
		}
	}
	return http.StatusBadGateway, errorDetail{Code: "upstream", Message: err.Error()}
}

// addressFromQuery builds an address from the non-empty query parameters.
func addressFromQuery(q url.Values) pricing.Address {
	addr := pricing.Address{}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			addr[k] = v
		}
	}
	return addr
}

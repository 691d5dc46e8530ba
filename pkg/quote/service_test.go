package quote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pricingkit/pkg/catalog"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
	"github.com/dmitrymomot/pricingkit/pkg/quote"
)

func testResolver() pricing.Resolver {
	return catalog.NewMemory(catalog.Catalog{
		Plans: []pricing.Plan{{
			Code: "pro",
			Prices: []pricing.PlanPrice{
				{Currency: "USD", UnitAmountCents: 1000, SetupFeeCents: 500},
				{Currency: "EUR", UnitAmountCents: 900},
			},
			Addons: []pricing.AddonDefinition{
				{Code: "seats", Prices: []pricing.AddonPrice{{Currency: "USD", UnitAmountCents: 200}}},
				{Code: "storage", Prices: []pricing.AddonPrice{{Currency: "USD", UnitAmountCents: 300}}},
			},
		}},
		Coupons: []catalog.Coupon{
			{Coupon: pricing.Coupon{Code: "SAVE10", Discount: pricing.Discount{Type: pricing.DiscountPercent, Rate: 0.1}}},
		},
		TaxRules: []catalog.TaxRule{
			{Country: "DE", Rates: []pricing.TaxEntry{{Type: "vat", Rate: 0.19}}},
		},
	})
}

// failingResolver fails every lookup.
type failingResolver struct{}

func (failingResolver) GetPlan(context.Context, string) (pricing.Plan, error) {
	return pricing.Plan{}, errors.Join(catalog.ErrUpstream, errors.New("db password leaked here"))
}

func (failingResolver) GetCoupon(context.Context, string, string) (pricing.Coupon, error) {
	return pricing.Coupon{}, catalog.ErrUpstream
}

func (failingResolver) GetTaxRates(context.Context, pricing.Address) ([]pricing.TaxEntry, error) {
	return nil, catalog.ErrUpstream
}

type envelope struct {
	Code  string          `json:"code"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func TestService_Quote(t *testing.T) {
	t.Parallel()
	h := quote.New(testResolver()).Handler()

	t.Run("prices complete selection", func(t *testing.T) {
		t.Parallel()
		status, env := do(t, h, http.MethodPost, "/quote", `{
			"plan": "pro",
			"addons": [{"code": "seats", "quantity": 3}],
			"coupon": "SAVE10",
			"address": {"country": "DE"}
		}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "quote", env.Code)

		var snap pricing.PriceSnapshot
		require.NoError(t, json.Unmarshal(env.Data, &snap))
		assert.Equal(t, pricing.Stage{
			Subtotal: "19.40", Addons: "6.00", Discount: "1.60",
			SetupFee: "5.00", Tax: "3.69", Total: "23.09",
		}, snap.Now)
		assert.Equal(t, pricing.Stage{
			Subtotal: "14.40", Addons: "6.00", Discount: "1.60",
			SetupFee: "0.00", Tax: "2.74", Total: "17.14",
		}, snap.Next)
		assert.Equal(t, map[string]string{"seats": "2.00", "storage": "3.00"}, snap.Addons)
		assert.Equal(t, pricing.CurrencyInfo{Code: "USD", Symbol: "$"}, snap.Currency)
	})

	t.Run("currency is applied", func(t *testing.T) {
		t.Parallel()
		status, env := do(t, h, http.MethodPost, "/quote", `{"plan": "pro", "currency": "eur"}`)
		require.Equal(t, http.StatusOK, status)

		var snap pricing.PriceSnapshot
		require.NoError(t, json.Unmarshal(env.Data, &snap))
		assert.Equal(t, "9.00", snap.Now.Total)
		assert.Equal(t, pricing.CurrencyCode("EUR"), snap.Currency.Code)
	})

	t.Run("missing plan field", func(t *testing.T) {
		t.Parallel()
		status, env := do(t, h, http.MethodPost, "/quote", `{"addons": [{"quantity": 1}]}`)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
		assert.Contains(t, env.Error.Details, "plan")
		assert.Contains(t, env.Error.Details, "addons[0].code")
	})

	t.Run("unknown add-on", func(t *testing.T) {
		t.Parallel()
		status, env := do(t, h, http.MethodPost, "/quote", `{"plan": "pro", "addons": [{"code": "gpu"}]}`)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid-addon", env.Error.Code)
		assert.Equal(t, "pro", env.Error.Details["plan_code"])
		assert.Equal(t, "gpu", env.Error.Details["addon_code"])
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		status, env := do(t, h, http.MethodPost, "/quote", `{"plan": "enterprise"}`)
		require.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "not-found", env.Error.Code)
		assert.Equal(t, "enterprise", env.Error.Details["id"])
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		status, env := do(t, h, http.MethodPost, "/quote", `{"plan": `)
		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_request", env.Error.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		status, _ := do(t, h, http.MethodPost, "/quote", `{"plan": "pro", "plna": "x"}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestService_UpstreamFailure(t *testing.T) {
	t.Parallel()
	h := quote.New(failingResolver{}).Handler()

	status, env := do(t, h, http.MethodPost, "/quote", `{"plan": "pro"}`)
	require.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "upstream_error", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "password")
}

func TestService_Sessions(t *testing.T) {
	t.Parallel()
	svc := quote.New(testResolver())
	h := svc.Handler()

	status, env := do(t, h, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, status)

	var created quote.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, pricing.CurrencyCode("USD"), created.Selection.Currency)
	assert.Equal(t, 1, svc.SessionCount())

	base := "/sessions/" + created.ID

	status, env = do(t, h, http.MethodPost, base+"/set", `{"type": "plan", "code": "pro"}`)
	require.Equal(t, http.StatusOK, status)

	status, env = do(t, h, http.MethodPost, base+"/set", `{"type": "addon", "code": "seats", "quantity": "2 seats"}`)
	require.Equal(t, http.StatusOK, status)

	var updated quote.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.Len(t, updated.Selection.Addons, 1)
	assert.Equal(t, 2, updated.Selection.Addons[0].Quantity)
	assert.Equal(t, "19.00", updated.Snapshot.Now.Total)

	t.Run("set without plan field type", func(t *testing.T) {
		status, env := do(t, h, http.MethodPost, base+"/set", `{"type": "bundle", "code": "x"}`)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "invalid-item", env.Error.Code)
	})

	t.Run("invalid currency", func(t *testing.T) {
		status, env := do(t, h, http.MethodPost, base+"/set", `{"type": "currency", "code": "JPY"}`)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "invalid-currency", env.Error.Code)
		assert.Equal(t, []any{"USD", "EUR"}, env.Error.Details["plan_currencies"])
	})

	t.Run("remove missing coupon", func(t *testing.T) {
		status, env := do(t, h, http.MethodPost, base+"/remove", `{"type": "coupon", "id": "SAVE10"}`)
		require.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "unremovable-item", env.Error.Code)
	})

	t.Run("get", func(t *testing.T) {
		status, env := do(t, h, http.MethodGet, base, "")
		require.Equal(t, http.StatusOK, status)

		var got quote.SessionView
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "19.00", got.Snapshot.Now.Total)
	})

	t.Run("remove add-on", func(t *testing.T) {
		status, env := do(t, h, http.MethodPost, base+"/remove", `{"type": "addon", "any": true}`)
		require.Equal(t, http.StatusOK, status)

		var got quote.SessionView
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Empty(t, got.Selection.Addons)
		assert.Equal(t, "15.00", got.Snapshot.Now.Total)
	})

	t.Run("reset", func(t *testing.T) {
		status, env := do(t, h, http.MethodPost, base+"/reset", "")
		require.Equal(t, http.StatusOK, status)

		var got quote.SessionView
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Nil(t, got.Selection.Plan)
		assert.True(t, got.Snapshot.IsZero())
	})

	t.Run("delete", func(t *testing.T) {
		status, _ := do(t, h, http.MethodDelete, base, "")
		require.Equal(t, http.StatusNoContent, status)

		status, env := do(t, h, http.MethodGet, base, "")
		require.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "session_not_found", env.Error.Code)
		assert.Equal(t, 0, svc.SessionCount())
	})
}

func TestNew_PanicsWithoutResolver(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { quote.New(nil) })
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()
	svc := quote.NewFromConfig(testResolver(), quote.Config{SessionCapacity: 1})

	first := svc.CreateSession()
	svc.CreateSession()

	_, err := svc.Session(first.ID)
	require.ErrorIs(t, err, quote.ErrSessionNotFound)
	assert.Equal(t, 1, svc.SessionCount())
}

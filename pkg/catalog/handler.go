package catalog

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pricingkit/pkg/logger"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// HandlerOption configures the catalog HTTP handler.
type HandlerOption func(*handler)

// WithAPIKey requires every request to carry the key in the APIKeyHeader header.
func WithAPIKey(key string) HandlerOption {
	return func(h *handler) { h.apiKey = key }
}

// WithHandlerLogger sets the logger for upstream failures.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *handler) {
		if l != nil {
			h.log = l
		}
	}
}

type handler struct {
	resolver pricing.Resolver
	apiKey   string
	log      *slog.Logger
}

// NewHandler serves any resolver over HTTP in the format the HTTP resolver reads:
//
//	GET /plans/{code}
//	GET /plans/{plan}/coupons/{code}
//	GET /tax?country=..&postal_code=..
//
// Panics if resolver is nil.
func NewHandler(resolver pricing.Resolver, opts ...HandlerOption) http.Handler {
	if resolver == nil {
		panic("catalog: resolver is required")
	}

	h := &handler{resolver: resolver, log: logger.Discard()}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	if h.apiKey != "" {
		r.Use(h.requireKey)
	}
	r.Get("/plans/{code}", h.getPlan)
	r.Get("/plans/{plan}/coupons/{code}", h.getCoupon)
	r.Get("/tax", h.getTax)
	return r
}

func (h *handler) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
				Code:    "unauthorized",
				Message: "invalid API key",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.resolver.GetPlan(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.resolver.GetCoupon(r.Context(), chi.URLParam(r, "plan"), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

func (h *handler) getTax(w http.ResponseWriter, r *http.Request) {
	taxes, err := h.resolver.GetTaxRates(r.Context(), addressFromQuery(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if taxes == nil {
		taxes = []pricing.TaxEntry{}
	}
	writeJSON(w, http.StatusOK, taxBody{Taxes: taxes})
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorDetailFor(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "catalog lookup failed",
			logger.Error(err),
			slog.String("path", r.URL.Path),
		)
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

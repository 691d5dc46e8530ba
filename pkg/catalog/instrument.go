package catalog

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

const tracerName = "github.com/dmitrymomot/pricingkit/pkg/catalog"

// Lookup results recorded by Metrics.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Metrics holds the catalog lookup collectors.
type Metrics struct {
	lookups  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the lookup collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricingkit",
			Subsystem: "catalog",
			Name:      "lookups_total",
			Help:      "Total catalog lookups by operation and result.",
		}, []string{"op", "result"}), // result: "ok", "not_found", "error"
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pricingkit",
			Subsystem: "catalog",
			Name:      "lookup_duration_seconds",
			Help:      "Catalog lookup latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.duration)
	}
	return m
}

// Lookups exposes the lookup counter.
func (m *Metrics) Lookups() *prometheus.CounterVec { return m.lookups }

// Duration exposes the latency histogram.
func (m *Metrics) Duration() *prometheus.HistogramVec { return m.duration }

func (m *Metrics) observe(op string, start time.Time, err error) {
	result := resultOK
	switch {
	case pricing.IsNotFound(err):
		result = resultNotFound
	case err != nil:
		result = resultError
	}
	m.lookups.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Instrumented wraps a resolver with metrics and one trace span per lookup.
type Instrumented struct {
	next    pricing.Resolver
	metrics *Metrics
	tracer  trace.Tracer
}

var _ pricing.Resolver = (*Instrumented)(nil)

// NewInstrumented returns an instrumented resolver. Spans go to the global
// tracer provider.
// Panics if next or metrics is nil.
func NewInstrumented(next pricing.Resolver, metrics *Metrics) *Instrumented {
	if next == nil {
		panic("catalog: resolver is required")
	}
	if metrics == nil {
		panic("catalog: metrics are required")
	}
	return &Instrumented{
		next:    next,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// GetPlan records the plan lookup.
func (i *Instrumented) GetPlan(ctx context.Context, code string) (pricing.Plan, error) {
	ctx, done := i.start(ctx, "get_plan", attribute.String("plan.code", code))
	plan, err := i.next.GetPlan(ctx, code)
	done(err)
	return plan, err
}

// GetCoupon records the coupon lookup.
func (i *Instrumented) GetCoupon(ctx context.Context, planCode, code string) (pricing.Coupon, error) {
	ctx, done := i.start(ctx, "get_coupon",
		attribute.String("plan.code", planCode),
		attribute.String("coupon.code", code),
	)
	coupon, err := i.next.GetCoupon(ctx, planCode, code)
	done(err)
	return coupon, err
}

// GetTaxRates records the tax lookup.
func (i *Instrumented) GetTaxRates(ctx context.Context, addr pricing.Address) ([]pricing.TaxEntry, error) {
	ctx, done := i.start(ctx, "get_tax_rates", attribute.String("address.country", addr.Country()))
	taxes, err := i.next.GetTaxRates(ctx, addr)
	done(err)
	return taxes, err
}

func (i *Instrumented) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "catalog."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		i.metrics.observe(op, start, err)
		if err != nil && !pricing.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

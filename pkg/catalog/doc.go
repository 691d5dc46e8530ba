// Package catalog provides pricing.Resolver implementations and the plumbing
// around them: where plans, coupons and tax rates come from.
//
// # Sources
//
//   - Memory serves a Catalog held in memory. Catalogs are loaded from YAML
//     files (LoadFile, LoadYAML) or S3 objects (LoadS3).
//   - Postgres reads the catalog tables created by Migrate and filled by Import.
//   - Paddle maps Paddle prices to plans and Paddle discounts to coupons.
//   - HTTP calls a remote catalog service; NewHandler serves any resolver in
//     the format it reads.
//
// # Decorators
//
//   - Cached adds a Redis read-through cache. Errors are never cached.
//   - Instrumented records Prometheus metrics and an OpenTelemetry span per lookup.
//   - Compose combines separate plan, coupon and tax sources.
//
// # Usage
//
//	c, err := catalog.LoadFile("catalog.yaml")
//	if err != nil {
//		return err
//	}
//	resolver := catalog.NewInstrumented(
//		catalog.NewCached(catalog.NewMemory(c), redisClient),
//		catalog.NewMetrics(prometheus.DefaultRegisterer),
//	)
//	engine := pricing.New(resolver)
//
// # Catalog format
//
//	plans:
//	  - code: pro
//	    name: Pro
//	    prices:
//	      - {currency: USD, unit_amount_cents: 1000, setup_fee_cents: 500}
//	    addons:
//	      - code: seats
//	        prices: [{currency: USD, unit_amount_cents: 200}]
//	coupons:
//	  - code: SAVE10
//	    discount: {type: percent, rate: 0.1}
//	    plans: [pro]
//	tax_rules:
//	  - country: US
//	    rates: [{type: usst, rate: 0.08}]
//
// # Errors
//
// Missing entities are reported with pricing.NotFound so callers can match
// them with pricing.IsNotFound. Other lookup failures wrap ErrUpstream.
package catalog

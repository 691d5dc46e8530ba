// Package pricing implements a reactive subscription price calculator.
//
// An Engine holds a customer's in-progress Selection (plan, add-ons, coupon,
// billing address and currency), resolves referenced catalog entities through
// a Resolver and recomputes a two-stage price breakdown after every mutation:
// what is due now and what is due on the next billing cycle.
//
// # Architecture
//
//   - Engine: owns the Selection and the last PriceSnapshot, applies Set/Remove/Reset
//   - Calculate: the Calculation Pass, a function from Selection and tax rates to PriceSnapshot
//   - Resolver: looks up plans, coupons and tax rates (see package catalog)
//   - Events: typed signals for price changes, field updates and errors
//
// # Quick Start
//
//	engine := pricing.New(resolver,
//		pricing.WithLogger(log),
//		pricing.WithDefaultCurrency("EUR"),
//	)
//
//	engine.Events().Change.On(func(p pricing.PriceSnapshot) {
//		fmt.Println("due now:", p.Currency.Symbol, p.Now.Total)
//	})
//
//	if _, err := engine.SetPlan(ctx, "pro-monthly"); err != nil {
//		return err
//	}
//	_, err := engine.Set(ctx, pricing.SelectAddon("seats").WithQuantity(5))
//
// # Calculation Pass
//
// The pass runs in a fixed order: base price, add-ons, coupon, setup fee,
// tax, total. Arithmetic stays in cents (shopspring/decimal) and each leaf is
// rounded to the nearest cent, clamped at zero and rendered with two fraction
// digits only at the end. Trial plans charge nothing now for the plan or its
// add-ons; the setup fee is always part of now and never of next. Tax rates
// apply to the discounted subtotal and never compound.
//
// Change fires only when a pass produces a snapshot that differs from the
// stored one, so repeated recomputation is invisible to observers.
//
// # Concurrency
//
// Engine methods are safe for concurrent use. Resolver calls run outside the
// engine lock, so calls can overlap; the ConcurrencyPolicy decides the
// outcome. LastWriterWins (the default) drops the work of any call overtaken
// by a later one, FirstWriterWins rejects calls while another is running, and
// Unordered applies everything as it completes.
//
// # Error Handling
//
// Every failure is an *Error carrying a stable ErrorCode and unwraps to a
// sentinel, so both styles work:
//
//	if errors.Is(err, pricing.ErrInvalidCurrency) { ... }
//	switch pricing.CodeOf(err) { case pricing.CodeMissingPlan: ... }
//
// Failing updates never change the Selection. Errors are returned and also
// emitted on Events().Error.
package pricing

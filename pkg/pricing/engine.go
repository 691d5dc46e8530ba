package pricing

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pricingkit/pkg/logger"
)

// Result describes the outcome of a Set, Remove or Reprice call.
type Result struct {
	Field Field

	// Snapshot is the stored snapshot after the call.
	Snapshot PriceSnapshot

	// Changed reports whether the call produced a new snapshot and fired Change.
	Changed bool

	// Superseded reports that a later call overtook this one and its
	// mutation or snapshot was dropped. See LastWriterWins.
	Superseded bool
}

// Engine holds a customer's in-progress selection, resolves referenced
// catalog entities and recomputes the price after every mutation.
// All methods are safe for concurrent use; see ConcurrencyPolicy for how
// overlapping calls are resolved.
type Engine struct {
	id              string
	resolver        Resolver
	log             *slog.Logger
	defaultCurrency CurrencyCode
	concurrency     ConcurrencyPolicy
	couponPolicy    CouponPolicy
	events          Events

	mu       sync.Mutex
	sel      Selection
	snapshot PriceSnapshot
	gen      uint64
	inflight int
}

// op is the generation token of one Set/Remove/Reprice call.
type op struct {
	gen        uint64
	superseded bool
}

// New creates an Engine backed by the resolver.
// Panics if resolver is nil.
func New(resolver Resolver, opts ...Option) *Engine {
	if resolver == nil {
		panic(ErrNilResolver)
	}

	e := &Engine{
		id:              uuid.NewString(),
		resolver:        resolver,
		log:             logger.Discard(),
		defaultCurrency: DefaultCurrency,
		concurrency:     LastWriterWins,
		couponPolicy:    KeepCoupon,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.log = e.log.With(logger.Component("pricing"), logger.EngineID(e.id))
	e.sel = NewSelection(e.defaultCurrency)
	return e
}

// ID returns the engine instance ID used in logs.
func (e *Engine) ID() string { return e.id }

// Events returns the engine's event signals.
func (e *Engine) Events() *Events { return &e.events }

// Selection returns a copy of the current selection.
func (e *Engine) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.Clone()
}

// Snapshot returns a copy of the last computed snapshot.
func (e *Engine) Snapshot() PriceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.Clone()
}

// Set applies a single-field update and then recomputes the price.
//
// A failing update leaves the selection untouched; the pass still runs on the
// unchanged selection and the update's error is returned. Every error is also
// emitted on Events().Error.
func (e *Engine) Set(ctx context.Context, item Item) (Result, error) {
	res := Result{Field: item.field}

	switch item.field {
	case FieldPlan, FieldAddon, FieldCoupon, FieldAddress, FieldCurrency:
	default:
		return res, e.fail(ctx, &Error{Code: CodeInvalidItem, Field: item.field})
	}

	o, err := e.begin()
	if err != nil {
		return res, e.fail(ctx, err)
	}
	defer e.end()

	var setErr error
	switch item.field {
	case FieldPlan:
		setErr = e.setPlan(ctx, o, item)
	case FieldAddon:
		setErr = e.setAddon(ctx, o, item)
	case FieldCoupon:
		setErr = e.setCoupon(ctx, o, item)
	case FieldAddress:
		setErr = e.setAddress(ctx, o, item.address)
	case FieldCurrency:
		setErr = e.setCurrency(ctx, o, CurrencyCode(item.code))
	}

	passErr := e.reprice(ctx, o, &res)
	if setErr != nil {
		return res, setErr
	}
	return res, passErr
}

// Remove drops one entry from the selection and recomputes the price.
// When nothing matches it fails with unremovable-item and skips the pass.
func (e *Engine) Remove(ctx context.Context, r Removal) (Result, error) {
	res := Result{Field: r.field}

	switch r.field {
	case FieldPlan, FieldAddon, FieldCoupon, FieldAddress:
	default:
		return res, e.fail(ctx, &Error{Code: CodeInvalidItem, Field: r.field, ID: r.id})
	}

	o, err := e.begin()
	if err != nil {
		return res, e.fail(ctx, err)
	}
	defer e.end()

	if err := e.remove(ctx, o, r); err != nil {
		return res, err
	}

	err = e.reprice(ctx, o, &res)
	return res, err
}

// Reset clears the selection back to no plan in the default currency and
// forgets the stored snapshot. Calls still waiting on the resolver are
// superseded unless the policy is Unordered.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.gen++
	e.sel = NewSelection(e.defaultCurrency)
	e.snapshot = PriceSnapshot{}
	gen := e.gen
	e.mu.Unlock()

	e.log.Debug("selection reset", logger.Generation(gen))
}

// Reprice runs a Calculation Pass on the current selection. Change fires
// only if the result differs from the stored snapshot.
func (e *Engine) Reprice(ctx context.Context) (Result, error) {
	var res Result

	o, err := e.begin()
	if err != nil {
		return res, e.fail(ctx, err)
	}
	defer e.end()

	err = e.reprice(ctx, o, &res)
	return res, err
}

// SetAsync runs Set on a new goroutine and calls done, if not nil, once the
// pass has completed.
func (e *Engine) SetAsync(ctx context.Context, item Item, done func(Result, error)) {
	go func() {
		res, err := e.Set(ctx, item)
		if done != nil {
			done(res, err)
		}
	}()
}

// RemoveAsync runs Remove on a new goroutine and calls done, if not nil,
// once the pass has completed.
func (e *Engine) RemoveAsync(ctx context.Context, r Removal, done func(Result, error)) {
	go func() {
		res, err := e.Remove(ctx, r)
		if done != nil {
			done(res, err)
		}
	}()
}

// SetPlan selects a plan. An optional quantity multiplies the plan price.
func (e *Engine) SetPlan(ctx context.Context, code string, quantity ...int) (Result, error) {
	item := SelectPlan(code)
	if len(quantity) > 0 {
		item = item.WithQuantity(quantity[0])
	}
	return e.Set(ctx, item)
}

// SetAddon selects an add-on of the current plan.
func (e *Engine) SetAddon(ctx context.Context, code string, quantity ...int) (Result, error) {
	item := SelectAddon(code)
	if len(quantity) > 0 {
		item = item.WithQuantity(quantity[0])
	}
	return e.Set(ctx, item)
}

// SetCoupon applies a coupon; an empty code clears it.
func (e *Engine) SetCoupon(ctx context.Context, code string) (Result, error) {
	return e.Set(ctx, SelectCoupon(code))
}

// SetAddress sets the billing address.
func (e *Engine) SetAddress(ctx context.Context, addr Address) (Result, error) {
	return e.Set(ctx, SelectAddress(addr))
}

// SetCurrency switches the pricing currency.
func (e *Engine) SetCurrency(ctx context.Context, code CurrencyCode) (Result, error) {
	return e.Set(ctx, SelectCurrency(code))
}

// begin registers a call and hands out its generation.
func (e *Engine) begin() (*op, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.concurrency == FirstWriterWins && e.inflight > 0 {
		return nil, &Error{Code: CodeInProgress}
	}

	e.inflight++
	if e.concurrency != FirstWriterWins {
		e.gen++
	}
	return &op{gen: e.gen}, nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.inflight--
	e.mu.Unlock()
}

// staleLocked reports whether o was overtaken. Callers must hold e.mu.
func (e *Engine) staleLocked(o *op) bool {
	if e.concurrency == Unordered || o.gen == e.gen {
		return false
	}
	o.superseded = true
	return true
}

// commit applies fn to the selection unless o is stale.
func (e *Engine) commit(o *op, fn func(sel *Selection)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.staleLocked(o) {
		return false
	}
	fn(&e.sel)
	return true
}

// fail logs err, emits it on the Error signal and returns it unchanged.
func (e *Engine) fail(ctx context.Context, err error) error {
	e.log.WarnContext(ctx, "pricing update failed", logger.Error(err))
	e.events.Error.emit(err)
	return err
}

func (e *Engine) setPlan(ctx context.Context, o *op, item Item) error {
	quantity := 0
	if n, ok, valid := item.explicitQuantity(); ok && valid && n > 0 {
		quantity = n
	}

	e.mu.Lock()
	current := e.sel.Plan
	currentQuantity := e.sel.planQuantity()
	e.mu.Unlock()

	if current != nil && current.Code == item.code {
		if quantity == 0 || int64(quantity) == currentQuantity {
			return nil
		}
		var plan Plan
		if !e.commit(o, func(sel *Selection) {
			sel.PlanQuantity = quantity
			plan = sel.Plan.Clone()
		}) {
			return nil
		}
		e.log.DebugContext(ctx, "plan quantity updated", logger.PlanCode(item.code), slog.Int("quantity", quantity))
		e.events.PlanSet.emit(plan)
		return nil
	}

	plan, err := e.resolver.GetPlan(ctx, item.code)
	if err != nil {
		return e.fail(ctx, err)
	}
	plan = plan.Clone()

	var currency CurrencyCode
	if !e.commit(o, func(sel *Selection) {
		changed := sel.Plan == nil || sel.Plan.Code != plan.Code

		p := plan.Clone()
		sel.Plan = &p
		sel.PlanQuantity = quantity

		if _, ok := p.PriceIn(sel.Currency); !ok && len(p.Prices) > 0 {
			sel.Currency = p.Prices[0].Currency
		}

		kept := sel.Addons[:0:0]
		for _, addon := range sel.Addons {
			if _, ok := p.Addon(addon.Code); ok {
				kept = append(kept, addon)
			}
		}
		sel.Addons = kept

		if changed && e.couponPolicy == ClearCouponOnPlanChange {
			sel.Coupon = nil
		}
		currency = sel.Currency
	}) {
		return nil
	}

	e.log.DebugContext(ctx, "plan selected",
		logger.PlanCode(plan.Code),
		logger.Currency(string(currency)),
		logger.Generation(o.gen),
	)
	e.events.PlanSet.emit(plan)
	return nil
}

func (e *Engine) setAddon(ctx context.Context, o *op, item Item) error {
	var (
		failure  error
		removal  bool
		selected AddonSelection
	)

	committed := e.commit(o, func(sel *Selection) {
		if sel.Plan == nil {
			failure = &Error{Code: CodeMissingPlan, Field: FieldAddon, AddonCode: item.code}
			return
		}

		def, ok := sel.Plan.Addon(item.code)
		if !ok {
			failure = &Error{Code: CodeInvalidAddon, PlanCode: sel.Plan.Code, AddonCode: item.code}
			return
		}

		quantity, explicit, valid := item.explicitQuantity()
		switch {
		case explicit:
		case def.DefaultQuantity != nil:
			quantity = *def.DefaultQuantity
		default:
			quantity = 1
		}
		if !valid || quantity < 1 {
			removal = true
			failure = removeLocked(sel, RemoveAddon(item.code))
			return
		}

		if i := sel.addonIndex(item.code); i >= 0 {
			sel.Addons[i].Quantity = quantity
			selected = sel.Addons[i].Clone()
			return
		}
		selected = AddonSelection{AddonDefinition: def, Quantity: quantity}
		sel.Addons = append(sel.Addons, selected.Clone())
	})

	switch {
	case !committed:
		return nil
	case failure != nil:
		return e.fail(ctx, failure)
	case removal:
		e.log.DebugContext(ctx, "add-on removed by zero quantity", logger.AddonCode(item.code))
		return nil
	}

	e.log.DebugContext(ctx, "add-on selected",
		logger.AddonCode(item.code),
		slog.Int("quantity", selected.Quantity),
		logger.Generation(o.gen),
	)
	e.events.AddonSet.emit(selected)
	return nil
}

func (e *Engine) setCoupon(ctx context.Context, o *op, item Item) error {
	e.mu.Lock()
	var planCode string
	if e.sel.Plan != nil {
		planCode = e.sel.Plan.Code
	}
	current := e.sel.Coupon
	e.mu.Unlock()

	if planCode == "" {
		return e.fail(ctx, &Error{Code: CodeMissingPlan, Field: FieldCoupon})
	}
	if current != nil && current.Code == item.code {
		return nil
	}

	if item.code == "" {
		if e.commit(o, func(sel *Selection) { sel.Coupon = nil }) {
			e.log.DebugContext(ctx, "coupon cleared", logger.Generation(o.gen))
		}
		return nil
	}

	coupon, err := e.resolver.GetCoupon(ctx, planCode, item.code)
	if err != nil {
		return e.fail(ctx, err)
	}
	coupon = coupon.Clone()

	if !e.commit(o, func(sel *Selection) {
		c := coupon.Clone()
		sel.Coupon = &c
	}) {
		return nil
	}

	e.log.DebugContext(ctx, "coupon applied",
		logger.CouponCode(coupon.Code),
		logger.PlanCode(planCode),
		logger.Generation(o.gen),
	)
	e.events.CouponSet.emit(coupon)
	return nil
}

func (e *Engine) setAddress(ctx context.Context, o *op, addr Address) error {
	var changed bool
	if !e.commit(o, func(sel *Selection) {
		if sel.Address.Equal(addr) {
			return
		}
		sel.Address = addr.Clone()
		changed = true
	}) || !changed {
		return nil
	}

	e.log.DebugContext(ctx, "address set", slog.String("country", addr.Country()), logger.Generation(o.gen))
	e.events.AddressSet.emit(addr.Clone())
	return nil
}

func (e *Engine) setCurrency(ctx context.Context, o *op, code CurrencyCode) error {
	var (
		changed bool
		failure error
	)
	if !e.commit(o, func(sel *Selection) {
		if sel.Currency == code {
			return
		}
		if sel.Plan != nil {
			if _, ok := sel.Plan.PriceIn(code); !ok {
				failure = &Error{
					Code:           CodeInvalidCurrency,
					CurrencyCode:   code,
					PlanCurrencies: sel.Plan.Currencies(),
				}
				return
			}
		}
		sel.Currency = code
		changed = true
	}) {
		return nil
	}

	if failure != nil {
		return e.fail(ctx, failure)
	}
	if !changed {
		return nil
	}

	e.log.DebugContext(ctx, "currency set", logger.Currency(string(code)), logger.Generation(o.gen))
	e.events.CurrencySet.emit(code)
	return nil
}

func (e *Engine) remove(ctx context.Context, o *op, r Removal) error {
	var failure error
	if !e.commit(o, func(sel *Selection) {
		failure = removeLocked(sel, r)
	}) {
		return nil
	}
	if failure != nil {
		return e.fail(ctx, failure)
	}

	e.log.DebugContext(ctx, "item removed", logger.Field(string(r.field)), slog.String("id", r.id), logger.Generation(o.gen))
	return nil
}

// removeLocked drops the entry r names. An "any" add-on removal drops every
// selected add-on. Removing the plan also drops the add-ons and coupon, which
// only exist alongside a plan.
func removeLocked(sel *Selection, r Removal) error {
	unremovable := &Error{Code: CodeUnremovableItem, Field: r.field, ID: r.id}

	switch r.field {
	case FieldAddon:
		if r.any {
			if len(sel.Addons) == 0 {
				return unremovable
			}
			sel.Addons = []AddonSelection{}
			return nil
		}
		i := sel.addonIndex(r.id)
		if i < 0 {
			return unremovable
		}
		sel.Addons = append(sel.Addons[:i:i], sel.Addons[i+1:]...)

	case FieldPlan:
		if sel.Plan == nil || (!r.any && sel.Plan.Code != r.id) {
			return unremovable
		}
		sel.Plan = nil
		sel.PlanQuantity = 0
		sel.Addons = []AddonSelection{}
		sel.Coupon = nil

	case FieldCoupon:
		if sel.Coupon == nil || (!r.any && sel.Coupon.Code != r.id) {
			return unremovable
		}
		sel.Coupon = nil

	case FieldAddress:
		if len(sel.Address) == 0 || (!r.any && !sel.Address.Equal(r.address)) {
			return unremovable
		}
		sel.Address = nil

	default:
		return &Error{Code: CodeInvalidItem, Field: r.field, ID: r.id}
	}
	return nil
}

// reprice runs a Calculation Pass and stores its snapshot, firing Change
// when it differs from the previous one. Stale passes store nothing.
func (e *Engine) reprice(ctx context.Context, o *op, res *Result) error {
	e.mu.Lock()
	if e.staleLocked(o) {
		res.Snapshot = e.snapshot.Clone()
		res.Superseded = true
		e.mu.Unlock()
		return nil
	}
	sel := e.sel.Clone()
	e.mu.Unlock()

	snapshot, err := Calculate(ctx, sel, e.resolver.GetTaxRates)
	if err != nil {
		e.mu.Lock()
		res.Snapshot = e.snapshot.Clone()
		e.mu.Unlock()
		return e.fail(ctx, err)
	}

	e.mu.Lock()
	if e.staleLocked(o) {
		res.Snapshot = e.snapshot.Clone()
		res.Superseded = true
		e.mu.Unlock()
		e.log.DebugContext(ctx, "stale price dropped", logger.Generation(o.gen))
		return nil
	}
	changed := !e.snapshot.Equal(snapshot)
	if changed {
		e.snapshot = snapshot.Clone()
	}
	res.Snapshot = snapshot.Clone()
	res.Changed = changed
	e.mu.Unlock()

	if o.superseded {
		res.Superseded = true
	}

	if changed {
		e.log.DebugContext(ctx, "price changed",
			logger.Currency(string(snapshot.Currency.Code)),
			slog.String("now_total", snapshot.Now.Total),
			slog.String("next_total", snapshot.Next.Total),
			logger.Generation(o.gen),
		)
		e.events.Change.emit(snapshot.Clone())
	}
	return nil
}

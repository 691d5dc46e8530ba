package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresConfig configures the Postgres catalog connection.
type PostgresConfig struct {
	ConnectionString  string        `env:"PG_CONN_URL"`
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`

	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"catalog_migrations"`
}

// DB is the part of a pgx pool the Postgres catalog uses.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// migrationLogger routes goose output into the application log.
type migrationLogger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// ConnectPostgres opens a pool and pings it, retrying with a linear backoff.
func ConnectPostgres(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MaxIdleConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	connConfig.MaxConnLifetime = cfg.MaxConnLifetime

	var lastErr error
	for i := range max(cfg.RetryAttempts, 1) {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToConnect, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}

	return nil, errors.Join(ErrFailedToConnect, lastErr)
}

// Migrate applies the embedded catalog schema with goose.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string, log migrationLogger) error {
	// goose works on database/sql, so bridge the pool.
	db := stdlib.OpenDBFromPool(pool)
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}(db)

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})
	if table != "" {
		goose.SetTableName(table)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

type gooseLogger struct {
	log migrationLogger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}

// Postgres is a pricing.Resolver backed by the catalog tables.
type Postgres struct {
	db DB
}

var _ pricing.Resolver = (*Postgres)(nil)

// NewPostgres returns a resolver reading from db.
// Panics if db is nil.
func NewPostgres(db DB) *Postgres {
	if db == nil {
		panic("catalog: postgres db is required")
	}
	return &Postgres{db: db}
}

const (
	selectPlan = `SELECT code, name, trial, tax_exempt, prices, addons
FROM catalog_plans WHERE code = $1`

	selectCoupon = `SELECT code, name, discount, plans
FROM catalog_coupons WHERE code = $1`

	// Postal code rules sort before the country rule ('' is the smallest value).
	selectTaxRates = `SELECT rates FROM catalog_tax_rules
WHERE country = $1 AND (postal_code = '' OR postal_code = $2)
ORDER BY postal_code DESC LIMIT 1`
)

// GetPlan returns the plan with the given code.
func (p *Postgres) GetPlan(ctx context.Context, code string) (pricing.Plan, error) {
	var (
		plan           pricing.Plan
		prices, addons []byte
	)
	err := p.db.QueryRow(ctx, selectPlan, code).Scan(
		&plan.Code, &plan.Name, &plan.Trial, &plan.TaxExempt, &prices, &addons,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Plan{}, pricing.NotFound(pricing.FieldPlan, code)
	}
	if err != nil {
		return pricing.Plan{}, errors.Join(ErrUpstream, err)
	}

	if err := json.Unmarshal(prices, &plan.Prices); err != nil {
		return pricing.Plan{}, errors.Join(ErrUpstream, fmt.Errorf("plan %q prices: %w", code, err))
	}
	if err := json.Unmarshal(addons, &plan.Addons); err != nil {
		return pricing.Plan{}, errors.Join(ErrUpstream, fmt.Errorf("plan %q addons: %w", code, err))
	}
	return plan, nil
}

// GetCoupon returns the coupon if it exists and applies to the plan.
func (p *Postgres) GetCoupon(ctx context.Context, planCode, code string) (pricing.Coupon, error) {
	var (
		c        Coupon
		discount []byte
	)
	err := p.db.QueryRow(ctx, selectCoupon, code).Scan(&c.Code, &c.Name, &discount, &c.Plans)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Coupon{}, couponNotFound(planCode, code)
	}
	if err != nil {
		return pricing.Coupon{}, errors.Join(ErrUpstream, err)
	}
	if err := json.Unmarshal(discount, &c.Discount); err != nil {
		return pricing.Coupon{}, errors.Join(ErrUpstream, fmt.Errorf("coupon %q discount: %w", code, err))
	}

	if !c.AppliesTo(planCode) {
		return pricing.Coupon{}, couponNotFound(planCode, code)
	}
	return c.Coupon, nil
}

// GetTaxRates returns the rates of the most specific rule for the address.
func (p *Postgres) GetTaxRates(ctx context.Context, addr pricing.Address) ([]pricing.TaxEntry, error) {
	var rates []byte
	err := p.db.QueryRow(ctx, selectTaxRates, addr.Country(), addr.PostalCode()).Scan(&rates)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrUpstream, err)
	}

	var entries []pricing.TaxEntry
	if err := json.Unmarshal(rates, &entries); err != nil {
		return nil, errors.Join(ErrUpstream, fmt.Errorf("tax rates for %q: %w", addr.Country(), err))
	}
	return entries, nil
}

// Import replaces the stored catalog with c in a single transaction.
func Import(ctx context.Context, db DB, c Catalog) (err error) {
	if err := c.Validate(); err != nil {
		return err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return errors.Join(ErrFailedToImport, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM catalog_tax_rules`,
		`DELETE FROM catalog_coupons`,
		`DELETE FROM catalog_plans`,
	} {
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return errors.Join(ErrFailedToImport, err)
		}
	}

	for _, plan := range c.Plans {
		addons := plan.Addons
		if addons == nil {
			addons = []pricing.AddonDefinition{}
		}
		if _, err = tx.Exec(ctx,
			`INSERT INTO catalog_plans (code, name, trial, tax_exempt, prices, addons) VALUES ($1, $2, $3, $4, $5, $6)`,
			plan.Code, plan.Name, plan.Trial, plan.TaxExempt, mustJSON(plan.Prices), mustJSON(addons),
		); err != nil {
			return errors.Join(ErrFailedToImport, fmt.Errorf("plan %q: %w", plan.Code, err))
		}
	}

	for _, cp := range c.Coupons {
		plans := cp.Plans
		if plans == nil {
			plans = []string{}
		}
		if _, err = tx.Exec(ctx,
			`INSERT INTO catalog_coupons (code, name, discount, plans) VALUES ($1, $2, $3, $4)`,
			cp.Code, cp.Name, mustJSON(cp.Discount), plans,
		); err != nil {
			return errors.Join(ErrFailedToImport, fmt.Errorf("coupon %q: %w", cp.Code, err))
		}
	}

	for _, rule := range c.TaxRules {
		if _, err = tx.Exec(ctx,
			`INSERT INTO catalog_tax_rules (country, postal_code, rates) VALUES ($1, $2, $3)`,
			rule.Country, rule.PostalCode, mustJSON(rule.Rates),
		); err != nil {
			if isDuplicateKey(err) {
				err = fmt.Errorf("duplicate tax rule for %s %q: %w", rule.Country, rule.PostalCode, err)
			}
			return errors.Join(ErrFailedToImport, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.Join(ErrFailedToImport, err)
	}
	return nil
}

// PostgresHealthcheck returns a check for the catalog database.
func PostgresHealthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrUpstream, err)
		}
		return nil
	}
}

func couponNotFound(planCode, code string) error {
	err := pricing.NotFound(pricing.FieldCoupon, code)
	err.PlanCode = planCode
	return err
}

// isDuplicateKey detects unique constraint violations (SQLSTATE 23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// mustJSON encodes catalog values, which are plain structs and cannot fail.
func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

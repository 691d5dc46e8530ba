// Command pricingd serves the pricing engine over HTTP.
//
// Usage:
//
//	pricingd            serve the catalog and quote APIs
//	pricingd import F   migrate Postgres and import the YAML catalog in F
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/pricingkit/pkg/catalog"
	"github.com/dmitrymomot/pricingkit/pkg/httpserver"
	"github.com/dmitrymomot/pricingkit/pkg/logger"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
	"github.com/dmitrymomot/pricingkit/pkg/quote"
	"github.com/dmitrymomot/pricingkit/pkg/telemetry"
)

var version = "dev"

var ErrUnknownCommand = errors.New("pricingd: unknown command")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.AppEnv, cfg.Service),
		logger.WithContextExtractors(httpserver.RequestIDExtractor),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 0 || args[0] == "serve" {
		return serve(ctx, cfg, log)
	}
	if args[0] == "import" {
		if len(args) != 2 {
			return errors.Join(ErrUnknownCommand, errors.New("usage: pricingd import <catalog.yaml>"))
		}
		return importCatalog(ctx, cfg, log, args[1])
	}
	return errors.Join(ErrUnknownCommand, fmt.Errorf("%q", args[0]))
}

func serve(ctx context.Context, cfg Config, log *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, cfg.Service, version, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("failed to flush traces", logger.Error(err))
		}
	}()

	b, err := newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	resolver := b.resolver
	if cfg.Redis.ConnectionURL != "" {
		client, err := catalog.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close redis client", logger.Error(err))
			}
		}()
		resolver = catalog.NewCached(resolver, client,
			catalog.WithCacheTTL(cfg.Redis.TTL),
			catalog.WithKeyPrefix(cfg.Redis.KeyPrefix),
			catalog.WithCacheLogger(log),
		)
		b.checks = append(b.checks, httpserver.Check{Name: "redis", Fn: catalog.RedisHealthcheck(client)})
	}
	resolver = catalog.NewInstrumented(resolver, catalog.NewMetrics(prometheus.DefaultRegisterer))

	engineOpts, err := cfg.Pricing.Options()
	if err != nil {
		return err
	}
	quotes := quote.NewFromConfig(resolver, cfg.Quote,
		quote.WithLogger(log),
		quote.WithEngineOptions(append(engineOpts, pricing.WithLogger(log))...),
	)
	go quotes.RunPruner(ctx, cfg.PruneInterval)

	if b.reload != nil {
		go reloadOnHangup(ctx, b.reload, log)
	}

	r := httpserver.NewRouter(log)
	r.Get("/health/live", httpserver.Live)
	r.Get("/health/ready", httpserver.Ready(log, b.checks...))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/catalog", catalog.NewHandler(resolver,
		catalog.WithAPIKey(cfg.APIKey),
		catalog.WithHandlerLogger(log),
	))
	r.Mount("/api", quotes.Handler())

	log.InfoContext(ctx, "starting pricingd",
		slog.String("version", version),
		slog.String("backend", cfg.Backend),
		slog.String("addr", cfg.HTTP.Addr),
	)
	return httpserver.New(cfg.HTTP, log).Run(ctx, r)
}

// reloadOnHangup refreshes the in-memory catalog on SIGHUP. A catalog that
// fails to load or validate leaves the current one in place.
func reloadOnHangup(ctx context.Context, reload func(context.Context) error, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := reload(ctx); err != nil {
				log.ErrorContext(ctx, "catalog reload failed", logger.Error(err))
				continue
			}
			log.InfoContext(ctx, "catalog reloaded")
		}
	}
}

func importCatalog(ctx context.Context, cfg Config, log *slog.Logger, path string) error {
	if cfg.Postgres.ConnectionString == "" {
		return errors.Join(ErrMissingSetting, errors.New("PG_CONN_URL is required for import"))
	}

	c, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}

	pool, err := catalog.ConnectPostgres(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := catalog.Migrate(ctx, pool, cfg.Postgres.MigrationsTable, log); err != nil {
		return err
	}
	if err := catalog.Import(ctx, pool, c); err != nil {
		return err
	}

	log.InfoContext(ctx, "catalog imported",
		slog.String("file", path),
		slog.Int("plans", len(c.Plans)),
		slog.Int("coupons", len(c.Coupons)),
		slog.Int("tax_rules", len(c.TaxRules)),
	)
	return nil
}

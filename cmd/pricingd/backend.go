package main

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/pricingkit/pkg/catalog"
	"github.com/dmitrymomot/pricingkit/pkg/httpserver"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
)

// backend is the configured catalog source with its readiness checks.
type backend struct {
	resolver pricing.Resolver
	checks   []httpserver.Check
	// reload refreshes in-memory catalogs; nil for remote sources.
	reload  func(context.Context) error
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newBackend(ctx context.Context, cfg Config, log *slog.Logger) (*backend, error) {
	b := &backend{}

	if cfg.usesPostgres() {
		pool, err := catalog.ConnectPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if err := catalog.Migrate(ctx, pool, cfg.Postgres.MigrationsTable, log); err != nil {
			b.close()
			return nil, err
		}
		b.checks = append(b.checks, httpserver.Check{Name: "postgres", Fn: catalog.PostgresHealthcheck(pool)})
		b.resolver = catalog.NewPostgres(pool)
	}

	switch cfg.Backend {
	case BackendFile:
		mem, reload, err := fileCatalog(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		b.resolver, b.reload = mem, reload

	case BackendS3:
		client, err := catalog.NewS3Client(ctx, cfg.S3, nil)
		if err != nil {
			return nil, err
		}
		load := func(ctx context.Context) (catalog.Catalog, error) {
			return catalog.LoadS3(ctx, client, cfg.S3.Bucket, cfg.S3.Key)
		}
		c, err := load(ctx)
		if err != nil {
			return nil, err
		}
		mem := catalog.NewMemory(c)
		b.resolver = mem
		b.reload = func(ctx context.Context) error {
			c, err := load(ctx)
			if err != nil {
				return err
			}
			return mem.Replace(c)
		}

	case BackendPostgres:
		// Resolver set up above.

	case BackendPaddle:
		api, err := catalog.NewPaddleClient(cfg.Paddle)
		if err != nil {
			b.close()
			return nil, err
		}
		paddle := catalog.NewPaddle(api)

		taxes := b.resolver
		if cfg.TaxBackend == BackendFile {
			mem, reload, err := fileCatalog(cfg.CatalogFile)
			if err != nil {
				return nil, err
			}
			taxes, b.reload = mem, reload
		}
		b.resolver = catalog.Compose(paddle, paddle, taxes)

	case BackendHTTP:
		client, err := catalog.NewHTTP(cfg.Resolver)
		if err != nil {
			return nil, err
		}
		b.resolver = client
	}

	return b, nil
}

// fileCatalog loads a YAML catalog and returns a reload func re-reading it.
func fileCatalog(path string) (*catalog.Memory, func(context.Context) error, error) {
	c, err := catalog.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	mem := catalog.NewMemory(c)
	reload := func(context.Context) error {
		c, err := catalog.LoadFile(path)
		if err != nil {
			return err
		}
		return mem.Replace(c)
	}
	return mem, reload, nil
}

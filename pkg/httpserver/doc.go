// Package httpserver runs the pricingd HTTP listener.
//
// Server wraps http.Server: Run blocks until its context is cancelled and
// then drains in-flight requests within Config.ShutdownTimeout. Signal
// handling is left to the caller, typically through signal.NotifyContext.
//
// NewRouter returns a chi router with the shared middleware stack:
//
//   - RequestID reuses a valid X-Request-ID header or generates a UUID. Pair
//     it with logger.WithContextExtractors(httpserver.RequestIDExtractor) so
//     every log record of a request carries the ID.
//   - chi's Recoverer turns panics into 500 responses.
//   - AccessLog logs each request with method, path, status and duration.
//
// Live and Ready serve liveness and readiness probes; Ready runs the
// supplied dependency checks and answers 503 when any of them fails.
//
//	r := httpserver.NewRouter(log)
//	r.Get("/health/live", httpserver.Live)
//	r.Get("/health/ready", httpserver.Ready(log, httpserver.Check{Name: "postgres", Fn: ping}))
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := httpserver.New(cfg, log).Run(ctx, r); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
package httpserver

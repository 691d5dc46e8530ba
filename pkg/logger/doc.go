// Package logger builds the slog loggers used across pricingkit.
//
// New returns a *slog.Logger configured by Option functions: output format
// (JSON or text), minimum level, static attributes, and ContextExtractor
// callbacks that copy request-scoped values (request or session IDs) into
// every record. ContextWithAttrs attaches attributes to a context instead,
// so code deeper in the call chain logs them without holding a derived
// logger:
//
//	ctx = logger.ContextWithAttrs(ctx, logger.SessionID(id))
//	engine.Set(ctx, item) // engine records now carry session_id
//
// The attribute helpers in attr.go keep keys consistent between the engine,
// the catalog resolvers and the HTTP layer:
//
//	log := logger.New(logger.WithEnvironment("production", "pricingd"))
//	log.InfoContext(ctx, "plan selected",
//		logger.PlanCode("pro"),
//		logger.Currency("USD"),
//	)
//
// Error expands errors that carry a stable code (such as *pricing.Error) into
// a group with both the message and the code.
package logger

// Package logging provides the logging facade used by the scheme dispatcher.
//
// The Logger interface wraps a context-aware subset of log/slog so callers can
// plug in their own implementation for tests or redaction policies:
//
//	logger := logging.New(nil)           // slog.Default()
//	logger = logger.With("scheme", "stealth")
//	logger.Info(ctx, "setup complete", "param_file", "a.param")
//
// # Redaction
//
// Scheme outputs mix public and private key material. Adapters and the facade
// log part names and element sizes only:
//
//	logger.Debug(ctx, "key generated",
//	    logging.PartNames("public", key.Public),
//	    logging.Redacted("private"),
//	)
//
// # Process setup
//
// ParseLevel and NewSlog turn the configured level and format into a
// slog.Logger for the daemon.
package logging

// Package logging provides structured logging for wemolink.
//
// It wraps a zap logger with the package-level helpers used throughout the
// protocol stack. Logging is silent by default so that CLI output stays
// clean; set WEMOLINK_LOG_LEVEL (debug, info, warn, error) to enable it.
// All output goes to stderr.
//
//	logging.Info("Scan complete",
//	    zap.Int("devices", len(devices)),
//	    zap.Duration("duration", elapsed),
//	)
//
// Wire-level helpers (LogSOAPExchange, LogRawBytes) add hex/ascii dumps of
// protocol traffic, capped at 256 bytes, at debug level.
//
// All functions are safe for concurrent use.
package logging

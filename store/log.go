package store

import "github.com/decred/slog"

// log is the package-level logger used by the store package. It defaults
// to disabled, and callers may set their own logging backend via
// UseLogger.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

package chainstate

import "github.com/decred/slog"

// log is the package-level logger used by the chainstate package.  It
// defaults to disabled, and callers may set their own logging backend
// via UseLogger.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// DisableLog disables all library log output.  Logging output is
// disabled by default until UseLogger is called.
//
// Deprecated: use UseLogger(slog.Disabled) instead.
func DisableLog() {
	log = slog.Disabled
}

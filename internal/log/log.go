// Package log provides the default logger shared by packages that need one
// but were not handed one explicitly.
package log

import "go.uber.org/zap"

// Nop is the package-wide no-op logger used whenever a caller constructs a
// type without supplying its own *zap.Logger.
var Nop = zap.NewNop()

// OrNop returns l, or Nop if l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return Nop
	}
	return l
}

package utils

import (
	"log/slog"
	"runtime/debug"
)

// Log a panic with its stack trace, then continue panicking.
// Must be deferred directly:
//
//	go func() {
//		defer utils.LogPanic()
//		...
//	}()
func LogPanic() {
	if r := recover(); r != nil {
		slog.Error("panic", "panic", r, "stack", string(debug.Stack()))
		panic(r)
	}
}

// Package log provides a logging abstraction for sigcap components.
//
// This package defines a Logger interface that can be implemented by
// any logging library. Default implementations are provided for zerolog
// and a no-op logger for testing.
//
// # Usage
//
// Use the provided zerolog adapter:
//
//	logger := log.NewZerologAdapter(os.Stderr, zerolog.InfoLevel)
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
//
// Bind fields once for a component with [With]:
//
//	sessLog := log.With(logger, log.Stringer("session", handle))
package log

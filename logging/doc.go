// Package logging provides a minimal logging interface and adapters for plugmesh.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// every registry, dispatcher and plugin logs through. Arguments follow the
// log/slog key/value convention. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - StructuredLogger with component and contextual attributes
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	rt := engine.New(character, func(o *engine.Options) { o.Logger = logger })
package logging

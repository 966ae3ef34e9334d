// Package logging provides a minimal logging interface and adapters for xyz.
//
// The Logger interface defines the standard leveled methods (Debug, Info,
// Warn, Error) used by the transport, agents and batch harnesses. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (tests, library defaults)
//   - New, building a JSON or text slog logger from a Config
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: "text"})
//	client := transport.New(backend, func(o *transport.Options) { o.Logger = logger })
//
// Messages are dotted event names ("transport.attempt.failed") followed by
// key/value pairs.
package logging

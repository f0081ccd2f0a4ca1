// Package logger provides structured logging with configurable log levels and
// a text or JSON output format. It wraps the standard log/slog package.
package logger

// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON
// or text logging with configurable log levels, and carries a scoped logger through
// context.Context so that run, worker and batch attributes follow the work.
package logger

// Package logger provides structured logging for kraken.
//
// It wraps log/slog behind a small interface so that components receive a
// logger instead of reaching for a global:
//
//   - logger.go: handler construction, level control, package defaults,
//     trace and span ids of the span found in the record context
//   - context.go: request correlation carried through context.Context
package logger

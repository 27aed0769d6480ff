// Package tracer wires OpenTelemetry tracing for kraken.
//
// Tracing is opt-in. When disabled, the provider hands out no-op tracers so
// instrumented code never checks whether tracing is on.
package tracer

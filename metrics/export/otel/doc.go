// Package otel publishes authflow metrics as OpenTelemetry observable
// instruments: one counter per flow metric, one cumulative gauge per
// latency bucket plus a count gauge, and the audit drop counter.
//
// The caller owns the MeterProvider and passes a Meter in.
package otel

// Package prometheus renders authflow metrics in the Prometheus text
// exposition format without a client library or global registry.
//
// Counters are named authflow_*_total; the one histogram is
// authflow_gateway_latency_seconds.
package prometheus

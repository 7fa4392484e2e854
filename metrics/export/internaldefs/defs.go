package internaldefs

import (
	"github.com/MrEthical07/authflow"
)

// CounterDef binds a counter to its exported name.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram to its exported name.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the flow counters.
const AuditDroppedName = "authflow_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

var CounterDefs = []CounterDef{
	{ID: authflow.MetricSignInSuccess, Name: "authflow_sign_in_success_total", Help: "Sign-ins that reached the signed-in state."},
	{ID: authflow.MetricSignInFailure, Name: "authflow_sign_in_failure_total", Help: "Sign-ins refused by or failed at the identity provider."},
	{ID: authflow.MetricSignInRejected, Name: "authflow_sign_in_rejected_total", Help: "Sign-in submissions rejected before reaching the provider."},
	{ID: authflow.MetricRegistrationCreated, Name: "authflow_registration_created_total", Help: "Registrations awaiting email verification."},
	{ID: authflow.MetricRegistrationFailure, Name: "authflow_registration_failure_total", Help: "Failed registration creations."},
	{ID: authflow.MetricSignUpRejected, Name: "authflow_sign_up_rejected_total", Help: "Sign-up submissions rejected before reaching the provider."},
	{ID: authflow.MetricVerificationSuccess, Name: "authflow_verification_success_total", Help: "Completed email verifications."},
	{ID: authflow.MetricVerificationFailure, Name: "authflow_verification_failure_total", Help: "Wrong or incomplete email verifications."},
	{ID: authflow.MetricRehydrateHit, Name: "authflow_rehydrate_hit_total", Help: "Boots that resumed a cached session."},
	{ID: authflow.MetricRehydrateMiss, Name: "authflow_rehydrate_miss_total", Help: "Boots without a cached session token."},
	{ID: authflow.MetricRehydrateRejected, Name: "authflow_rehydrate_rejected_total", Help: "Boots whose cached token the provider refused."},
	{ID: authflow.MetricRehydrateUnavailable, Name: "authflow_rehydrate_unavailable_total", Help: "Boots where the provider could not be reached."},
	{ID: authflow.MetricSignOut, Name: "authflow_sign_out_total", Help: "Sign-outs."},
	{ID: authflow.MetricCacheReadDegraded, Name: "authflow_cache_read_degraded_total", Help: "Token cache reads turned into misses."},
	{ID: authflow.MetricCacheWriteFailure, Name: "authflow_cache_write_failure_total", Help: "Token cache writes abandoned after retries."},
	{ID: authflow.MetricRedirect, Name: "authflow_redirect_total", Help: "Navigation guard redirects."},
	{ID: authflow.MetricDiscardedResult, Name: "authflow_discarded_result_total", Help: "Provider answers discarded after the caller went away."},
}

var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricGatewayLatency, Name: "authflow_gateway_latency_seconds", Help: "Identity provider round-trip latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into "less than or equal" counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

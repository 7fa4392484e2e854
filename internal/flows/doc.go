// Package flows contains the orchestrators behind every Client operation.
//
// Each Run function takes a typed dependency struct, drives the identity
// gateway, and applies the outcome to the state writer and the token cache.
// Admission (loaded checks, in-flight guards) happens in the caller; a Run
// function assumes it was admitted and always leaves the store in a stable
// status when it returns.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authflow (to avoid import cycles).
//   - Return cache failures. The token cache boundary absorbs them.
package flows

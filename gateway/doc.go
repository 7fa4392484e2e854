// Package gateway defines the boundary to the external identity service.
//
// The controller never talks to an identity service directly: it calls a
// [Gateway], which creates sessions from credentials, creates registrations,
// dispatches and checks email codes, and resumes sessions from a cached token.
//
// Structured failures reported by the service are carried as [Errors], an
// ordered list of [AuthError]. [FirstMessage] extracts the user-facing message
// from any error with a guaranteed non-empty result.
//
// # What this package must NOT do
//
//   - Hold session state. Implementations may, callers may not assume it.
//   - Log secrets, codes or tokens.
package gateway

// Package authflow is a session and identity flow controller for client
// applications backed by a hosted identity provider.
//
// A [Client] is assembled with [New] and [Builder.Build], then booted once
// with [Client.Boot], which restores a cached session token. After boot the
// application drives three flows:
//
//   - [SignInFlow] submits credentials.
//   - [SignUpFlow] creates a registration and verifies it with an email code.
//   - [Client.SignOut] ends the session.
//
// Every flow writes its outcome to a single auth state store (package state).
// A navigation guard obtained from [Client.Guard] watches the store and
// redirects between the sign-in screens and the protected area.
//
// Provider failures never escape as panics or stuck loading states: the
// store always settles in a stable status with a user-facing message, and
// the token cache absorbs its own storage failures.
//
// # Architecture boundaries
//
// The identity provider is reached only through gateway.Gateway. The token
// cache is reached only through cache.TokenCache. Flow orchestration lives in
// internal/flows and is not exported.
package authflow

package gateway

import "context"

// Strategy selects how a pending registration is verified.
type Strategy string

const (
	// StrategyEmailCode sends a numeric code to the registration email.
	StrategyEmailCode Strategy = "email_code"
)

// VerificationStatus is the provider-reported outcome of a verification attempt.
type VerificationStatus string

const (
	// StatusComplete means the registration is verified and a session was created.
	StatusComplete VerificationStatus = "complete"
	// StatusMissingRequirements means the provider needs more before completing.
	StatusMissingRequirements VerificationStatus = "missing_requirements"
	// StatusAbandoned means the registration can no longer be completed.
	StatusAbandoned VerificationStatus = "abandoned"
)

// Session is a provider session created from credentials or a completed registration.
type Session struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Registration is the sign-up payload sent to the provider.
type Registration struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Secret    string `json:"password"`
}

// VerificationResult is returned by AttemptVerification. SessionID and Token are
// set only when Status is StatusComplete.
type VerificationResult struct {
	Status    VerificationStatus `json:"status"`
	SessionID string             `json:"session_id,omitempty"`
	Token     string             `json:"token,omitempty"`
}

// Complete reports whether the attempt finished the registration.
func (r VerificationResult) Complete() bool {
	return r.Status == StatusComplete && r.SessionID != ""
}

// Gateway is the identity provider boundary.
//
// Implementations report user-correctable failures as [Errors]; any other
// error is treated as a transport or availability failure.
type Gateway interface {
	CreateSession(ctx context.Context, identifier, secret string) (Session, error)
	SetActiveSession(ctx context.Context, sessionID string) error
	CreateRegistration(ctx context.Context, reg Registration) (string, error)
	PrepareVerification(ctx context.Context, registrationID string, strategy Strategy) error
	AttemptVerification(ctx context.Context, registrationID, code string) (VerificationResult, error)
	ResumeSession(ctx context.Context, token string) (Session, error)
	EndSession(ctx context.Context, sessionID string) error
}

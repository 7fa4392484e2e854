package authflow

import (
	"context"
	"sync/atomic"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal/flows"
)

// RegistrationDraft is the sign-up form. It is held only by the flow.
type RegistrationDraft struct {
	FirstName string
	LastName  string
	Email     string
	Secret    string
}

// SignUpPhase is the position of a SignUpFlow in its forward-only lifecycle.
type SignUpPhase uint32

const (
	PhaseDraft SignUpPhase = iota
	PhaseCreating
	PhasePending
	PhaseVerifying
	PhaseVerified
)

func (p SignUpPhase) String() string {
	switch p {
	case PhaseDraft:
		return "draft"
	case PhaseCreating:
		return "creating"
	case PhasePending:
		return "pending"
	case PhaseVerifying:
		return "verifying"
	case PhaseVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// SignUpFlow creates a registration and verifies it with an email code.
//
//	Draft --Create--> Pending --Verify(complete)--> Verified
//	Pending --Verify(anything else)--> Pending
//
// There is no way back from Pending to Draft. Wrong codes may be retried
// without limit.
type SignUpFlow struct {
	client *Client
	phase  atomic.Uint32
	regID  string
}

// Phase reports where the flow is in its lifecycle.
func (f *SignUpFlow) Phase() SignUpPhase {
	return SignUpPhase(f.phase.Load())
}

// Create submits draft and asks the provider to email a verification code.
// On failure the flow stays in Draft and may be resubmitted.
func (f *SignUpFlow) Create(ctx context.Context, draft RegistrationDraft) error {
	c := f.client
	if !c.store.Snapshot().Loaded() {
		return f.reject(ErrNotLoaded)
	}
	if !f.phase.CompareAndSwap(uint32(PhaseDraft), uint32(PhaseCreating)) {
		switch f.Phase() {
		case PhaseCreating, PhaseVerifying:
			return f.reject(ErrSubmissionInFlight)
		default:
			return f.reject(ErrRegistrationExists)
		}
	}

	if !c.beginSubmission() {
		f.phase.Store(uint32(PhaseDraft))
		return f.reject(ErrSubmissionInFlight)
	}
	defer c.endSubmission()

	regID, err := flows.RunCreateRegistration(ctx, gateway.Registration{
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
		Email:     draft.Email,
		Secret:    draft.Secret,
	}, c.deps())
	if err != nil {
		f.phase.Store(uint32(PhaseDraft))
		return err
	}

	f.regID = regID
	f.phase.Store(uint32(PhasePending))
	return nil
}

// Verify submits an email code and returns the new session ID once the
// provider reports the registration complete. An incomplete result returns
// ErrVerificationFailed; a provider error is wrapped in ErrProvider. Both
// leave the flow Pending.
func (f *SignUpFlow) Verify(ctx context.Context, code string) (string, error) {
	if !f.phase.CompareAndSwap(uint32(PhasePending), uint32(PhaseVerifying)) {
		switch f.Phase() {
		case PhaseCreating, PhaseVerifying:
			return "", f.reject(ErrSubmissionInFlight)
		default:
			return "", f.reject(ErrNotPendingVerification)
		}
	}

	c := f.client
	if !c.beginSubmission() {
		f.phase.Store(uint32(PhasePending))
		return "", f.reject(ErrSubmissionInFlight)
	}
	defer c.endSubmission()

	sessionID, err := flows.RunVerifyRegistration(ctx, f.regID, code, c.deps())
	if err != nil {
		f.phase.Store(uint32(PhasePending))
		return "", err
	}

	f.phase.Store(uint32(PhaseVerified))
	return sessionID, nil
}

func (f *SignUpFlow) reject(err error) error {
	f.client.metrics.Inc(MetricSignUpRejected)
	return err
}

package authflow

import (
	"context"
	"sync/atomic"

	"github.com/MrEthical07/authflow/internal/flows"
)

const (
	phaseIdle uint32 = iota
	phaseInFlight
)

// SignInFlow submits credentials. One submission runs at a time per flow;
// a second concurrent Submit is rejected without side effects.
type SignInFlow struct {
	client *Client
	phase  atomic.Uint32
}

// Submit signs in with identifier and secret and returns the new session ID.
//
// Provider failures leave the store SignedOut with a user-facing message and
// are returned wrapped in ErrProvider. If ctx ends before the provider
// answers, the answer is discarded and ErrDiscarded is returned.
func (f *SignInFlow) Submit(ctx context.Context, identifier, secret string) (string, error) {
	c := f.client
	if !c.store.Snapshot().Loaded() {
		c.metrics.Inc(MetricSignInRejected)
		return "", ErrNotLoaded
	}
	if !f.phase.CompareAndSwap(phaseIdle, phaseInFlight) {
		c.metrics.Inc(MetricSignInRejected)
		return "", ErrSubmissionInFlight
	}
	defer f.phase.Store(phaseIdle)
	if !c.beginSubmission() {
		c.metrics.Inc(MetricSignInRejected)
		return "", ErrSubmissionInFlight
	}
	defer c.endSubmission()

	return flows.RunSignIn(ctx, identifier, secret, c.deps())
}

// InFlight reports whether a submission is waiting on the provider.
func (f *SignInFlow) InFlight() bool {
	return f.phase.Load() == phaseInFlight
}

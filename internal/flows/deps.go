package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/state"
	"go.uber.org/zap"
)

// User-facing fallbacks when the provider supplies no message.
const (
	FallbackSignIn        = "An error occurred during sign in"
	FallbackSignUp        = "An error occurred during sign up"
	FallbackVerification  = "An error occurred during verification"
	MsgVerificationFailed = "Email verification failed. Please try again."
)

// Metrics maps flow outcomes to metric ids owned by the caller.
type Metrics struct {
	SignInSuccess        int
	SignInFailure        int
	RegistrationCreated  int
	RegistrationFailure  int
	VerificationSuccess  int
	VerificationFailure  int
	RehydrateHit         int
	RehydrateMiss        int
	RehydrateRejected    int
	RehydrateUnavailable int
	SignOut              int
	DiscardedResult      int
}

// Events names the audit events emitted by the flows.
type Events struct {
	SignIn             string
	RegistrationCreate string
	RegistrationVerify string
	Rehydrate          string
	SignOut            string
}

// Errors carries the caller's sentinel errors.
type Errors struct {
	Provider           error
	VerificationFailed error
	Discarded          error
}

// Deps is shared by every flow.
type Deps struct {
	Gateway gateway.Gateway
	State   state.Writer

	GetToken   func(context.Context) (string, bool)
	SaveToken  func(context.Context, string)
	ClearToken func(context.Context)

	MetricInc      func(int)
	ObserveGateway func(time.Duration)
	EmitAudit      func(ctx context.Context, event string, success bool, sessionID string, err error, metadata func() map[string]string)
	Logger         *zap.Logger
	Now            func() time.Time

	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d *Deps) normalize() {
	if d.GetToken == nil {
		d.GetToken = func(context.Context) (string, bool) { return "", false }
	}
	if d.SaveToken == nil {
		d.SaveToken = func(context.Context, string) {}
	}
	if d.ClearToken == nil {
		d.ClearToken = func(context.Context) {}
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.ObserveGateway == nil {
		d.ObserveGateway = func(time.Duration) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Errors.Provider == nil {
		d.Errors.Provider = errors.New("identity provider error")
	}
	if d.Errors.VerificationFailed == nil {
		d.Errors.VerificationFailed = errors.New("verification failed")
	}
	if d.Errors.Discarded == nil {
		d.Errors.Discarded = errors.New("result discarded")
	}
}

// timed runs one gateway call and records its latency.
func timed[T any](d *Deps, fn func() (T, error)) (T, error) {
	start := d.Now()
	v, err := fn()
	d.ObserveGateway(d.Now().Sub(start))
	return v, err
}

func timedErr(d *Deps, fn func() error) error {
	_, err := timed(d, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// discarded reports whether the caller went away while the gateway answered.
// When it did, the prior stable status is restored without a message.
func discarded(ctx context.Context, d *Deps, op string, prior state.SessionState) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	restore(d.State, prior)
	d.MetricInc(d.Metrics.DiscardedResult)
	d.Logger.Info("flow result discarded", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %w", d.Errors.Discarded, err)
}

func restore(w state.Writer, prior state.SessionState) {
	switch prior.Status {
	case state.SignedIn:
		w.SignIn(prior.SessionID)
	case state.PendingVerification:
		w.AwaitVerification("")
	default:
		w.SignOut("")
	}
}

func providerErr(d *Deps, err error) error {
	return fmt.Errorf("%w: %w", d.Errors.Provider, err)
}

func errorCode(err error) string {
	if list, ok := gateway.AsErrors(err); ok && len(list) > 0 {
		return list[0].Code
	}
	return "unavailable"
}

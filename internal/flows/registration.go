package flows

import (
	"context"

	"github.com/MrEthical07/authflow/gateway"
	"go.uber.org/zap"
)

// RunCreateRegistration creates the registration and asks the provider to
// send the email code. Success enters PendingVerification.
func RunCreateRegistration(ctx context.Context, reg gateway.Registration, deps Deps) (string, error) {
	deps.normalize()

	prior := deps.State.Snapshot()
	deps.State.BeginLoading()

	regID, err := timed(&deps, func() (string, error) {
		return deps.Gateway.CreateRegistration(ctx, reg)
	})
	if err == nil {
		err = timedErr(&deps, func() error {
			return deps.Gateway.PrepareVerification(ctx, regID, gateway.StrategyEmailCode)
		})
	}
	if dErr := discarded(ctx, &deps, "registration_create", prior); dErr != nil {
		return "", dErr
	}
	if err != nil {
		deps.State.SignOut(gateway.FirstMessage(err, FallbackSignUp))
		deps.MetricInc(deps.Metrics.RegistrationFailure)
		deps.Logger.Debug("registration failed", zap.String("code", errorCode(err)), zap.Error(err))
		deps.EmitAudit(ctx, deps.Events.RegistrationCreate, false, "", err, func() map[string]string {
			return map[string]string{"code": errorCode(err)}
		})
		return "", providerErr(&deps, err)
	}

	deps.State.AwaitVerification("")
	deps.MetricInc(deps.Metrics.RegistrationCreated)
	deps.EmitAudit(ctx, deps.Events.RegistrationCreate, true, "", nil, nil)
	return regID, nil
}

// RunVerifyRegistration submits an email code. A complete result activates
// the session, persists its token and enters SignedIn. Every other outcome
// returns to PendingVerification with a message, ready for another attempt.
func RunVerifyRegistration(ctx context.Context, registrationID, code string, deps Deps) (string, error) {
	deps.normalize()

	prior := deps.State.Snapshot()
	deps.State.BeginLoading()

	res, err := timed(&deps, func() (gateway.VerificationResult, error) {
		return deps.Gateway.AttemptVerification(ctx, registrationID, code)
	})
	if dErr := discarded(ctx, &deps, "registration_verify", prior); dErr != nil {
		return "", dErr
	}
	if err != nil {
		return "", verificationFailed(ctx, &deps, gateway.FirstMessage(err, FallbackVerification), errorCode(err), providerErr(&deps, err))
	}
	if !res.Complete() {
		deps.Logger.Debug("verification not complete", zap.String("status", string(res.Status)))
		return "", verificationFailed(ctx, &deps, MsgVerificationFailed, "status_"+string(res.Status), deps.Errors.VerificationFailed)
	}

	err = timedErr(&deps, func() error {
		return deps.Gateway.SetActiveSession(ctx, res.SessionID)
	})
	if dErr := discarded(ctx, &deps, "registration_verify", prior); dErr != nil {
		return "", dErr
	}
	if err != nil {
		return "", verificationFailed(ctx, &deps, gateway.FirstMessage(err, FallbackVerification), errorCode(err), providerErr(&deps, err))
	}

	deps.SaveToken(ctx, res.Token)
	deps.State.SignIn(res.SessionID)

	deps.MetricInc(deps.Metrics.VerificationSuccess)
	deps.EmitAudit(ctx, deps.Events.RegistrationVerify, true, res.SessionID, nil, nil)
	return res.SessionID, nil
}

func verificationFailed(ctx context.Context, deps *Deps, msg, code string, err error) error {
	deps.State.AwaitVerification(msg)
	deps.MetricInc(deps.Metrics.VerificationFailure)
	deps.EmitAudit(ctx, deps.Events.RegistrationVerify, false, "", err, func() map[string]string {
		return map[string]string{"code": code}
	})
	return err
}

package flows

import (
	"context"

	"github.com/MrEthical07/authflow/gateway"
	"go.uber.org/zap"
)

// RunSignIn submits credentials and, on success, activates the session,
// persists its token once and enters SignedIn.
func RunSignIn(ctx context.Context, identifier, secret string, deps Deps) (string, error) {
	deps.normalize()

	prior := deps.State.Snapshot()
	deps.State.BeginLoading()

	sess, err := timed(&deps, func() (gateway.Session, error) {
		return deps.Gateway.CreateSession(ctx, identifier, secret)
	})
	if dErr := discarded(ctx, &deps, "sign_in", prior); dErr != nil {
		return "", dErr
	}
	if err == nil {
		err = timedErr(&deps, func() error {
			return deps.Gateway.SetActiveSession(ctx, sess.ID)
		})
		if dErr := discarded(ctx, &deps, "sign_in", prior); dErr != nil {
			return "", dErr
		}
	}
	if err != nil {
		return "", signInFailed(ctx, &deps, err)
	}

	deps.SaveToken(ctx, sess.Token)
	deps.State.SignIn(sess.ID)

	deps.MetricInc(deps.Metrics.SignInSuccess)
	deps.EmitAudit(ctx, deps.Events.SignIn, true, sess.ID, nil, nil)
	return sess.ID, nil
}

func signInFailed(ctx context.Context, deps *Deps, err error) error {
	msg := gateway.FirstMessage(err, FallbackSignIn)
	deps.State.SignOut(msg)

	deps.MetricInc(deps.Metrics.SignInFailure)
	deps.Logger.Debug("sign in failed", zap.String("code", errorCode(err)), zap.Error(err))
	deps.EmitAudit(ctx, deps.Events.SignIn, false, "", err, func() map[string]string {
		return map[string]string{"code": errorCode(err)}
	})
	return providerErr(deps, err)
}

package flows

import (
	"context"

	"github.com/MrEthical07/authflow/gateway"
	"go.uber.org/zap"
)

// RunRehydrate populates the store at boot from the cached token. It always
// leaves the store loaded and never returns a provider failure: a token the
// provider refuses is cleared, any other failure keeps it for the next boot.
func RunRehydrate(ctx context.Context, deps Deps) string {
	deps.normalize()

	raw, ok := deps.GetToken(ctx)
	if !ok {
		deps.State.SignOut("")
		deps.MetricInc(deps.Metrics.RehydrateMiss)
		deps.EmitAudit(ctx, deps.Events.Rehydrate, false, "", nil, func() map[string]string {
			return map[string]string{"outcome": "miss"}
		})
		return ""
	}

	sess, err := timed(&deps, func() (gateway.Session, error) {
		return deps.Gateway.ResumeSession(ctx, raw)
	})
	if err != nil {
		outcome := "unavailable"
		if gateway.TokenRefused(err) {
			outcome = "rejected"
			deps.ClearToken(ctx)
			deps.MetricInc(deps.Metrics.RehydrateRejected)
		} else {
			deps.MetricInc(deps.Metrics.RehydrateUnavailable)
		}
		deps.Logger.Info("session not resumed", zap.String("outcome", outcome), zap.Error(err))
		deps.State.SignOut("")
		deps.EmitAudit(ctx, deps.Events.Rehydrate, false, "", err, func() map[string]string {
			return map[string]string{"outcome": outcome}
		})
		return ""
	}

	if sess.Token != "" && sess.Token != raw {
		deps.SaveToken(ctx, sess.Token)
	}
	deps.State.SignIn(sess.ID)

	deps.MetricInc(deps.Metrics.RehydrateHit)
	deps.EmitAudit(ctx, deps.Events.Rehydrate, true, sess.ID, nil, nil)
	return sess.ID
}

// RunSignOut ends the provider session (best effort), clears the cached token
// and enters SignedOut.
func RunSignOut(ctx context.Context, deps Deps) {
	deps.normalize()

	sessionID := deps.State.Snapshot().SessionID
	deps.State.BeginLoading()

	if sessionID != "" {
		err := timedErr(&deps, func() error {
			return deps.Gateway.EndSession(ctx, sessionID)
		})
		if err != nil {
			deps.Logger.Warn("end session failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	deps.ClearToken(ctx)
	deps.State.SignOut("")

	deps.MetricInc(deps.Metrics.SignOut)
	deps.EmitAudit(ctx, deps.Events.SignOut, true, sessionID, nil, nil)
}

package authflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authflow/cache"
	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/navigation"
	"github.com/MrEthical07/authflow/state"
	"go.uber.org/zap"
)

// Client owns the auth state store, the token cache and the provider gateway.
// All methods are safe for concurrent use.
type Client struct {
	cfg     Config
	gateway gateway.Gateway
	store   *state.Store
	writer  state.Writer
	tokens  *cache.TokenCache
	metrics *Metrics
	audit   *auditDispatcher
	logger  *zap.Logger

	booting    atomic.Bool
	signingOut atomic.Bool
	submitting atomic.Int32
	closers    []func() error
	closeOnce  sync.Once
	closeErr   error
}

// Boot rehydrates the store from the cached token. Until it returns the store
// is not loaded and every submission is rejected. Only the first call does
// any work; later calls return the current snapshot.
func (c *Client) Boot(ctx context.Context) state.SessionState {
	if !c.booting.CompareAndSwap(false, true) {
		return c.store.Snapshot()
	}

	sessionID := flows.RunRehydrate(ctx, c.deps())
	c.logger.Info("auth state loaded",
		zap.Bool("signed_in", sessionID != ""),
	)
	return c.store.Snapshot()
}

// SignIn returns a new credential submission flow.
func (c *Client) SignIn() *SignInFlow {
	return &SignInFlow{client: c}
}

// SignUp returns a new registration flow in its draft phase.
func (c *Client) SignUp() *SignUpFlow {
	return &SignUpFlow{client: c}
}

// SignOut ends the current session and clears the cached token. It is
// rejected with ErrNotLoaded before Boot completes, and with
// ErrSubmissionInFlight while a sign-in or sign-up submission is waiting on
// the provider or another sign-out is running. Submissions started during a
// sign-out are rejected the same way.
func (c *Client) SignOut(ctx context.Context) error {
	if !c.store.Snapshot().Loaded() {
		return ErrNotLoaded
	}
	if !c.signingOut.CompareAndSwap(false, true) {
		return ErrSubmissionInFlight
	}
	defer c.signingOut.Store(false)
	if c.submitting.Load() > 0 {
		return ErrSubmissionInFlight
	}

	flows.RunSignOut(ctx, c.deps())
	return nil
}

// beginSubmission registers a flow submission unless a sign-out is running.
// Each side publishes itself before looking at the other, so a submission and
// a sign-out never both proceed.
func (c *Client) beginSubmission() bool {
	c.submitting.Add(1)
	if c.signingOut.Load() {
		c.submitting.Add(-1)
		return false
	}
	return true
}

func (c *Client) endSubmission() {
	c.submitting.Add(-1)
}

// Store exposes the read side of the auth state.
func (c *Client) Store() state.Reader {
	return c.store
}

// State returns the current session state.
func (c *Client) State() state.SessionState {
	return c.store.Snapshot()
}

// Guard starts a navigation guard that keeps router placement consistent
// with the auth state. Route changes must be reported with Guard.RouteChanged;
// stop it with Guard.Stop.
func (c *Client) Guard(router navigation.Router) *navigation.Guard {
	g := navigation.NewGuard(c.store, router,
		navigation.WithLogger(c.logger.Named("guard")),
		navigation.WithActionHook(func(navigation.Action) {
			c.metrics.Inc(MetricRedirect)
		}),
	)
	g.Start()
	return g
}

// MetricsSnapshot copies the current counters and histogram buckets.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped is the number of audit events lost to a full buffer.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes the audit dispatcher and closes the cache connections the
// client opened itself.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.audit.Close()
		c.closeErr = c.closeOwned()
	})
	return c.closeErr
}

func (c *Client) deps() flows.Deps {
	key := c.cfg.TokenKey
	return flows.Deps{
		Gateway: c.gateway,
		State:   c.writer,
		GetToken: func(ctx context.Context) (string, bool) {
			return c.tokens.GetToken(ctx, key)
		},
		SaveToken: func(ctx context.Context, token string) {
			c.tokens.SaveToken(ctx, key, token)
		},
		ClearToken: func(ctx context.Context) {
			c.tokens.ClearToken(ctx, key)
		},
		MetricInc: func(id int) {
			c.metrics.Inc(MetricID(id))
		},
		ObserveGateway: func(d time.Duration) {
			c.metrics.Observe(MetricGatewayLatency, d)
		},
		EmitAudit: c.emitAudit,
		Logger:    c.logger,
		Metrics: flows.Metrics{
			SignInSuccess:        int(MetricSignInSuccess),
			SignInFailure:        int(MetricSignInFailure),
			RegistrationCreated:  int(MetricRegistrationCreated),
			RegistrationFailure:  int(MetricRegistrationFailure),
			VerificationSuccess:  int(MetricVerificationSuccess),
			VerificationFailure:  int(MetricVerificationFailure),
			RehydrateHit:         int(MetricRehydrateHit),
			RehydrateMiss:        int(MetricRehydrateMiss),
			RehydrateRejected:    int(MetricRehydrateRejected),
			RehydrateUnavailable: int(MetricRehydrateUnavailable),
			SignOut:              int(MetricSignOut),
			DiscardedResult:      int(MetricDiscardedResult),
		},
		Events: flows.Events{
			SignIn:             AuditSignIn,
			RegistrationCreate: AuditRegistrationCreate,
			RegistrationVerify: AuditRegistrationVerify,
			Rehydrate:          AuditRehydrate,
			SignOut:            AuditSignOut,
		},
		Errors: flows.Errors{
			Provider:           ErrProvider,
			VerificationFailed: ErrVerificationFailed,
			Discarded:          ErrDiscarded,
		},
	}
}

func (c *Client) emitAudit(ctx context.Context, event string, success bool, sessionID string, err error, metadata func() map[string]string) {
	if c.audit == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: event,
		SessionID: sessionID,
		Success:   success,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if metadata != nil {
		ev.Metadata = metadata()
	}
	c.audit.Emit(ctx, ev)
}

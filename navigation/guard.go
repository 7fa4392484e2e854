package navigation

import (
	"sync"

	"github.com/MrEthical07/authflow/state"
	"go.uber.org/zap"
)

// Router is the boundary to the screen stack. Replace is called only by the Guard.
type Router interface {
	CurrentGroup() RouteGroup
	Replace(path string)
}

// Guard observes a state reader and a router and issues redirects.
type Guard struct {
	reader   state.Reader
	router   Router
	logger   *zap.Logger
	onAction func(Action)

	mu          sync.Mutex
	unsubscribe func()
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithLogger sets the guard logger.
func WithLogger(logger *zap.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithActionHook registers fn to observe every redirect the guard issues.
func WithActionHook(fn func(Action)) GuardOption {
	return func(g *Guard) {
		g.onAction = fn
	}
}

// NewGuard builds a guard. It does nothing until Start.
func NewGuard(reader state.Reader, router Router, opts ...GuardOption) *Guard {
	g := &Guard{
		reader: reader,
		router: router,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start subscribes to state changes and evaluates the current placement once.
// Calling Start twice is a no-op.
func (g *Guard) Start() {
	if g == nil || g.reader == nil || g.router == nil {
		return
	}

	g.mu.Lock()
	if g.unsubscribe != nil {
		g.mu.Unlock()
		return
	}
	g.unsubscribe = g.reader.Subscribe(g.evaluateState)
	g.mu.Unlock()

	g.Evaluate()
}

// Stop detaches the guard from the store.
func (g *Guard) Stop() {
	if g == nil {
		return
	}
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// RouteChanged must be called by the router integration after every navigation.
func (g *Guard) RouteChanged() {
	g.Evaluate()
}

// Evaluate applies Decide to the current inputs and returns the action taken.
func (g *Guard) Evaluate() Action {
	if g == nil || g.reader == nil || g.router == nil {
		return Action{}
	}
	return g.evaluate(g.reader.Snapshot())
}

func (g *Guard) evaluateState(s state.SessionState) {
	g.evaluate(s)
}

func (g *Guard) evaluate(s state.SessionState) Action {
	group := g.router.CurrentGroup()
	action := Decide(s.Loaded(), s.SignedIn(), group)
	if !action.Redirect() {
		return action
	}

	g.logger.Debug("navigation redirect",
		zap.String("from_group", group.String()),
		zap.String("to", action.Path),
		zap.String("status", s.Status.String()),
	)
	g.router.Replace(action.Path)
	if g.onAction != nil {
		g.onAction(action)
	}
	return action
}

package authflow

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/authflow/cache"
	"github.com/MrEthical07/authflow/gateway"
)

// stubGateway answers every call successfully unless a hook overrides it.
type stubGateway struct {
	mu    sync.Mutex
	calls map[string]int

	createSession func(ctx context.Context, identifier, secret string) (gateway.Session, error)
	createReg     func(ctx context.Context, reg gateway.Registration) (string, error)
	attempt       func(ctx context.Context, code string) (gateway.VerificationResult, error)
	resume        func(ctx context.Context, token string) (gateway.Session, error)
	endSession    func(ctx context.Context, sessionID string) error
	endErr        error
}

func (g *stubGateway) hit(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[op]++
}

func (g *stubGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *stubGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *stubGateway) CreateSession(ctx context.Context, identifier, secret string) (gateway.Session, error) {
	g.hit("create_session")
	if g.createSession != nil {
		return g.createSession(ctx, identifier, secret)
	}
	return gateway.Session{ID: "sess_in", Token: "tok_in"}, nil
}

func (g *stubGateway) SetActiveSession(context.Context, string) error {
	g.hit("set_active")
	return nil
}

func (g *stubGateway) CreateRegistration(ctx context.Context, reg gateway.Registration) (string, error) {
	g.hit("create_registration")
	if g.createReg != nil {
		return g.createReg(ctx, reg)
	}
	return "reg_1", nil
}

func (g *stubGateway) PrepareVerification(context.Context, string, gateway.Strategy) error {
	g.hit("prepare")
	return nil
}

func (g *stubGateway) AttemptVerification(ctx context.Context, _, code string) (gateway.VerificationResult, error) {
	g.hit("attempt")
	if g.attempt != nil {
		return g.attempt(ctx, code)
	}
	return gateway.VerificationResult{Status: gateway.StatusComplete, SessionID: "sess_up", Token: "tok_up"}, nil
}

func (g *stubGateway) ResumeSession(ctx context.Context, token string) (gateway.Session, error) {
	g.hit("resume")
	if g.resume != nil {
		return g.resume(ctx, token)
	}
	return gateway.Session{ID: "sess_resumed", Token: token}, nil
}

func (g *stubGateway) EndSession(ctx context.Context, sessionID string) error {
	g.hit("end_session")
	if g.endSession != nil {
		return g.endSession(ctx, sessionID)
	}
	return g.endErr
}

// countingCache records writes on top of an in-memory backend.
type countingCache struct {
	*cache.Memory

	mu      sync.Mutex
	sets    []string
	removes int
	getErr  error
}

func newCountingCache() *countingCache {
	return &countingCache{Memory: cache.NewMemory()}
}

func (c *countingCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	err := c.getErr
	c.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return c.Memory.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	c.sets = append(c.sets, value)
	c.mu.Unlock()
	return c.Memory.Set(ctx, key, value)
}

func (c *countingCache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	c.removes++
	c.mu.Unlock()
	return c.Memory.Remove(ctx, key)
}

func (c *countingCache) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sets...)
}

func (c *countingCache) removals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removes
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PublishableKey = "pk_test_123"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestClient(t *testing.T, gw gateway.Gateway, backend cache.Cache) *Client {
	t.Helper()

	c, err := New().
		WithConfig(testConfig()).
		WithGateway(gw).
		WithCache(backend).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// bootedClient returns a client booted with an empty cache (SignedOut).
func bootedClient(t *testing.T, gw gateway.Gateway) (*Client, *countingCache) {
	t.Helper()

	backend := newCountingCache()
	c := newTestClient(t, gw, backend)
	c.Boot(context.Background())
	return c, backend
}

package authflow

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/cache"
	"github.com/MrEthical07/authflow/gateway/httpgw"
	"github.com/MrEthical07/authflow/gateway/reference"
	"github.com/MrEthical07/authflow/navigation"
	"github.com/MrEthical07/authflow/password"
	"github.com/MrEthical07/authflow/state"
	"github.com/MrEthical07/authflow/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testCode = "424242"

func newReferenceProvider(t *testing.T) *reference.Provider {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher, err := password.New(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	issuer, err := token.NewIssuer(token.Config{
		Method:     token.MethodHS256,
		PrivateKey: []byte("integration-test-signing-key-0123456789"),
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("token.NewIssuer: %v", err)
	}
	p, err := reference.New(reference.Config{Redis: rdb, Tokens: issuer, Hasher: hasher, FixedCode: testCode})
	if err != nil {
		t.Fatalf("reference.New: %v", err)
	}
	return p
}

// TestEndToEndOverHTTPWithRestart drives every flow through the HTTP adapter
// and a sqlite token cache, then restarts the client on the same cache.
func TestEndToEndOverHTTPWithRestart(t *testing.T) {
	provider := newReferenceProvider(t)
	srv := httptest.NewServer(httpgw.NewHandler(provider, httpgw.HandlerOptions{PublishableKey: "pk_test_123"}))
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.ProviderURL = srv.URL
	cfg.Cache.Backend = CacheSQLite
	cfg.Cache.SQLitePath = filepath.Join(t.TempDir(), "tokens.db")

	ctx := context.Background()
	c, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := c.Boot(ctx); got.Status != state.SignedOut {
		t.Fatalf("first boot = %+v", got)
	}

	router := navigation.NewMemoryRouter("/")
	guard := c.Guard(router)
	if router.Path() != navigation.SignInPath {
		t.Fatalf("signed-out boot should land on sign-in, at %s", router.Path())
	}
	router.Navigate(navigation.SignUpPath)
	guard.RouteChanged()

	flow := c.SignUp()
	draft := RegistrationDraft{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Secret: "cobol-forever"}
	if err := flow.Create(ctx, draft); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := flow.Verify(ctx, "111111"); !errors.Is(err, ErrProvider) {
		t.Fatalf("wrong code: %v", err)
	}
	if got := c.State(); got.Status != state.PendingVerification || got.Error != reference.MsgCodeIncorrect {
		t.Fatalf("after wrong code %+v", got)
	}
	sessionID, err := flow.Verify(ctx, testCode)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if router.Path() != navigation.ProtectedRoot {
		t.Fatalf("verified user should land on %s, at %s", navigation.ProtectedRoot, router.Path())
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if router.Path() != navigation.SignInPath {
		t.Fatalf("signed-out user should land on sign-in, at %s", router.Path())
	}

	if _, err := c.SignIn().Submit(ctx, "grace@example.com", "wrong-secret"); !errors.Is(err, ErrProvider) {
		t.Fatalf("wrong secret: %v", err)
	}
	if got := c.State(); got.Error != reference.MsgPasswordIncorrect {
		t.Fatalf("expected provider message, got %+v", got)
	}
	signedIn, err := c.SignIn().Submit(ctx, "grace@example.com", draft.Secret)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if signedIn == sessionID {
		t.Fatal("sign-in after sign-out must create a new session")
	}
	guard.Stop()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restarted, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	t.Cleanup(func() { _ = restarted.Close() })

	got := restarted.Boot(ctx)
	if got.Status != state.SignedIn || got.SessionID != signedIn {
		t.Fatalf("restart should resume %s, got %+v", signedIn, got)
	}
}

func TestBootClearsRevokedToken(t *testing.T) {
	provider := newReferenceProvider(t)
	backend := cache.NewMemory()
	ctx := context.Background()

	c := newTestClient(t, provider, backend)
	c.Boot(ctx)
	flow := c.SignUp()
	if err := flow.Create(ctx, RegistrationDraft{FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Secret: "enigma-1912"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	sessionID, err := flow.Verify(ctx, testCode)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// revoke behind the client's back
	if err := provider.EndSession(ctx, sessionID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	second := newTestClient(t, provider, backend)
	if got := second.Boot(ctx); got.Status != state.SignedOut {
		t.Fatalf("revoked token should not resume, got %+v", got)
	}
	if _, ok, _ := backend.Get(ctx, DefaultTokenKey); ok {
		t.Fatal("revoked token should be cleared from the cache")
	}
}

func TestBootKeepsTokenWhenKeyRejected(t *testing.T) {
	provider := newReferenceProvider(t)
	srv := httptest.NewServer(httpgw.NewHandler(provider, httpgw.HandlerOptions{PublishableKey: "pk_right"}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	backend := cache.NewMemory()
	if err := backend.Set(ctx, DefaultTokenKey, "tok_still_valid"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := testConfig()
	cfg.PublishableKey = "pk_wrong"
	cfg.ProviderURL = srv.URL
	c, err := New().WithConfig(cfg).WithCache(backend).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if got := c.Boot(ctx); got.Status != state.SignedOut {
		t.Fatalf("Boot = %+v", got)
	}
	if v, ok, _ := backend.Get(ctx, DefaultTokenKey); !ok || v != "tok_still_valid" {
		t.Fatal("a rejected publishable key must not clear the cached token")
	}
	if c.MetricsSnapshot().Counters[MetricRehydrateUnavailable] != 1 {
		t.Fatal("expected the unavailable outcome")
	}
}

// Command authflow-demo walks an authflow client through its whole lifecycle
// against the in-process reference identity provider:
//
//	boot -> sign up -> wrong code -> right code -> sign out -> sign in -> restart
//
// The provider keeps its records in redis (miniredis unless -redis-addr is
// set). With -http the client reaches the provider through the HTTP adapter
// on a loopback port instead of calling it directly.
//
// Run:
//
//	go run ./cmd/authflow-demo -publishable-key pk_test_local -cache sqlite -http -metrics
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/gateway/httpgw"
	"github.com/MrEthical07/authflow/gateway/reference"
	"github.com/MrEthical07/authflow/metrics/export/prometheus"
	"github.com/MrEthical07/authflow/navigation"
	"github.com/MrEthical07/authflow/password"
	"github.com/MrEthical07/authflow/state"
	"github.com/MrEthical07/authflow/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	var (
		pubKey     = flag.String("publishable-key", "", "publishable key; overrides AUTHFLOW_PUBLISHABLE_KEY")
		backend    = flag.String("cache", authflow.CacheMemory, "token cache backend: memory, redis or sqlite")
		sqlitePath = flag.String("sqlite-path", filepath.Join(os.TempDir(), "authflow-demo.db"), "sqlite token cache file")
		redisAddr  = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		useHTTP    = flag.Bool("http", false, "reach the provider through the HTTP adapter")
		email      = flag.String("email", "ada@example.com", "registration email")
		secret     = flag.String("password", "correct-horse-battery", "registration password")
		code       = flag.String("code", "424242", "verification code the provider issues")
		logLevel   = flag.String("log-level", "warn", "log level")
		showMetric = flag.Bool("metrics", false, "print client metrics in Prometheus format")
	)
	flag.Parse()

	if err := run(options{
		pubKey:     *pubKey,
		backend:    *backend,
		sqlitePath: *sqlitePath,
		redisAddr:  *redisAddr,
		useHTTP:    *useHTTP,
		email:      *email,
		secret:     *secret,
		code:       *code,
		logLevel:   *logLevel,
		metrics:    *showMetric,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "authflow-demo:", err)
		os.Exit(1)
	}
}

type options struct {
	pubKey     string
	backend    string
	sqlitePath string
	redisAddr  string
	useHTTP    bool
	email      string
	secret     string
	code       string
	logLevel   string
	metrics    bool
}

func run(opts options) error {
	ctx := context.Background()

	logger, err := authflow.NewLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rdb, cleanup, err := openRedis(opts.redisAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	provider, err := newProvider(rdb, logger, opts.code)
	if err != nil {
		return err
	}

	cfg, err := authflow.LoadConfigWith(func(c *authflow.Config) {
		if opts.pubKey != "" {
			c.PublishableKey = opts.pubKey
		}
		c.Cache.Backend = opts.backend
		c.Cache.SQLitePath = opts.sqlitePath
		c.Metrics.Enabled = true
		c.Metrics.EnableLatencyHistograms = true
	})
	if err != nil {
		return err
	}

	var gw gateway.Gateway = provider
	if opts.useHTTP {
		url, stop, err := serveProvider(provider, cfg.PublishableKey, logger)
		if err != nil {
			return err
		}
		defer stop()
		cfg.ProviderURL = url
		gw = nil
		fmt.Printf("provider listening on %s\n", url)
	}

	build := func() (*authflow.Client, error) {
		b := authflow.New().WithConfig(cfg).WithLogger(logger).WithRedis(rdb)
		if gw != nil {
			b = b.WithGateway(gw)
		}
		return b.Build()
	}

	client, err := build()
	if err != nil {
		return err
	}
	router, guard := attach(client, "/")

	step("boot")
	printState(client.Boot(ctx))

	step("open sign-up")
	router.Navigate(navigation.SignUpPath)

	flow := client.SignUp()
	step("create registration for " + opts.email)
	report(flow.Create(ctx, authflow.RegistrationDraft{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     opts.email,
		Secret:    opts.secret,
	}))
	printState(client.State())

	step("verify with a wrong code")
	_, err = flow.Verify(ctx, wrongCode(opts.code))
	report(err)
	printState(client.State())

	step("verify with the right code")
	_, err = flow.Verify(ctx, opts.code)
	report(err)
	printState(client.State())

	step("sign out")
	report(client.SignOut(ctx))
	printState(client.State())

	step("sign in with a wrong password")
	_, err = client.SignIn().Submit(ctx, opts.email, opts.secret+"!")
	report(err)
	printState(client.State())

	step("sign in")
	_, err = client.SignIn().Submit(ctx, opts.email, opts.secret)
	report(err)
	printState(client.State())

	if opts.metrics {
		step("metrics")
		fmt.Print(prometheus.NewExporter(client).Render())
	}

	guard.Stop()
	if err := client.Close(); err != nil {
		return err
	}

	step("restart on the same " + opts.backend + " cache")
	restarted, err := build()
	if err != nil {
		return err
	}
	defer restarted.Close()
	_, guard = attach(restarted, "/")
	defer guard.Stop()
	printState(restarted.Boot(ctx))
	if opts.backend == authflow.CacheMemory {
		fmt.Println("  (memory cache does not survive a restart)")
	}
	return nil
}

// attach wires a memory router to a guard and prints every redirect.
func attach(client *authflow.Client, start string) (*navigation.MemoryRouter, *navigation.Guard) {
	router := navigation.NewMemoryRouter(start)
	guard := client.Guard(router)
	router.OnChange(func(path string) {
		fmt.Printf("  route -> %s\n", path)
		guard.RouteChanged()
	})
	return router, guard
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func newProvider(rdb redis.UniversalClient, logger *zap.Logger, code string) (*reference.Provider, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	issuer, err := token.NewIssuer(token.Config{
		Method:     token.MethodHS256,
		PrivateKey: key,
		Issuer:     "authflow-demo",
		TTL:        24 * time.Hour,
	})
	if err != nil {
		return nil, err
	}
	hasher, err := password.New(password.DefaultParams())
	if err != nil {
		return nil, err
	}

	return reference.New(reference.Config{
		Redis:     rdb,
		Prefix:    "authflow-demo",
		Tokens:    issuer,
		Hasher:    hasher,
		FixedCode: code,
		CodeSender: reference.CodeSenderFunc(func(_ context.Context, email, sent string) error {
			fmt.Printf("  [mail] code %s sent to %s\n", sent, email)
			return nil
		}),
		Logger: logger.Named("provider"),
	})
}

func serveProvider(gw gateway.Gateway, key string, logger *zap.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{
		Handler:           httpgw.NewHandler(gw, httpgw.HandlerOptions{PublishableKey: key, Logger: logger.Named("http")}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()

	return "http://" + ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func step(name string) {
	fmt.Printf("\n== %s\n", name)
}

func report(err error) {
	if err != nil {
		fmt.Printf("  error: %v\n", err)
	}
}

func printState(s state.SessionState) {
	fmt.Printf("  state: %s", s.Status)
	if s.SessionID != "" {
		fmt.Printf(" session=%s", s.SessionID)
	}
	if s.Error != "" {
		fmt.Printf(" message=%q", s.Error)
	}
	fmt.Println()
}

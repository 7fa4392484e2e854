package reference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/password"
	"github.com/MrEthical07/authflow/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type outbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *outbox) SendCode(_ context.Context, email, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.codes == nil {
		o.codes = make(map[string]string)
	}
	o.codes[email] = code
	return nil
}

func (o *outbox) last(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

func newTestProvider(t *testing.T) (*Provider, *outbox, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher, err := password.New(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	issuer, err := token.NewIssuer(token.Config{
		Method:     token.MethodHS256,
		PrivateKey: []byte("reference-provider-test-key-0123456789"),
		TTL:        time.Hour,
		Issuer:     "authflow-reference",
	})
	if err != nil {
		t.Fatalf("token.NewIssuer: %v", err)
	}

	box := &outbox{}
	p, err := New(Config{Redis: rdb, Tokens: issuer, Hasher: hasher, CodeSender: box})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, box, mr
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	list, ok := gateway.AsErrors(err)
	if !ok || !list.HasCode(code) {
		t.Fatalf("expected structured error %s, got %v", code, err)
	}
}

func register(t *testing.T, p *Provider, box *outbox, email, secret string) gateway.VerificationResult {
	t.Helper()
	ctx := context.Background()

	regID, err := p.CreateRegistration(ctx, gateway.Registration{FirstName: "Ada", LastName: "Lovelace", Email: email, Secret: secret})
	if err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
	if err := p.PrepareVerification(ctx, regID, gateway.StrategyEmailCode); err != nil {
		t.Fatalf("PrepareVerification: %v", err)
	}
	res, err := p.AttemptVerification(ctx, regID, box.last(normalizeEmail(email)))
	if err != nil {
		t.Fatalf("AttemptVerification: %v", err)
	}
	return res
}

func TestRegistrationLifecycle(t *testing.T) {
	p, box, _ := newTestProvider(t)
	ctx := context.Background()

	regID, err := p.CreateRegistration(ctx, gateway.Registration{FirstName: "Ada", LastName: "Lovelace", Email: " Ada@Example.com ", Secret: "analytical"})
	if err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}

	res, err := p.AttemptVerification(ctx, regID, "000000")
	if err != nil {
		t.Fatalf("unprepared attempt error: %v", err)
	}
	if res.Status != gateway.StatusMissingRequirements || res.Complete() {
		t.Fatalf("expected missing_requirements before prepare, got %+v", res)
	}

	if err := p.PrepareVerification(ctx, regID, gateway.StrategyEmailCode); err != nil {
		t.Fatalf("PrepareVerification: %v", err)
	}
	code := box.last("ada@example.com")
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	wrong := "999999"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 5; i++ {
		_, err = p.AttemptVerification(ctx, regID, wrong)
		assertCode(t, err, gateway.CodeCodeIncorrect)
		if got := gateway.FirstMessage(err, ""); got != MsgCodeIncorrect {
			t.Fatalf("unexpected message %q", got)
		}
	}

	res, err = p.AttemptVerification(ctx, regID, code)
	if err != nil {
		t.Fatalf("AttemptVerification: %v", err)
	}
	if !res.Complete() || res.Token == "" {
		t.Fatalf("expected complete result with token, got %+v", res)
	}

	_, err = p.AttemptVerification(ctx, regID, code)
	assertCode(t, err, gateway.CodeRegistrationMissing)

	if err := p.SetActiveSession(ctx, res.SessionID); err != nil {
		t.Fatalf("SetActiveSession: %v", err)
	}
	sess, err := p.ResumeSession(ctx, res.Token)
	if err != nil || sess.ID != res.SessionID {
		t.Fatalf("ResumeSession = %+v, %v", sess, err)
	}
}

func TestCreateRegistrationValidation(t *testing.T) {
	p, box, _ := newTestProvider(t)
	ctx := context.Background()

	tests := []struct {
		name string
		reg  gateway.Registration
		code string
	}{
		{"missing email", gateway.Registration{Secret: "longenough"}, gateway.CodeParamMissing},
		{"bad email", gateway.Registration{Email: "not-an-email", Secret: "longenough"}, gateway.CodeParamFormatInvalid},
		{"no tld", gateway.Registration{Email: "a@localhost", Secret: "longenough"}, gateway.CodeParamFormatInvalid},
		{"missing secret", gateway.Registration{Email: "a@example.com"}, gateway.CodeParamMissing},
		{"short secret", gateway.Registration{Email: "a@example.com", Secret: "short"}, gateway.CodePasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.CreateRegistration(ctx, tt.reg)
			assertCode(t, err, tt.code)
		})
	}

	register(t, p, box, "taken@example.com", "longenough")
	_, err := p.CreateRegistration(ctx, gateway.Registration{Email: "TAKEN@example.com", Secret: "longenough"})
	assertCode(t, err, gateway.CodeIdentifierExists)
	if got := gateway.FirstMessage(err, ""); got != MsgIdentifierExists {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCreateSession(t *testing.T) {
	p, box, _ := newTestProvider(t)
	ctx := context.Background()
	register(t, p, box, "grace@example.com", "cobol-rules")

	_, err := p.CreateSession(ctx, "nobody@example.com", "whatever1")
	assertCode(t, err, gateway.CodeIdentifierNotFound)

	_, err = p.CreateSession(ctx, "grace@example.com", "wrong-secret")
	assertCode(t, err, gateway.CodePasswordIncorrect)

	_, err = p.CreateSession(ctx, "", "x")
	assertCode(t, err, gateway.CodeParamMissing)

	sess, err := p.CreateSession(ctx, "Grace@Example.com", "cobol-rules")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = p.ResumeSession(ctx, sess.Token)
	assertCode(t, err, gateway.CodeSessionNotFound)

	if err := p.SetActiveSession(ctx, sess.ID); err != nil {
		t.Fatalf("SetActiveSession: %v", err)
	}
	if _, err := p.ResumeSession(ctx, sess.Token); err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
}

func TestEndSessionRevokesToken(t *testing.T) {
	p, box, _ := newTestProvider(t)
	ctx := context.Background()
	res := register(t, p, box, "linus@example.com", "penguins!")
	if err := p.SetActiveSession(ctx, res.SessionID); err != nil {
		t.Fatalf("SetActiveSession: %v", err)
	}

	if err := p.EndSession(ctx, res.SessionID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := p.EndSession(ctx, res.SessionID); err != nil {
		t.Fatalf("second EndSession: %v", err)
	}

	_, err := p.ResumeSession(ctx, res.Token)
	assertCode(t, err, gateway.CodeSessionNotFound)

	err = p.SetActiveSession(ctx, res.SessionID)
	assertCode(t, err, gateway.CodeSessionNotFound)
}

func TestResumeRejectsGarbageToken(t *testing.T) {
	p, _, _ := newTestProvider(t)
	_, err := p.ResumeSession(context.Background(), "garbage")
	assertCode(t, err, gateway.CodeSessionExpired)
}

func TestPrepareVerificationErrors(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	err := p.PrepareVerification(ctx, "reg_missing", gateway.StrategyEmailCode)
	assertCode(t, err, gateway.CodeRegistrationMissing)

	err = p.PrepareVerification(ctx, "reg_missing", gateway.Strategy("phone_code"))
	assertCode(t, err, gateway.CodeStrategyInvalid)
}

func TestRegistrationExpires(t *testing.T) {
	p, _, mr := newTestProvider(t)
	ctx := context.Background()

	regID, err := p.CreateRegistration(ctx, gateway.Registration{Email: "late@example.com", Secret: "longenough"})
	if err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
	mr.FastForward(25 * time.Hour)

	_, err = p.AttemptVerification(ctx, regID, "123456")
	assertCode(t, err, gateway.CodeRegistrationMissing)
}

func TestUnavailableStoreIsNotStructured(t *testing.T) {
	p, _, mr := newTestProvider(t)
	mr.Close()

	_, err := p.CreateSession(context.Background(), "x@example.com", "whatever1")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := gateway.AsErrors(err); ok {
		t.Fatalf("availability failures must not be structured, got %v", err)
	}
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected errUnavailable, got %v", err)
	}
}

func TestFixedCode(t *testing.T) {
	p, _, _ := newTestProvider(t)
	p.sender = nil
	p.fixedCode = "424242"
	ctx := context.Background()

	regID, _ := p.CreateRegistration(ctx, gateway.Registration{Email: "fixed@example.com", Secret: "longenough"})
	if err := p.PrepareVerification(ctx, regID, gateway.StrategyEmailCode); err != nil {
		t.Fatalf("PrepareVerification: %v", err)
	}
	res, err := p.AttemptVerification(ctx, regID, "424242")
	if err != nil || !res.Complete() {
		t.Fatalf("expected completion with fixed code, got %+v %v", res, err)
	}
}

func TestRecordsRejectTruncation(t *testing.T) {
	data, err := encodeSession(&sessionRecord{SessionID: "s", UserID: "u", Active: true, CreatedAt: 1, ExpiresAt: 2})
	if err != nil {
		t.Fatalf("encodeSession: %v", err)
	}
	if _, err := decodeSession(data); err != nil {
		t.Fatalf("decodeSession: %v", err)
	}
	if _, err := decodeSession(data[:len(data)-1]); err == nil {
		t.Fatal("expected error for truncated record")
	}
	if _, err := decodeSession(append(data, 0)); err == nil {
		t.Fatal("expected error for trailing bytes")
	}
	data[0] = 9
	if _, err := decodeSession(data); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

// Package reference is an in-process identity provider implementing
// [gateway.Gateway] on top of redis.
//
// It exists so the controller can run end to end without a hosted identity
// service: the demo CLI, the HTTP adapter and the integration tests all use it.
// Accounts are keyed by normalized email, secrets are hashed with Argon2id,
// email codes are stored as SHA-256 digests, and sessions are handed out as
// signed tokens.
package reference

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/password"
	"github.com/MrEthical07/authflow/token"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MinSecretLength is the shortest accepted account secret, in bytes.
const MinSecretLength = 8

// User-facing messages returned in structured errors.
const (
	MsgIdentifierNotFound = "Couldn't find your account."
	MsgPasswordIncorrect  = "Password is incorrect. Try again, or use another method."
	MsgIdentifierExists   = "That email address is taken. Please try another."
	MsgCodeIncorrect      = "Incorrect code"
	MsgPasswordTooShort   = "Passwords must be 8 characters or more."
	MsgEmailInvalid       = "Email address must be a valid email address."
	MsgSessionNotFound    = "Your session has ended. Please sign in again."
	MsgRegistrationGone   = "This sign up attempt has expired. Please start again."
	MsgStrategyInvalid    = "This verification strategy is not supported."
)

// CodeSender delivers a verification code to an email address.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// CodeSenderFunc adapts a function to CodeSender.
type CodeSenderFunc func(ctx context.Context, email, code string) error

// SendCode implements CodeSender.
func (f CodeSenderFunc) SendCode(ctx context.Context, email, code string) error {
	return f(ctx, email, code)
}

// Config configures a Provider.
type Config struct {
	Redis  redis.UniversalClient
	Prefix string

	Tokens *token.Issuer
	Hasher *password.Hasher

	// CodeSender receives every generated code. Required unless FixedCode is set.
	CodeSender CodeSender
	// FixedCode replaces random code generation. Intended for demos and tests.
	FixedCode string

	RegistrationTTL time.Duration
	SessionTTL      time.Duration

	Logger *zap.Logger
}

// Provider is the reference identity provider.
type Provider struct {
	store      store
	tokens     *token.Issuer
	hasher     *password.Hasher
	sender     CodeSender
	fixedCode  string
	regTTL     time.Duration
	sessionTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

var _ gateway.Gateway = (*Provider)(nil)

// New validates cfg and returns a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Redis == nil {
		return nil, errors.New("reference: redis client is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("reference: token issuer is required")
	}
	if cfg.Hasher == nil {
		return nil, errors.New("reference: password hasher is required")
	}
	if cfg.CodeSender == nil && cfg.FixedCode == "" {
		return nil, errors.New("reference: code sender or fixed code is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "authref"
	}
	if cfg.RegistrationTTL <= 0 {
		cfg.RegistrationTTL = 24 * time.Hour
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Provider{
		store:      store{redis: cfg.Redis, prefix: cfg.Prefix},
		tokens:     cfg.Tokens,
		hasher:     cfg.Hasher,
		sender:     cfg.CodeSender,
		fixedCode:  cfg.FixedCode,
		regTTL:     cfg.RegistrationTTL,
		sessionTTL: cfg.SessionTTL,
		logger:     cfg.Logger,
		now:        time.Now,
	}, nil
}

// CreateSession checks credentials and opens an inactive session.
func (p *Provider) CreateSession(ctx context.Context, identifier, secret string) (gateway.Session, error) {
	email := normalizeEmail(identifier)
	if email == "" {
		return gateway.Session{}, gateway.NewErrors(gateway.CodeParamMissing, "Enter email address.", "")
	}
	if secret == "" {
		return gateway.Session{}, gateway.NewErrors(gateway.CodeParamMissing, "Enter password.", "")
	}

	acct, err := p.store.getAccount(ctx, email)
	if errors.Is(err, errNotFound) {
		return gateway.Session{}, gateway.NewErrors(gateway.CodeIdentifierNotFound, MsgIdentifierNotFound, "")
	}
	if err != nil {
		return gateway.Session{}, err
	}

	ok, err := p.hasher.Verify(secret, acct.PasswordHash)
	if err != nil {
		return gateway.Session{}, fmt.Errorf("reference: verify secret: %w", err)
	}
	if !ok {
		return gateway.Session{}, gateway.NewErrors(gateway.CodePasswordIncorrect, MsgPasswordIncorrect, "")
	}

	sess := p.newSession(acct.UserID)
	if err := p.store.saveSession(ctx, sess); err != nil {
		return gateway.Session{}, err
	}
	raw, err := p.tokens.Mint(sess.SessionID, sess.UserID)
	if err != nil {
		return gateway.Session{}, err
	}

	p.logger.Debug("session created", zap.String("session_id", sess.SessionID))
	return gateway.Session{ID: sess.SessionID, Token: raw}, nil
}

// SetActiveSession marks the session active.
func (p *Provider) SetActiveSession(ctx context.Context, sessionID string) error {
	err := p.store.activateSession(ctx, sessionID)
	if errors.Is(err, errNotFound) {
		return sessionNotFound()
	}
	return err
}

// CreateRegistration validates reg and stores it pending verification.
func (p *Provider) CreateRegistration(ctx context.Context, reg gateway.Registration) (string, error) {
	email := normalizeEmail(reg.Email)
	var problems gateway.Errors
	if email == "" {
		problems = append(problems, gateway.AuthError{Code: gateway.CodeParamMissing, Message: "Enter email address."})
	} else if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
		problems = append(problems, gateway.AuthError{Code: gateway.CodeParamFormatInvalid, Message: MsgEmailInvalid})
	}
	switch {
	case reg.Secret == "":
		problems = append(problems, gateway.AuthError{Code: gateway.CodeParamMissing, Message: "Enter password."})
	case len(reg.Secret) < MinSecretLength:
		problems = append(problems, gateway.AuthError{Code: gateway.CodePasswordTooShort, Message: MsgPasswordTooShort})
	}
	if len(problems) > 0 {
		return "", problems
	}

	exists, err := p.store.accountExists(ctx, email)
	if err != nil {
		return "", err
	}
	if exists {
		return "", gateway.NewErrors(gateway.CodeIdentifierExists, MsgIdentifierExists, "")
	}

	hash, err := p.hasher.Hash(reg.Secret)
	if err != nil {
		return "", fmt.Errorf("reference: hash secret: %w", err)
	}

	record := &registration{
		ID:           "reg_" + uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		PasswordHash: hash,
		CreatedAt:    p.now().Unix(),
	}
	if err := p.store.saveRegistration(ctx, record, p.regTTL); err != nil {
		return "", err
	}
	return record.ID, nil
}

// PrepareVerification issues a fresh email code for the registration.
func (p *Provider) PrepareVerification(ctx context.Context, registrationID string, strategy gateway.Strategy) error {
	if strategy != gateway.StrategyEmailCode {
		return gateway.NewErrors(gateway.CodeStrategyInvalid, MsgStrategyInvalid, "")
	}

	code, err := p.generateCode()
	if err != nil {
		return err
	}

	var email string
	err = p.store.updateRegistration(ctx, registrationID, func(r *registration) error {
		r.Prepared = true
		r.CodeHash = sha256.Sum256([]byte(code))
		email = r.Email
		return nil
	})
	if errors.Is(err, errNotFound) {
		return registrationGone()
	}
	if err != nil {
		return err
	}

	if p.sender != nil {
		if err := p.sender.SendCode(ctx, email, code); err != nil {
			return fmt.Errorf("reference: send code: %w", err)
		}
	}
	return nil
}

// AttemptVerification checks code. A correct code creates the account and
// its first session and reports StatusComplete.
func (p *Provider) AttemptVerification(ctx context.Context, registrationID, code string) (gateway.VerificationResult, error) {
	reg, err := p.store.getRegistration(ctx, registrationID)
	if errors.Is(err, errNotFound) {
		return gateway.VerificationResult{}, registrationGone()
	}
	if err != nil {
		return gateway.VerificationResult{}, err
	}
	if !reg.Prepared {
		return gateway.VerificationResult{Status: gateway.StatusMissingRequirements}, nil
	}

	provided := sha256.Sum256([]byte(strings.TrimSpace(code)))
	if subtle.ConstantTimeCompare(provided[:], reg.CodeHash[:]) != 1 {
		return gateway.VerificationResult{}, gateway.NewErrors(gateway.CodeCodeIncorrect, MsgCodeIncorrect, "")
	}

	acct := &account{
		UserID:       "user_" + uuid.NewString(),
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PasswordHash: reg.PasswordHash,
		CreatedAt:    p.now().Unix(),
	}
	sess := p.newSession(acct.UserID)

	switch err := p.store.promoteRegistration(ctx, registrationID, acct, sess); {
	case errors.Is(err, errNotFound):
		return gateway.VerificationResult{}, registrationGone()
	case errors.Is(err, errAccountExists):
		return gateway.VerificationResult{}, gateway.NewErrors(gateway.CodeIdentifierExists, MsgIdentifierExists, "")
	case err != nil:
		return gateway.VerificationResult{}, err
	}

	raw, err := p.tokens.Mint(sess.SessionID, acct.UserID)
	if err != nil {
		return gateway.VerificationResult{}, err
	}

	p.logger.Info("registration verified", zap.String("user_id", acct.UserID))
	return gateway.VerificationResult{
		Status:    gateway.StatusComplete,
		SessionID: sess.SessionID,
		Token:     raw,
	}, nil
}

// ResumeSession validates a cached token against the live session record.
func (p *Provider) ResumeSession(ctx context.Context, raw string) (gateway.Session, error) {
	claims, err := p.tokens.Parse(raw)
	if err != nil {
		return gateway.Session{}, gateway.NewErrors(gateway.CodeSessionExpired, MsgSessionNotFound, err.Error())
	}

	sess, err := p.store.getSession(ctx, claims.SessionID)
	if errors.Is(err, errNotFound) {
		return gateway.Session{}, sessionNotFound()
	}
	if err != nil {
		return gateway.Session{}, err
	}
	if !sess.Active || sess.UserID != claims.UserID() || p.now().Unix() > sess.ExpiresAt {
		return gateway.Session{}, sessionNotFound()
	}
	return gateway.Session{ID: sess.SessionID, Token: raw}, nil
}

// EndSession deletes the session. Ending an unknown session succeeds.
func (p *Provider) EndSession(ctx context.Context, sessionID string) error {
	return p.store.deleteSession(ctx, sessionID)
}

func (p *Provider) newSession(userID string) *sessionRecord {
	now := p.now()
	return &sessionRecord{
		SessionID: "sess_" + uuid.NewString(),
		UserID:    userID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(p.sessionTTL).Unix(),
	}
}

func (p *Provider) generateCode() (string, error) {
	if p.fixedCode != "" {
		return p.fixedCode, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sessionNotFound() error {
	return gateway.NewErrors(gateway.CodeSessionNotFound, MsgSessionNotFound, "")
}

func registrationGone() error {
	return gateway.NewErrors(gateway.CodeRegistrationMissing, MsgRegistrationGone, "")
}

// Package token mints and validates the session tokens handed to clients by the
// reference identity provider.
//
// A session token is a compact JWT carrying the session and user identifiers.
// It is what the client persists in its token cache and presents again at boot.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Method selects the signing algorithm.
type Method string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 Method = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 Method = "ed25519"
)

var (
	// ErrInvalidConfig is returned by NewIssuer.
	ErrInvalidConfig = errors.New("token: invalid configuration")
	// ErrInvalidToken is returned by Parse for any token that fails validation.
	ErrInvalidToken = errors.New("token: invalid session token")
)

// Config configures an Issuer.
type Config struct {
	Method     Method
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	TTL        time.Duration
	Leeway     time.Duration
	KeyID      string
}

// Claims are the session token claims.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Issuer mints and parses session tokens. It is immutable after construction.
type Issuer struct {
	cfg     Config
	method  jwt.SigningMethod
	signKey any
	verKey  any
	now     func() time.Time
}

// NewIssuer validates cfg and prepares the signing keys.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be > 0", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway must be within [0, 2m]", ErrInvalidConfig)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	iss := &Issuer{cfg: cfg, now: time.Now}
	switch cfg.Method {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, fmt.Errorf("%w: hs256 key must be at least 32 bytes", ErrInvalidConfig)
		}
		iss.method = jwt.SigningMethodHS256
		iss.signKey = cfg.PrivateKey
		iss.verKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := edPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub := priv.Public().(ed25519.PublicKey)
		if len(cfg.PublicKey) > 0 {
			if pub, err = edPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		iss.method = jwt.SigningMethodEdDSA
		iss.signKey = priv
		iss.verKey = pub
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidConfig, cfg.Method)
	}
	return iss, nil
}

// Mint returns a signed token for the given session and user.
func (i *Issuer) Mint(sessionID, userID string) (string, error) {
	if sessionID == "" || userID == "" {
		return "", errors.New("token: session and user ids are required")
	}

	now := i.now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		},
	}
	if i.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}

	t := jwt.NewWithClaims(i.method, claims)
	if i.cfg.KeyID != "" {
		t.Header["kid"] = i.cfg.KeyID
	}
	return t.SignedString(i.signKey)
}

// Parse validates raw and returns its claims. Every failure wraps ErrInvalidToken.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(i.cfg.Leeway))
	}
	if i.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.cfg.Issuer))
	}
	if i.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(i.cfg.Audience))
	}

	claims := &Claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if i.cfg.KeyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != i.cfg.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return i.verKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func edPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 private key", ErrInvalidConfig)
	}
	k, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 private key type", ErrInvalidConfig)
	}
	return k, nil
}

func edPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 public key", ErrInvalidConfig)
	}
	k, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 public key type", ErrInvalidConfig)
	}
	return k, nil
}

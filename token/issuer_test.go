package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

var hsKey = []byte("0123456789abcdef0123456789abcdef")

func TestMintAndParseHS256(t *testing.T) {
	iss, err := NewIssuer(Config{Method: MethodHS256, PrivateKey: hsKey, TTL: time.Hour, Issuer: "authflow", Audience: "demo"})
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	raw, err := iss.Mint("sess_1", "user_1")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	claims, err := iss.Parse(raw)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.SessionID != "sess_1" || claims.UserID() != "user_1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestMintAndParseEd25519(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	iss, err := NewIssuer(Config{Method: MethodEd25519, PrivateKey: priv, TTL: time.Minute, KeyID: "k1"})
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	raw, err := iss.Mint("sess_2", "user_2")
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	if _, err := iss.Parse(raw); err != nil {
		t.Fatalf("Parse error: %v", err)
	}
}

func TestParseRejects(t *testing.T) {
	iss, _ := NewIssuer(Config{Method: MethodHS256, PrivateKey: hsKey, TTL: time.Minute, Issuer: "authflow"})
	raw, _ := iss.Mint("sess", "user")

	other, _ := NewIssuer(Config{Method: MethodHS256, PrivateKey: []byte(strings.Repeat("z", 32)), TTL: time.Minute, Issuer: "authflow"})
	foreign, _ := other.Mint("sess", "user")

	wrongIssuer, _ := NewIssuer(Config{Method: MethodHS256, PrivateKey: hsKey, TTL: time.Minute, Issuer: "elsewhere"})
	misissued, _ := wrongIssuer.Mint("sess", "user")

	expiring, _ := NewIssuer(Config{Method: MethodHS256, PrivateKey: hsKey, TTL: time.Minute, Issuer: "authflow"})
	expiring.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiring.Mint("sess", "user")

	tests := map[string]string{
		"garbage":       "not-a-token",
		"tampered":      raw[:strings.LastIndex(raw, ".")+1] + "AAAA",
		"foreign key":   foreign,
		"wrong issuer":  misissued,
		"expired token": expired,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := iss.Parse(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewIssuerValidation(t *testing.T) {
	tests := map[string]Config{
		"no ttl":      {Method: MethodHS256, PrivateKey: hsKey},
		"short key":   {Method: MethodHS256, PrivateKey: []byte("short"), TTL: time.Minute},
		"bad method":  {Method: "rs256", PrivateKey: hsKey, TTL: time.Minute},
		"big leeway":  {Method: MethodHS256, PrivateKey: hsKey, TTL: time.Minute, Leeway: time.Hour},
		"bad ed25519": {Method: MethodEd25519, PrivateKey: []byte("nope"), TTL: time.Minute},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewIssuer(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestMintRequiresIDs(t *testing.T) {
	iss, _ := NewIssuer(Config{Method: MethodHS256, PrivateKey: hsKey, TTL: time.Minute})
	if _, err := iss.Mint("", "user"); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

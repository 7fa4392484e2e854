package password

import (
	"errors"
	"strings"
	"testing"
)

func fastParams() Params {
	return Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHashAndVerify(t *testing.T) {
	h, err := New(fastParams())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	encoded, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	ok, err := h.Verify("correct horse", encoded)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong horse", encoded)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h, _ := New(fastParams())
	a, _ := h.Hash("same-secret")
	b, _ := h.Hash("same-secret")
	if a == b {
		t.Fatal("two hashes of the same secret must differ")
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, _ := New(fastParams())
	encoded, err := weak.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strongParams := fastParams()
	strongParams.Time = 2
	strong, _ := New(strongParams)

	if need, err := strong.NeedsRehash(encoded); err != nil || !need {
		t.Fatalf("expected rehash, got need=%v err=%v", need, err)
	}
	if need, err := weak.NeedsRehash(encoded); err != nil || need {
		t.Fatalf("expected no rehash, got need=%v err=%v", need, err)
	}
}

func TestNewRejectsWeakParams(t *testing.T) {
	tests := map[string]func(*Params){
		"memory":      func(p *Params) { p.Memory = 1024 },
		"time":        func(p *Params) { p.Time = 0 },
		"parallelism": func(p *Params) { p.Parallelism = 0 },
		"salt":        func(p *Params) { p.SaltLength = 8 },
		"key":         func(p *Params) { p.KeyLength = 8 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := fastParams()
			mutate(&p)
			if _, err := New(p); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestVerifyMalformed(t *testing.T) {
	h, _ := New(fastParams())
	inputs := []string{
		"",
		"plain",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,x=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$short$aGFzaA",
	}
	for _, in := range inputs {
		if _, err := h.Verify("x", in); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("Verify(%q): expected ErrMalformedHash, got %v", in, err)
		}
	}
}

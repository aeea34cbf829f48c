package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"testing"
)

func generateTestKeypair(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return priv, base64.StdEncoding.EncodeToString(pub)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pubB64 := generateTestKeypair(t)

	pub, err := ValidatePublicKey(pubB64)
	if err != nil {
		t.Fatal(err)
	}

	nonce, ts, sig := Sign(priv, "user-1")
	if len(nonce) != 24 {
		t.Fatalf("expected 24-char nonce, got %d", len(nonce))
	}
	if err := VerifySignature(pub, SignaturePayload("user-1", nonce, ts), sig); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := VerifySignature(pub, SignaturePayload("user-2", nonce, ts), sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for other subject, got %v", err)
	}
}

func TestConnectQuery(t *testing.T) {
	priv, pubB64 := generateTestKeypair(t)
	pub, _ := ValidatePublicKey(pubB64)

	q := ConnectQuery(priv, "abc")
	ts, err := strconv.ParseInt(q.Get("ts"), 10, 64)
	if err != nil {
		t.Fatal(err)
	}
	if q.Get("user") != "abc" {
		t.Fatalf("expected user abc, got %q", q.Get("user"))
	}
	if err := VerifySignature(pub, SignaturePayload("abc", q.Get("nonce"), ts), q.Get("sig")); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestValidatePublicKey(t *testing.T) {
	if _, err := ValidatePublicKey("not base64!"); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := ValidatePublicKey(short); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
}

func TestParsePrivateKey(t *testing.T) {
	priv, _ := generateTestKeypair(t)
	got, err := ParsePrivateKey(base64.StdEncoding.EncodeToString(priv))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(priv) {
		t.Fatal("parsed key differs")
	}
	if _, err := ParsePrivateKey(base64.StdEncoding.EncodeToString(priv[:10])); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Fatalf("expected ErrInvalidPrivateKey, got %v", err)
	}
}

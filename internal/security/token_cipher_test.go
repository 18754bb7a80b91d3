package security

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func newTestCipher(t *testing.T, secret string) *TokenCipher {
	t.Helper()
	c, err := NewTokenCipher(secret)
	if err != nil {
		t.Fatalf("NewTokenCipher() error = %v", err)
	}
	return c
}

func TestTokenCipher_EncryptDecrypt(t *testing.T) {
	c := newTestCipher(t, "test-session-secret")

	enc, err := c.Encrypt("ya29.access-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if enc == "ya29.access-token" || strings.Contains(enc, "access-token") {
		t.Errorf("ciphertext leaks the plaintext: %q", enc)
	}

	dec, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if dec != "ya29.access-token" {
		t.Errorf("Decrypt() = %q, want %q", dec, "ya29.access-token")
	}
}

func TestTokenCipher_NonceIsRandom(t *testing.T) {
	c := newTestCipher(t, "test-session-secret")

	a, err := c.Encrypt("same")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	b, err := c.Encrypt("same")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestTokenCipher_Empty(t *testing.T) {
	c := newTestCipher(t, "s")

	enc, err := c.Encrypt("")
	if err != nil || enc != "" {
		t.Errorf("Encrypt(\"\") = %q, %v; want empty, nil", enc, err)
	}
	dec, err := c.Decrypt("")
	if err != nil || dec != "" {
		t.Errorf("Decrypt(\"\") = %q, %v; want empty, nil", dec, err)
	}
}

func TestTokenCipher_WrongKey(t *testing.T) {
	a := newTestCipher(t, "secret-a")
	b := newTestCipher(t, "secret-b")

	enc, err := a.Encrypt("refresh-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := b.Decrypt(enc); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Decrypt() with another key error = %v, want ErrInvalidCiphertext", err)
	}
}

func TestTokenCipher_Tampered(t *testing.T) {
	c := newTestCipher(t, "secret")

	for _, bad := range []string{"!!!not-base64", "AAAA"} {
		if _, err := c.Decrypt(bad); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("Decrypt(%q) error = %v, want ErrInvalidCiphertext", bad, err)
		}
	}

	enc, err := c.Encrypt("token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	if _, err := c.Decrypt(base64.RawURLEncoding.EncodeToString(raw)); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Decrypt(tampered) error = %v, want ErrInvalidCiphertext", err)
	}
}

func TestNewTokenCipher_EmptySecret(t *testing.T) {
	if _, err := NewTokenCipher(""); err == nil {
		t.Error("expected error for empty secret")
	}
}

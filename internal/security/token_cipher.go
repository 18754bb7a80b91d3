package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// tokenCipherInfo はHKDFの用途ラベル。変更すると既存の暗号文は復号できなくなる。
const tokenCipherInfo = "mindjournal calendar token v1"

// ErrInvalidCiphertext は暗号文の形式が不正、または改ざんされている場合に返される。
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// TokenCipher はOAuthトークンを保存前に暗号化する。
// 鍵はSESSION_SECRETからHKDF-SHA256で導出し、XChaCha20-Poly1305で暗号化する。
// 暗号文は nonce||ciphertext をbase64(URLセーフ、パディングなし)で表す。
type TokenCipher struct {
	key []byte
}

// NewTokenCipher はsecretから鍵を導出してTokenCipherを生成する。
func NewTokenCipher(secret string) (*TokenCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(tokenCipherInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return &TokenCipher{key: key}, nil
}

// Encrypt は平文を暗号化する。空文字列は空文字列のまま返す。
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt はEncryptの出力を復号する。空文字列は空文字列のまま返す。
func (c *TokenCipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length accepted by every cipher in this package.
const KeySize = 32

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// ErrCiphertextTooShort is returned when the input cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("adaptive: ciphertext too short")

// Cipher provides authenticated encryption.
type Cipher interface {
	Type() CipherType
	Encrypt(plaintext, additionalData []byte) ([]byte, error)
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// EncryptDeterministic derives the nonce from the key, additionalData and
	// plaintext, so equal inputs give equal output. It reveals equality of
	// plaintexts and nothing else.
	EncryptDeterministic(plaintext, additionalData []byte) ([]byte, error)

	NonceSize() int
	Overhead() int
}

// New creates the preferred cipher for this platform.
func New(key []byte) (Cipher, error) {
	if hasAESAcceleration() {
		return NewWithType(key, CipherAESGCM)
	}
	return NewWithType(key, CipherChaCha20)
}

// NewWithType creates a cipher of the given type.
func NewWithType(key []byte, t CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: key must be %d bytes, got %d", KeySize, len(key))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch t {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("adaptive: unknown cipher type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("adaptive: %s: %w", t, err)
	}
	nonceKey, err := DeriveKey(key, nil, "adaptive nonce")
	if err != nil {
		return nil, err
	}
	return &aeadCipher{typ: t, aead: aead, nonceKey: nonceKey}, nil
}

// ParseCipherType accepts the names used in configuration. Empty selects the
// platform default.
func ParseCipherType(s string) (CipherType, error) {
	switch CipherType(s) {
	case "":
		if hasAESAcceleration() {
			return CipherAESGCM, nil
		}
		return CipherChaCha20, nil
	case CipherAESGCM, CipherChaCha20:
		return CipherType(s), nil
	}
	return "", fmt.Errorf("adaptive: unknown cipher type %q", s)
}

// hasAESAcceleration reports whether crypto/aes uses hardware instructions.
func hasAESAcceleration() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return true
	default:
		return false
	}
}

type aeadCipher struct {
	typ      CipherType
	aead     cipher.AEAD
	nonceKey []byte
}

func (c *aeadCipher) Type() CipherType { return c.typ }
func (c *aeadCipher) NonceSize() int   { return c.aead.NonceSize() }
func (c *aeadCipher) Overhead() int    { return c.aead.Overhead() }

// Encrypt seals plaintext under a fresh random nonce, returned as a prefix.
func (c *aeadCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("adaptive: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// EncryptDeterministic seals plaintext under a synthetic nonce.
func (c *aeadCipher) EncryptDeterministic(plaintext, additionalData []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, c.nonceKey)
	mac.Write(additionalData)
	mac.Write([]byte{0})
	mac.Write(plaintext)
	nonce := mac.Sum(nil)[:c.aead.NonceSize()]

	out := make([]byte, len(nonce), len(nonce)+len(plaintext)+c.aead.Overhead())
	copy(out, nonce)
	return c.aead.Seal(out, nonce, plaintext, additionalData), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *aeadCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(ciphertext) < n+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, ciphertext[:n], ciphertext[n:], additionalData)
}

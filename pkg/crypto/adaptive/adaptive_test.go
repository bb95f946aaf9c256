package adaptive

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func TestNewWithType(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		typ     CipherType
		wantErr bool
	}{
		{"aes-gcm", testKey(1), CipherAESGCM, false},
		{"chacha20", testKey(1), CipherChaCha20, false},
		{"short key", []byte("short"), CipherChaCha20, true},
		{"unknown type", testKey(1), "rot13", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewWithType(tt.key, tt.typ)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWithType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.Type() != tt.typ {
				t.Errorf("Type() = %s, want %s", c.Type(), tt.typ)
			}
		})
	}
}

func TestNew(t *testing.T) {
	c, err := New(testKey(2))
	if err != nil {
		t.Fatal(err)
	}
	if c.Type() != CipherAESGCM && c.Type() != CipherChaCha20 {
		t.Errorf("unexpected type %s", c.Type())
	}
}

func TestEncryptDecrypt(t *testing.T) {
	for _, typ := range []CipherType{CipherAESGCM, CipherChaCha20} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := NewWithType(testKey(3), typ)
			if err != nil {
				t.Fatal(err)
			}

			plaintext := []byte(`{"theme":"dark"}`)
			aad := []byte("mirrorsync-settings")

			sealed, err := c.Encrypt(plaintext, aad)
			if err != nil {
				t.Fatal(err)
			}
			if len(sealed) != c.NonceSize()+len(plaintext)+c.Overhead() {
				t.Errorf("sealed length = %d", len(sealed))
			}

			opened, err := c.Decrypt(sealed, aad)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(opened, plaintext) {
				t.Errorf("Decrypt = %q", opened)
			}

			if _, err := c.Decrypt(sealed, []byte("other-key")); err == nil {
				t.Error("decrypt with wrong additional data should fail")
			}

			sealed[len(sealed)-1] ^= 0xff
			if _, err := c.Decrypt(sealed, aad); err == nil {
				t.Error("decrypt of tampered ciphertext should fail")
			}

			if _, err := c.Decrypt([]byte{1, 2}, aad); !errors.Is(err, ErrCiphertextTooShort) {
				t.Errorf("short input err = %v", err)
			}
		})
	}
}

func TestEncrypt_NonceUniqueness(t *testing.T) {
	c, err := NewWithType(testKey(4), CipherChaCha20)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := c.Encrypt([]byte("same"), nil)
	b, _ := c.Encrypt([]byte("same"), nil)
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey([]byte("secret"), []byte("salt"), "values")
	if err != nil {
		t.Fatal(err)
	}
	if len(k1) != KeySize {
		t.Fatalf("len = %d", len(k1))
	}

	k2, _ := DeriveKey([]byte("secret"), []byte("salt"), "values")
	if !bytes.Equal(k1, k2) {
		t.Error("derivation should be deterministic")
	}
	k3, _ := DeriveKey([]byte("secret"), []byte("salt"), "other")
	if bytes.Equal(k1, k3) {
		t.Error("different info should give different keys")
	}

	if _, err := DeriveKey(nil, nil, "x"); err == nil {
		t.Error("empty secret should fail")
	}
}

func TestParseCipherType(t *testing.T) {
	if _, err := ParseCipherType("chacha20-poly1305"); err != nil {
		t.Error(err)
	}
	if typ, err := ParseCipherType(""); err != nil || typ == "" {
		t.Errorf("default = %q, %v", typ, err)
	}
	if _, err := ParseCipherType("des"); err == nil {
		t.Error("unknown cipher should fail")
	}
}

func TestEncryptDeterministic(t *testing.T) {
	for _, typ := range []CipherType{CipherAESGCM, CipherChaCha20} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := NewWithType(testKey(5), typ)
			if err != nil {
				t.Fatal(err)
			}

			a, err := c.EncryptDeterministic([]byte("v"), []byte("k1"))
			if err != nil {
				t.Fatal(err)
			}
			b, _ := c.EncryptDeterministic([]byte("v"), []byte("k1"))
			if !bytes.Equal(a, b) {
				t.Error("equal inputs should give equal ciphertexts")
			}

			other, _ := c.EncryptDeterministic([]byte("v"), []byte("k2"))
			if bytes.Equal(a, other) {
				t.Error("different additional data should change the ciphertext")
			}

			opened, err := c.Decrypt(a, []byte("k1"))
			if err != nil || string(opened) != "v" {
				t.Errorf("Decrypt = %q, %v", opened, err)
			}
		})
	}
}

// Package adaptive provides authenticated encryption with algorithm selection.
//
// Supported algorithms:
//
//   - AES-256-GCM, preferred where the CPU accelerates AES
//   - ChaCha20-Poly1305, used elsewhere
//
// Ciphertexts carry their random nonce as a prefix. Keys are 32 bytes;
// DeriveKey stretches an arbitrary secret with HKDF-SHA256.
//
//	key, _ := adaptive.DeriveKey(secret, salt, "mirrorsync values")
//	c, _ := adaptive.New(key)
//	sealed, _ := c.Encrypt(plaintext, aad)
package adaptive

package codec

import (
	"encoding/base64"
	"fmt"

	"github.com/yndnr/mirrorsync/pkg/crypto/adaptive"
)

var sealAAD = []byte("mirrorsync value")

// Sealed wraps a format so stored values are encrypted.
//
// Sealing is deterministic: equal values produce equal stored text, which
// keeps change detection working at the cost of revealing which stored
// values are equal.
func Sealed(inner Format, cipher adaptive.Cipher) Format {
	return Format{
		Name: "sealed+" + inner.Name,
		Serialize: func(v any) (string, error) {
			plain, err := inner.Serialize(v)
			if err != nil {
				return "", err
			}
			ct, err := cipher.EncryptDeterministic([]byte(plain), sealAAD)
			if err != nil {
				return "", fmt.Errorf("seal: %w", err)
			}
			return base64.StdEncoding.EncodeToString(ct), nil
		},
		Deserialize: func(s string) (any, error) {
			ct, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("unseal: %w", err)
			}
			plain, err := cipher.Decrypt(ct, sealAAD)
			if err != nil {
				return nil, fmt.Errorf("unseal: %w", err)
			}
			return inner.Deserialize(string(plain))
		},
	}
}

// SealedFromSecret derives a key from secret and wraps inner with the
// cipher named by cipherName ("" picks the platform default).
func SealedFromSecret(inner Format, secret, cipherName string) (Format, error) {
	typ, err := adaptive.ParseCipherType(cipherName)
	if err != nil {
		return Format{}, err
	}
	key, err := adaptive.DeriveKey([]byte(secret), []byte("mirrorsync"), "value sealing")
	if err != nil {
		return Format{}, err
	}
	c, err := adaptive.NewWithType(key, typ)
	if err != nil {
		return Format{}, err
	}
	return Sealed(inner, c), nil
}

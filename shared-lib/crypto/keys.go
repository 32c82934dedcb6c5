package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// AccountKeyBits is the modulus size ADEPT expects for auth and license keys.
const AccountKeyBits = 1024

var ErrUnsupportedKey = errors.New("unsupported private key")

// GenerateKeyPair creates a fresh RSA key pair and returns the private half as
// base64 PKCS#8 DER and the public half as base64 SubjectPublicKeyInfo DER.
func GenerateKeyPair() (privateB64 string, publicB64 string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, AccountKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate rsa key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(privDER), base64.StdEncoding.EncodeToString(pubDER), nil
}

// ParsePrivateKey accepts a DER encoded RSA key in PKCS#1 or PKCS#8 form.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	// PKCS#8 fallback
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, parsed)
	}
	return key, nil
}

// ParsePrivateKeyBase64 is ParsePrivateKey over base64 text.
func ParsePrivateKeyBase64(b64 string) (*rsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	return ParsePrivateKey(der)
}

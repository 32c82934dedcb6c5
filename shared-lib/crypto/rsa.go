package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrInvalidDigest   = errors.New("digest must be exactly 20 bytes")
	ErrNotRSAPublicKey = errors.New("certificate does not carry an rsa public key")
)

// RawRSASign signs a 20 byte digest with PKCS#1 v1.5 type 1 padding and no
// DigestInfo prefix, as ADEPT expects.
func RawRSASign(digest []byte, privateKeyDER []byte) ([]byte, error) {
	if len(digest) != sha1.Size {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDigest, len(digest))
	}
	key, err := ParsePrivateKey(privateKeyDER)
	if err != nil {
		return nil, err
	}

	// Hash(0) signs the input as is.
	sig, err := rsa.SignPKCS1v15(nil, key, crypto.Hash(0), digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}

// EncryptForCertificate encrypts data with RSA PKCS#1 v1.5 under the public
// key of a base64 DER certificate.
func EncryptForCertificate(data []byte, certificateB64 string) ([]byte, error) {
	der, err := base64.StdEncoding.DecodeString(certificateB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotRSAPublicKey, cert.PublicKey)
	}

	out, err := rsa.EncryptPKCS1v15(rand.Reader, pub, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt for certificate: %w", err)
	}
	return out, nil
}

package crypto

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

var ErrPKCS12Content = errors.New("pkcs12 container is missing an expected bag")

// PKCS12Password derives the container password from the raw device key.
// ADEPT protects account containers with the base64 text of that key.
func PKCS12Password(deviceKey []byte) string {
	return base64.StdEncoding.EncodeToString(deviceKey)
}

// ExtractPrivateKey opens a base64 PKCS#12 container and returns the account
// private key as PKCS#1 DER.
func ExtractPrivateKey(pkcs12B64 string, deviceKey []byte) ([]byte, error) {
	return extractBlock(pkcs12B64, deviceKey, "PRIVATE KEY")
}

// ExtractCertificate opens a base64 PKCS#12 container and returns the account
// certificate as X.509 DER.
func ExtractCertificate(pkcs12B64 string, deviceKey []byte) ([]byte, error) {
	return extractBlock(pkcs12B64, deviceKey, "CERTIFICATE")
}

func extractBlock(pkcs12B64 string, deviceKey []byte, blockType string) ([]byte, error) {
	blocks, err := openContainer(pkcs12B64, deviceKey)
	if err != nil {
		return nil, err
	}
	for _, block := range blocks {
		if block.Type == blockType {
			return block.Bytes, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPKCS12Content, blockType)
}

// openContainer uses ToPEM rather than Decode so the certificate is returned
// as raw DER without x509 validation.
func openContainer(pkcs12B64 string, deviceKey []byte) ([]*pem.Block, error) {
	der, err := base64.StdEncoding.DecodeString(pkcs12B64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pkcs12: %w", err)
	}
	blocks, err := pkcs12.ToPEM(der, PKCS12Password(deviceKey))
	if err != nil {
		return nil, fmt.Errorf("failed to open pkcs12: %w", err)
	}
	return blocks, nil
}

package sandbox

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

const signingKeyBits = 2048

// Signer signs purchase data the way the Play Store does: SHA1 with RSA
// PKCS#1 v1.5, base64 encoded. Its public key is exported in the same
// base64 DER form an application license key has.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner generates a fresh signing key
func NewSigner() (*Signer, error) {
	key, err := rsa.GenerateKey(rand.Reader, signingKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Signer{key: key}, nil
}

// PublicKeyBase64 returns the base64 encoded PKIX public key
func (s *Signer) PublicKeyBase64() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// Sign returns the base64 signature of data
func (s *Signer) Sign(data string) (string, error) {
	digest := sha1.Sum([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign purchase data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
